// Package docs builds the Swagger 2.0 document for the API and serves it
// with an interactive UI under /swagger/.
package docs

// Contact names who to reach about the API.
type Contact struct {
	Name  string
	URL   string
	Email string
}

// License names the license the API is published under.
type License struct {
	Name string
	URL  string
}

// Info is the static metadata the schema is built from.
type Info struct {
	Title          string
	Version        string
	Description    string
	TermsOfService string
	Contact        Contact
	License        License
}

// SwaggerInfo describes the travel API. Settings refer to it by name.
var SwaggerInfo = Info{
	Title:          "ALX Travel App API",
	Version:        "v1",
	Description:    "API documentation for ALX Travel App",
	TermsOfService: "https://www.example.com/terms/",
	Contact:        Contact{Email: "support@example.com"},
	License:        License{Name: "MIT License"},
}
