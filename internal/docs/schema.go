package docs

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-openapi/spec"

	"github.com/eugenenazirov/alx-travel/internal/config"
)

var (
	// ErrUnknownInfo is returned when the settings name an info object
	// other than SwaggerInfo.
	ErrUnknownInfo = errors.New("unknown schema info reference")
	// ErrUnsupportedSecurity is returned for security definition types the
	// generator cannot express.
	ErrUnsupportedSecurity = errors.New("unsupported security definition")
)

// PathProvider is implemented by handler groups that document their routes.
// Keys are paths relative to the group's mount point.
type PathProvider interface {
	SwaggerPaths() map[string]spec.PathItem
}

// Mount pairs a PathProvider with the prefix it is served under.
type Mount struct {
	Prefix   string
	Provider PathProvider
}

// NewSchema builds the document once from the info object and settings.
func NewSchema(info Info, settings config.Swagger, mounts ...Mount) (*spec.Swagger, error) {
	if settings.DefaultInfo != "" && settings.DefaultInfo != config.SwaggerInfoRef {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInfo, settings.DefaultInfo)
	}

	securityDefs, security, err := securityDefinitions(settings.SecurityDefinitions)
	if err != nil {
		return nil, err
	}

	paths := map[string]spec.PathItem{}
	for _, m := range mounts {
		if m.Provider == nil {
			continue
		}
		prefix := strings.TrimSuffix(m.Prefix, "/")
		for p, item := range m.Provider.SwaggerPaths() {
			paths[prefix+"/"+strings.TrimPrefix(p, "/")] = item
		}
	}

	return &spec.Swagger{
		SwaggerProps: spec.SwaggerProps{
			Swagger:  "2.0",
			Info:     specInfo(info),
			BasePath: "/",
			Consumes: []string{"application/json"},
			Produces: []string{"application/json"},
			Paths:    &spec.Paths{Paths: paths},

			SecurityDefinitions: securityDefs,
			Security:            security,
		},
	}, nil
}

func specInfo(info Info) *spec.Info {
	out := &spec.Info{
		InfoProps: spec.InfoProps{
			Title:          info.Title,
			Version:        info.Version,
			Description:    info.Description,
			TermsOfService: info.TermsOfService,
		},
	}
	if info.Contact != (Contact{}) {
		out.Contact = &spec.ContactInfo{
			ContactInfoProps: spec.ContactInfoProps{
				Name:  info.Contact.Name,
				URL:   info.Contact.URL,
				Email: info.Contact.Email,
			},
		}
	}
	if info.License != (License{}) {
		out.License = &spec.License{
			LicenseProps: spec.LicenseProps{
				Name: info.License.Name,
				URL:  info.License.URL,
			},
		}
	}
	return out
}

func securityDefinitions(defs map[string]config.SecurityDefinition) (spec.SecurityDefinitions, []map[string][]string, error) {
	if len(defs) == 0 {
		return nil, nil, nil
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(spec.SecurityDefinitions, len(defs))
	security := make([]map[string][]string, 0, len(defs))
	for _, name := range names {
		switch strings.ToLower(defs[name].Type) {
		case "basic":
			out[name] = spec.BasicAuth()
		default:
			return nil, nil, fmt.Errorf("%w: %s has type %q", ErrUnsupportedSecurity, name, defs[name].Type)
		}
		security = append(security, map[string][]string{name: {}})
	}
	return out, security, nil
}
