package docs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-openapi/spec"
	"go.uber.org/zap"

	"github.com/eugenenazirov/alx-travel/internal/config"
)

const (
	formatParam   = "format"
	formatOpenAPI = "openapi"

	openAPIContentType = "application/openapi+json; charset=utf-8"
	neverCache         = "max-age=0, no-cache, no-store, must-revalidate, private"
)

// ViewOptions tunes the UI page.
type ViewOptions struct {
	// UseSessionAuth shows login and logout links next to the UI.
	UseSessionAuth bool
	LoginURL       string
	LogoutURL      string
}

// SchemaView serves the schema UI and, with ?format=openapi, the raw document.
// It requires no authentication and forbids caching of every response.
type SchemaView struct {
	doc    []byte
	page   []byte
	logger *zap.Logger
}

// NewSchemaView renders the document and page once.
func NewSchemaView(schema *spec.Swagger, opts ViewOptions, logger *zap.Logger) (*SchemaView, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	doc, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	title := "API"
	if schema.Info != nil && schema.Info.Title != "" {
		title = schema.Info.Title
	}
	if opts.LoginURL == "" {
		opts.LoginURL = "/admin/login/"
	}
	if opts.LogoutURL == "" {
		opts.LogoutURL = "/admin/logout/"
	}

	var page bytes.Buffer
	if err := uiTemplate.Execute(&page, uiData{
		Title:          title,
		SpecURL:        "?" + formatParam + "=" + formatOpenAPI,
		UseSessionAuth: opts.UseSessionAuth,
		LoginURL:       opts.LoginURL,
		LogoutURL:      opts.LogoutURL,
	}); err != nil {
		return nil, fmt.Errorf("render schema ui: %w", err)
	}

	return &SchemaView{doc: doc, page: page.Bytes(), logger: logger}, nil
}

// New builds the schema view for SwaggerInfo from the settings.
func New(settings config.Swagger, logger *zap.Logger, mounts ...Mount) (*SchemaView, error) {
	schema, err := NewSchema(SwaggerInfo, settings, mounts...)
	if err != nil {
		return nil, err
	}
	return NewSchemaView(schema, ViewOptions{UseSessionAuth: settings.UseSessionAuth}, logger)
}

func (v *SchemaView) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	h := w.Header()
	h.Set("Cache-Control", neverCache)
	h.Set("Expires", time.Now().UTC().Format(http.TimeFormat))

	body := v.page
	h.Set("Content-Type", "text/html; charset=utf-8")
	if r.URL.Query().Get(formatParam) == formatOpenAPI {
		body = v.doc
		h.Set("Content-Type", openAPIContentType)
	}

	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		v.logger.Debug("schema write failed", zap.Error(err))
	}
}

type uiData struct {
	Title          string
	SpecURL        string
	UseSessionAuth bool
	LoginURL       string
	LogoutURL      string
}

var uiTemplate = template.Must(template.New("swagger-ui").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
{{- if .UseSessionAuth }}
<nav class="session-auth">
<a href="{{ .LoginURL }}?next=/swagger/">Session Login</a>
<form method="post" action="{{ .LogoutURL }}" style="display:inline"><button type="submit">Logout</button></form>
</nav>
{{- end }}
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
window.ui = SwaggerUIBundle({url: "{{ .SpecURL }}", dom_id: "#swagger-ui"});
</script>
</body>
</html>
`))
