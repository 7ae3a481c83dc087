package config

import "time"

// Profile selects one of the two settings layouts the project ships with.
type Profile string

const (
	// ProfileUnified is the authoritative layout: env driven hosts, CORS
	// origins and result backend, with a MySQL/SQLite switch.
	ProfileUnified Profile = "unified"
	// ProfileLegacy keeps the older layout: fixed hosts and origins, MySQL only.
	ProfileLegacy Profile = "legacy"
)

// Engine identifies the database backend.
type Engine string

const (
	EngineMySQL  Engine = "mysql"
	EngineSQLite Engine = "sqlite"
)

// Middleware names accepted in Settings.Middleware.
const (
	MiddlewareSecurity       = "security"
	MiddlewareSessions       = "sessions"
	MiddlewareCORS           = "cors"
	MiddlewareCommon         = "common"
	MiddlewareCSRF           = "csrf"
	MiddlewareAuthentication = "authentication"
	MiddlewareMessages       = "messages"
	MiddlewareClickjacking   = "clickjacking"
)

// Installed app names accepted in Settings.InstalledApps.
const (
	AppAdmin         = "admin"
	AppAuth          = "auth"
	AppContentTypes  = "contenttypes"
	AppSessions      = "sessions"
	AppMessages      = "messages"
	AppStaticFiles   = "staticfiles"
	AppRESTFramework = "restframework"
	AppCORSHeaders   = "corsheaders"
	AppSwagger       = "swagger"
	AppListings      = "listings"
)

// REST authentication and permission policy names.
const (
	AuthenticationSession = "session"
	AuthenticationBasic   = "basic"

	PermissionAllowAny                  = "allow_any"
	PermissionIsAuthenticated           = "is_authenticated"
	PermissionIsAdminUser               = "is_admin_user"
	PermissionIsAuthenticatedOrReadOnly = "is_authenticated_or_read_only"
)

// Password validator names.
const (
	ValidatorUserAttributeSimilarity = "user_attribute_similarity"
	ValidatorMinimumLength           = "minimum_length"
	ValidatorCommonPassword          = "common_password"
	ValidatorNumericPassword         = "numeric_password"
)

// Settings aggregates runtime configuration resolved from multiple sources.
type Settings struct {
	Profile            Profile  `yaml:"profile"`
	BaseDir            string   `yaml:"base_dir"`
	SecretKey          string   `yaml:"secret_key"`
	Debug              bool     `yaml:"debug"`
	AllowedHosts       []string `yaml:"allowed_hosts"`
	Database           Database `yaml:"database"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	// CORSAllowCredentials lets allowed origins send cookies and auth headers.
	CORSAllowCredentials bool                `yaml:"cors_allow_credentials"`
	CSRFTrustedOrigins   []string            `yaml:"csrf_trusted_origins"`
	RESTFramework        RESTFramework       `yaml:"rest_framework"`
	Swagger              Swagger             `yaml:"swagger"`
	Celery               Celery              `yaml:"celery"`
	InstalledApps        []string            `yaml:"installed_apps"`
	Middleware           []string            `yaml:"middleware"`
	PasswordValidators   []PasswordValidator `yaml:"password_validators"`
	LanguageCode         string              `yaml:"language_code"`
	TimeZone             string              `yaml:"time_zone"`
	UseI18N              bool                `yaml:"use_i18n"`
	UseTZ                bool                `yaml:"use_tz"`
	StaticURL            string              `yaml:"static_url"`
	Server               Server              `yaml:"server"`
}

// Database describes the single active database connection.
type Database struct {
	Engine   Engine `yaml:"engine"`
	Name     string `yaml:"name"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     string `yaml:"port,omitempty"`
	// SQLMode is applied to every MySQL session when set.
	SQLMode string `yaml:"sql_mode,omitempty"`
}

// RESTFramework holds the default policies applied to /api/ traffic.
type RESTFramework struct {
	DefaultPermissionClasses     []string `yaml:"default_permission_classes"`
	DefaultAuthenticationClasses []string `yaml:"default_authentication_classes"`
}

// SecurityDefinition is a named security scheme advertised in the API schema.
type SecurityDefinition struct {
	Type string `yaml:"type"`
}

// Swagger configures the generated API documentation.
type Swagger struct {
	SecurityDefinitions map[string]SecurityDefinition `yaml:"security_definitions"`
	UseSessionAuth      bool                          `yaml:"use_session_auth"`
	// DefaultInfo names the info object used when a schema view is built
	// without explicit metadata. Empty means the view must supply its own.
	DefaultInfo string `yaml:"default_info,omitempty"`
}

// Celery holds the task-queue broker settings.
type Celery struct {
	BrokerURL        string   `yaml:"broker_url"`
	ResultBackend    string   `yaml:"result_backend"`
	AcceptContent    []string `yaml:"accept_content"`
	TaskSerializer   string   `yaml:"task_serializer"`
	ResultSerializer string   `yaml:"result_serializer"`
}

// PasswordValidator enables a named password rule with optional settings.
type PasswordValidator struct {
	Name    string         `yaml:"name"`
	Options map[string]int `yaml:"options,omitempty"`
}

// Server groups HTTP listener settings.
type Server struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    time.Duration `yaml:"read_header_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	EnableRequestLogging bool          `yaml:"enable_request_logging"`
	EnableH2C            bool          `yaml:"enable_h2c"`
	RateLimitRPS         float64       `yaml:"rate_limit_rps"`
	RateLimitBurst       int           `yaml:"rate_limit_burst"`
}

// HasApp reports whether the named app is installed.
func (s Settings) HasApp(name string) bool {
	for _, app := range s.InstalledApps {
		if app == name {
			return true
		}
	}
	return false
}

// MiddlewareIndex returns the position of the named middleware, or -1.
func (s Settings) MiddlewareIndex(name string) int {
	for i, mw := range s.Middleware {
		if mw == name {
			return i
		}
	}
	return -1
}

// Redacted returns a copy with credentials masked, suitable for printing.
func (s Settings) Redacted() Settings {
	out := s
	if out.SecretKey != "" {
		out.SecretKey = redactedValue
	}
	if out.Database.Password != "" {
		out.Database.Password = redactedValue
	}
	out.Celery.BrokerURL = redactURL(out.Celery.BrokerURL)
	return out
}
