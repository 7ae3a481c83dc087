package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownProfile is returned when the requested settings profile does not exist.
	ErrUnknownProfile = errors.New("unknown settings profile")
	// ErrInvalidSettings wraps every validation failure of the resolved settings.
	ErrInvalidSettings = errors.New("invalid settings")
)

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	SecretKey            string       `yaml:"secret_key"`
	Debug                *bool        `yaml:"debug"`
	AllowedHosts         []string     `yaml:"allowed_hosts"`
	Database             yamlDatabase `yaml:"database"`
	CORSAllowedOrigins   []string     `yaml:"cors_allowed_origins"`
	CORSAllowCredentials *bool        `yaml:"cors_allow_credentials"`
	CSRFTrustedOrigins   []string     `yaml:"csrf_trusted_origins"`
	Celery               yamlCelery   `yaml:"celery"`
	Middleware           []string     `yaml:"middleware"`
	InstalledApps        []string     `yaml:"installed_apps"`
	LanguageCode         string       `yaml:"language_code"`
	TimeZone             string       `yaml:"time_zone"`
	Server               yamlServer   `yaml:"server"`
}

type yamlDatabase struct {
	Engine   string `yaml:"engine"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

type yamlCelery struct {
	BrokerURL     string `yaml:"broker_url"`
	ResultBackend string `yaml:"result_backend"`
}

type yamlServer struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	EnableH2C            *bool         `yaml:"enable_h2c"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	BaseDir        string
	Profile        string
	Port           *string
	Debug          *bool
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load resolves settings from multiple sources with precedence:
// CLI flags > Environment variables (process, then env file) > YAML config > Defaults.
// The database descriptor is selected last, from the final DB_ENGINE value.
func Load(overrides *CLIOverrides) (Settings, error) {
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	baseDir, err := resolveBaseDir(overrides.BaseDir)
	if err != nil {
		return Settings{}, err
	}

	profile, err := resolveProfile(overrides.Profile)
	if err != nil {
		return Settings{}, err
	}

	cfg := defaultSettings(profile, baseDir)

	if overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Settings{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	environ, err := readEnvironment(envFilePath(profile, baseDir))
	if err != nil {
		return Settings{}, fmt.Errorf("read environment: %w", err)
	}
	if err := applyEnvConfig(&cfg, environ); err != nil {
		return Settings{}, fmt.Errorf("apply environment: %w", err)
	}

	applyCLIOverrides(&cfg, overrides)
	selectDatabase(&cfg)

	if err := validateSettings(cfg); err != nil {
		return Settings{}, err
	}

	return cfg, nil
}

func resolveBaseDir(flagValue string) (string, error) {
	dir := strings.TrimSpace(flagValue)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv("BASE_DIR"))
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve base dir: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve base dir: %w", err)
	}
	return abs, nil
}

func resolveProfile(flagValue string) (Profile, error) {
	raw := strings.TrimSpace(flagValue)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("SETTINGS_PROFILE"))
	}
	switch Profile(strings.ToLower(raw)) {
	case "", ProfileUnified:
		return ProfileUnified, nil
	case ProfileLegacy:
		return ProfileLegacy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, raw)
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Settings struct.
func applyYAMLConfig(cfg *Settings, yamlCfg *yamlConfig) {
	if yamlCfg.SecretKey != "" {
		cfg.SecretKey = yamlCfg.SecretKey
	}
	if yamlCfg.Debug != nil {
		cfg.Debug = *yamlCfg.Debug
	}
	if len(yamlCfg.AllowedHosts) > 0 {
		cfg.AllowedHosts = yamlCfg.AllowedHosts
	}
	if len(yamlCfg.CORSAllowedOrigins) > 0 {
		cfg.CORSAllowedOrigins = yamlCfg.CORSAllowedOrigins
	}
	if yamlCfg.CORSAllowCredentials != nil {
		cfg.CORSAllowCredentials = *yamlCfg.CORSAllowCredentials
	}
	if len(yamlCfg.CSRFTrustedOrigins) > 0 {
		cfg.CSRFTrustedOrigins = yamlCfg.CSRFTrustedOrigins
	}
	if len(yamlCfg.Middleware) > 0 {
		cfg.Middleware = yamlCfg.Middleware
	}
	if len(yamlCfg.InstalledApps) > 0 {
		cfg.InstalledApps = yamlCfg.InstalledApps
	}
	if yamlCfg.LanguageCode != "" {
		cfg.LanguageCode = yamlCfg.LanguageCode
	}
	if yamlCfg.TimeZone != "" {
		cfg.TimeZone = yamlCfg.TimeZone
	}

	db := yamlCfg.Database
	if db.Engine != "" {
		cfg.Database.Engine = Engine(db.Engine)
	}
	if db.Name != "" {
		cfg.Database.Name = db.Name
	}
	if db.User != "" {
		cfg.Database.User = db.User
	}
	if db.Password != "" {
		cfg.Database.Password = db.Password
	}
	if db.Host != "" {
		cfg.Database.Host = db.Host
	}
	if db.Port != "" {
		cfg.Database.Port = db.Port
	}

	if yamlCfg.Celery.BrokerURL != "" {
		cfg.Celery.BrokerURL = yamlCfg.Celery.BrokerURL
	}
	if yamlCfg.Celery.ResultBackend != "" {
		cfg.Celery.ResultBackend = yamlCfg.Celery.ResultBackend
	}

	srv := yamlCfg.Server
	if srv.Port != "" {
		cfg.Server.Port = srv.Port
	}
	applyDuration(&cfg.Server.ShutdownGracePeriod, srv.ShutdownGracePeriod)
	applyDuration(&cfg.Server.ReadHeaderTimeout, srv.ReadHeaderTimeout)
	applyDuration(&cfg.Server.WriteTimeout, srv.WriteTimeout)
	applyDuration(&cfg.Server.IdleTimeout, srv.IdleTimeout)
	if srv.EnableRequestLogging != nil {
		cfg.Server.EnableRequestLogging = *srv.EnableRequestLogging
	}
	if srv.EnableH2C != nil {
		cfg.Server.EnableH2C = *srv.EnableH2C
	}
	if srv.RateLimit.RPS != nil {
		cfg.Server.RateLimitRPS = *srv.RateLimit.RPS
	}
	if srv.RateLimit.Burst != nil {
		cfg.Server.RateLimitBurst = *srv.RateLimit.Burst
	}
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Settings, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Server.Port = *overrides.Port
	}

	if overrides.Debug != nil {
		cfg.Debug = *overrides.Debug
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.Server.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.Server.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// selectDatabase turns the raw engine flag into the active descriptor.
// Only the exact value "mysql" keeps the relational backend; anything else
// falls back to the embedded file under the base dir.
func selectDatabase(cfg *Settings) {
	if cfg.Profile == ProfileLegacy {
		cfg.Database.Engine = EngineMySQL
		return
	}
	if cfg.Database.Engine == EngineMySQL {
		return
	}
	cfg.Database = Database{
		Engine: EngineSQLite,
		Name:   filepath.Join(cfg.BaseDir, SQLiteFileName),
	}
}
