package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// environment lists every variable the settings loader consumes. Fields are
// pre-populated from the current settings, so unset variables keep them.
type environment struct {
	SecretKey            string        `env:"SECRET_KEY"`
	Debug                bool          `env:"DEBUG"`
	AllowedHosts         []string      `env:"ALLOWED_HOSTS"`
	DBEngine             string        `env:"DB_ENGINE"`
	DBName               string        `env:"DB_NAME"`
	DBUser               string        `env:"DB_USER"`
	DBPassword           string        `env:"DB_PASSWORD"`
	DBHost               string        `env:"DB_HOST"`
	DBPort               string        `env:"DB_PORT"`
	CORSAllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS"`
	CORSAllowCredentials bool          `env:"CORS_ALLOW_CREDENTIALS"`
	CSRFTrustedOrigins   []string      `env:"CSRF_TRUSTED_ORIGINS"`
	CeleryBrokerURL      string        `env:"CELERY_BROKER_URL"`
	CeleryResultBackend  string        `env:"CELERY_RESULT_BACKEND"`
	LanguageCode         string        `env:"LANGUAGE_CODE"`
	TimeZone             string        `env:"TIME_ZONE"`
	Port                 string        `env:"PORT"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD"`
	RateLimitRPS         float64       `env:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `env:"RATE_LIMIT_BURST"`
}

// readEnvironment merges the env file (if any) with the process environment.
// Process variables win; the file only supplies keys that are not set.
func readEnvironment(path string) (map[string]string, error) {
	merged := map[string]string{}

	fileVars, err := godotenv.Read(path)
	switch {
	case err == nil:
		for k, v := range fileVars {
			merged[k] = v
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}

	for k, v := range env.ToMap(os.Environ()) {
		merged[k] = v
	}

	return merged, nil
}

// applyEnvConfig applies environment variable configuration. The legacy
// profile hard-codes hosts, CORS origins, engine and result backend, so those
// variables are ignored there.
func applyEnvConfig(cfg *Settings, environ map[string]string) error {
	e := environment{
		SecretKey:            cfg.SecretKey,
		Debug:                cfg.Debug,
		AllowedHosts:         cfg.AllowedHosts,
		DBEngine:             string(cfg.Database.Engine),
		DBName:               cfg.Database.Name,
		DBUser:               cfg.Database.User,
		DBPassword:           cfg.Database.Password,
		DBHost:               cfg.Database.Host,
		DBPort:               cfg.Database.Port,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		CORSAllowCredentials: cfg.CORSAllowCredentials,
		CSRFTrustedOrigins:   cfg.CSRFTrustedOrigins,
		CeleryBrokerURL:      cfg.Celery.BrokerURL,
		CeleryResultBackend:  cfg.Celery.ResultBackend,
		LanguageCode:         cfg.LanguageCode,
		TimeZone:             cfg.TimeZone,
		Port:                 cfg.Server.Port,
		ShutdownGracePeriod:  cfg.Server.ShutdownGracePeriod,
		RateLimitRPS:         cfg.Server.RateLimitRPS,
		RateLimitBurst:       cfg.Server.RateLimitBurst,
	}

	err := env.ParseWithOptions(&e, env.Options{
		Environment: environ,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(false): func(v string) (interface{}, error) {
				return parseBool(v), nil
			},
		},
	})
	if err != nil {
		return err
	}
	applyBlank(&e, environ)

	cfg.SecretKey = e.SecretKey
	cfg.Debug = e.Debug
	cfg.Database.Name = e.DBName
	cfg.Database.User = e.DBUser
	cfg.Database.Password = e.DBPassword
	cfg.Database.Host = e.DBHost
	cfg.Database.Port = e.DBPort
	cfg.CORSAllowCredentials = e.CORSAllowCredentials
	cfg.CSRFTrustedOrigins = trimAll(e.CSRFTrustedOrigins)
	cfg.Celery.BrokerURL = e.CeleryBrokerURL
	cfg.LanguageCode = e.LanguageCode
	cfg.TimeZone = e.TimeZone
	cfg.Server.Port = strings.TrimSpace(e.Port)
	cfg.Server.ShutdownGracePeriod = e.ShutdownGracePeriod
	cfg.Server.RateLimitRPS = e.RateLimitRPS
	cfg.Server.RateLimitBurst = e.RateLimitBurst

	if cfg.Profile != ProfileLegacy {
		cfg.AllowedHosts = trimAll(e.AllowedHosts)
		cfg.CORSAllowedOrigins = trimAll(e.CORSAllowedOrigins)
		cfg.Database.Engine = Engine(e.DBEngine)
		cfg.Celery.ResultBackend = e.CeleryResultBackend
	}

	return nil
}

// applyBlank assigns variables that are set to an empty value. The env parser
// skips those and keeps the default, but a blank DEBUG still means false, a
// blank list means no entries and a blank DB_ENGINE selects sqlite. Port and
// tuning variables keep their defaults when blank.
func applyBlank(e *environment, environ map[string]string) {
	blank := func(key string) bool {
		v, ok := environ[key]
		return ok && strings.TrimSpace(v) == ""
	}

	if blank("DEBUG") {
		e.Debug = false
	}
	if blank("CORS_ALLOW_CREDENTIALS") {
		e.CORSAllowCredentials = false
	}
	if blank("ALLOWED_HOSTS") {
		e.AllowedHosts = []string{}
	}
	if blank("CORS_ALLOWED_ORIGINS") {
		e.CORSAllowedOrigins = []string{}
	}
	if blank("CSRF_TRUSTED_ORIGINS") {
		e.CSRFTrustedOrigins = []string{}
	}
	if blank("DB_ENGINE") {
		e.DBEngine = ""
	}
	for key, field := range map[string]*string{
		"SECRET_KEY":            &e.SecretKey,
		"DB_NAME":               &e.DBName,
		"DB_USER":               &e.DBUser,
		"DB_PASSWORD":           &e.DBPassword,
		"DB_HOST":               &e.DBHost,
		"CELERY_BROKER_URL":     &e.CeleryBrokerURL,
		"CELERY_RESULT_BACKEND": &e.CeleryResultBackend,
	} {
		if blank(key) {
			*field = ""
		}
	}
}

// parseBool accepts the spellings commonly used in env files; anything else is false.
func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "on", "ok", "y", "yes", "1":
		return true
	default:
		return false
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
