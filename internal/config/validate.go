package config

import (
	"fmt"
	"strconv"
	"time"
)

var (
	knownMiddleware = setOf(defaultMiddleware...)
	knownApps       = setOf(defaultInstalledApps...)
	knownAuth       = setOf(AuthenticationSession, AuthenticationBasic)
	knownPerms      = setOf(
		PermissionAllowAny,
		PermissionIsAuthenticated,
		PermissionIsAdminUser,
		PermissionIsAuthenticatedOrReadOnly,
	)
	knownValidators = setOf(
		ValidatorUserAttributeSimilarity,
		ValidatorMinimumLength,
		ValidatorCommonPassword,
		ValidatorNumericPassword,
	)
)

// validateSettings validates the final configuration.
func validateSettings(cfg Settings) error {
	if cfg.SecretKey == "" {
		return invalid("SECRET_KEY must not be empty")
	}
	if cfg.Server.RateLimitRPS < 0 {
		return invalid("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.Server.RateLimitBurst < 0 {
		return invalid("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.Server.Port == "" {
		return invalid("PORT must not be empty")
	}

	switch cfg.Database.Engine {
	case EngineMySQL:
		if cfg.Database.Name == "" {
			return invalid("DB_NAME must not be empty")
		}
		if port, err := strconv.Atoi(cfg.Database.Port); err != nil || port <= 0 || port > 65535 {
			return invalid(fmt.Sprintf("DB_PORT %q is not a valid port", cfg.Database.Port))
		}
	case EngineSQLite:
		if cfg.Database.Name == "" {
			return invalid("sqlite database path must not be empty")
		}
	default:
		return invalid(fmt.Sprintf("unsupported database engine %q", cfg.Database.Engine))
	}

	seen := make(map[string]struct{}, len(cfg.Middleware))
	for _, name := range cfg.Middleware {
		if _, ok := knownMiddleware[name]; !ok {
			return invalid(fmt.Sprintf("unknown middleware %q", name))
		}
		if _, dup := seen[name]; dup {
			return invalid(fmt.Sprintf("middleware %q listed twice", name))
		}
		seen[name] = struct{}{}
	}
	for _, name := range cfg.InstalledApps {
		if _, ok := knownApps[name]; !ok {
			return invalid(fmt.Sprintf("unknown installed app %q", name))
		}
	}
	for _, name := range cfg.RESTFramework.DefaultAuthenticationClasses {
		if _, ok := knownAuth[name]; !ok {
			return invalid(fmt.Sprintf("unknown authentication class %q", name))
		}
	}
	for _, name := range cfg.RESTFramework.DefaultPermissionClasses {
		if _, ok := knownPerms[name]; !ok {
			return invalid(fmt.Sprintf("unknown permission class %q", name))
		}
	}
	for _, v := range cfg.PasswordValidators {
		if _, ok := knownValidators[v.Name]; !ok {
			return invalid(fmt.Sprintf("unknown password validator %q", v.Name))
		}
	}

	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return invalid(fmt.Sprintf("TIME_ZONE %q: %v", cfg.TimeZone, err))
	}

	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSettings, msg)
}

func setOf(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
