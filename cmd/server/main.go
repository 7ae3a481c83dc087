package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/alx-travel/internal/application"
	"github.com/eugenenazirov/alx-travel/internal/auth"
	"github.com/eugenenazirov/alx-travel/internal/checks"
	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/database"
	"github.com/eugenenazirov/alx-travel/internal/logging"
	"github.com/eugenenazirov/alx-travel/internal/storage"
)

var signalNotify = signal.Notify

var errChecksFailed = errors.New("system check identified errors")

// cli holds the parsed command line.
type cli struct {
	app *kingpin.Application

	configFile     *string
	baseDir        *string
	profile        *string
	port           *string
	debug          *bool
	debugSet       bool
	rateLimitRPS   *float64
	rateLimitBurst *int

	serve    *kingpin.CmdClause
	check    *kingpin.CmdClause
	deploy   *bool
	migrate  *kingpin.CmdClause
	settings *kingpin.CmdClause

	createSuperuser *kingpin.CmdClause
	username        *string
	email           *string
	password        *string
}

func newCLI() *cli {
	c := &cli{app: kingpin.New("alx-travel", "Travel listings backend: admin, REST API, schema docs and task dispatch")}

	c.configFile = c.app.Flag("config", "Path to YAML configuration file").String()
	c.baseDir = c.app.Flag("base-dir", "Project base directory holding .env, db.sqlite3 and static/").String()
	c.profile = c.app.Flag("profile", "Settings profile (unified or legacy)").Envar("SETTINGS_PROFILE").String()
	c.port = c.app.Flag("port", "HTTP port exposed by the service").String()
	c.debug = c.app.Flag("debug", "Enable debug mode (--no-debug forces it off)").IsSetByUser(&c.debugSet).Bool()
	c.rateLimitRPS = c.app.Flag("rate-limit-rps", "Requests per second allowed on /api/ (set 0 to disable)").Default("-1").Float64()
	c.rateLimitBurst = c.app.Flag("rate-limit-burst", "Burst capacity for the /api/ rate limiter").Default("-1").Int()

	c.serve = c.app.Command("serve", "Run the HTTP server").Default()
	c.check = c.app.Command("check", "Inspect settings for problems")
	c.deploy = c.check.Flag("deploy", "Include deployment checks").Bool()
	c.migrate = c.app.Command("migrate", "Create or update the database schema")
	c.settings = c.app.Command("settings", "Print resolved settings with credentials masked")

	c.createSuperuser = c.app.Command("createsuperuser", "Create an admin account")
	c.username = c.createSuperuser.Flag("username", "Login name").Required().String()
	c.email = c.createSuperuser.Flag("email", "Email address").String()
	c.password = c.createSuperuser.Flag("password", "Password (or SUPERUSER_PASSWORD)").Envar("SUPERUSER_PASSWORD").Required().String()

	return c
}

func (c *cli) overrides() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile: *c.configFile,
		BaseDir:    *c.baseDir,
		Profile:    *c.profile,
	}
	if *c.port != "" {
		overrides.Port = c.port
	}
	if c.debugSet {
		overrides.Debug = c.debug
	}
	if *c.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = c.rateLimitRPS
	}
	if *c.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = c.rateLimitBurst
	}
	return overrides
}

func main() {
	c := newCLI()
	command := kingpin.MustParse(c.app.Parse(os.Args[1:]))

	cfg, err := config.Load(c.overrides())
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()
	switch command {
	case c.check.FullCommand():
		err = runCheck(os.Stdout, cfg, *c.deploy)
	case c.migrate.FullCommand():
		err = runMigrate(ctx, cfg, logger)
	case c.settings.FullCommand():
		err = runSettings(os.Stdout, cfg)
	case c.createSuperuser.FullCommand():
		err = runCreateSuperuser(ctx, cfg, logger, *c.username, *c.email, *c.password)
	default:
		err = runServe(ctx, cfg, logger)
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("command", command), zap.Error(err))
	}
}

func runServe(ctx context.Context, cfg config.Settings, logger *zap.Logger) error {
	app, err := application.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("release resources", zap.Error(err))
		}
	}()

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdown(app.Server(), cfg.Server.ShutdownGracePeriod, logger)
	return nil
}

func runCheck(out io.Writer, cfg config.Settings, deploy bool) error {
	msgs := checks.Run(cfg)
	if deploy && cfg.Debug {
		msgs = append(msgs, checks.Deploy(cfg)...)
	}

	if len(msgs) == 0 {
		fmt.Fprintln(out, "System check identified no issues.")
		return nil
	}

	fmt.Fprintln(out, "System check identified some issues:")
	for _, m := range msgs {
		fmt.Fprintln(out, m.String())
	}
	fmt.Fprintf(out, "\nSystem check identified %d issue(s).\n", len(msgs))

	if checks.HasErrors(msgs) {
		return errChecksFailed
	}
	return nil
}

func runMigrate(ctx context.Context, cfg config.Settings, logger *zap.Logger) error {
	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, cfg.Database.Engine); err != nil {
		return err
	}
	logger.Info("migrations applied", zap.String("engine", string(cfg.Database.Engine)))
	return nil
}

func runSettings(out io.Writer, cfg config.Settings) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return enc.Close()
}

func runCreateSuperuser(ctx context.Context, cfg config.Settings, logger *zap.Logger, username, email, password string) error {
	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, cfg.Database.Engine); err != nil {
		return err
	}

	user, err := createSuperuser(ctx, storage.NewSQLStorage(db), cfg.PasswordValidators, username, email, password)
	if err != nil {
		return err
	}
	logger.Info("superuser created", zap.Int64("id", user.ID), zap.String("username", user.Username))
	return nil
}

func createSuperuser(ctx context.Context, users storage.UserStore, specs []config.PasswordValidator, username, email, password string) (storage.User, error) {
	validators, err := auth.NewPasswordValidators(specs)
	if err != nil {
		return storage.User{}, err
	}

	user := storage.User{
		Username:    username,
		Email:       email,
		IsStaff:     true,
		IsSuperuser: true,
		IsActive:    true,
		DateJoined:  time.Now().UTC(),
	}
	if err := auth.ValidatePassword(validators, password, &user); err != nil {
		return storage.User{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return storage.User{}, err
	}
	user.PasswordHash = hash

	return users.CreateUser(ctx, user)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
