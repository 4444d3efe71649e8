// Package server wires the account services to their stores, gates and
// transports, and runs the HTTP and gRPC servers until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/logging"
	"github.com/dmitrijs2005/taskmanager/internal/server/admission"
	"github.com/dmitrijs2005/taskmanager/internal/server/captcha"
	"github.com/dmitrijs2005/taskmanager/internal/server/config"
	"github.com/dmitrijs2005/taskmanager/internal/server/hasher"
	"github.com/dmitrijs2005/taskmanager/internal/server/httpapi"
	"github.com/dmitrijs2005/taskmanager/internal/server/lockout"
	"github.com/dmitrijs2005/taskmanager/internal/server/mail"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/taskmanager/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskmanager/internal/server/services"
	"github.com/dmitrijs2005/taskmanager/internal/server/session"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/taskmanager/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger

	db    *sql.DB
	redis *redis.Client

	httpServer *httpapi.HTTPServer
	grpcServer *gs.GRPCServer
}

// NewApp validates c and builds every component. Configuration problems
// are returned wrapped in common.ErrConfigurationFatal.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(logging.Options{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
	})

	app := &App{config: c, logger: logger}

	repo, err := app.openRepository(ctx)
	if err != nil {
		return nil, err
	}

	h, err := hasher.New(hasher.Config{Pepper: []byte(c.PasswordPepper), Cost: c.BcryptCost})
	if err != nil {
		app.Close()
		return nil, err
	}
	issuer, err := session.NewIssuer(session.Config{
		Secret:       []byte(c.SessionSecret),
		TTL:          c.SessionTTL,
		InsecureHTTP: !c.CookieSecure,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	dispatcher, err := app.newDispatcher(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	opts := services.Options{
		Lockout:      lockout.Policy{Threshold: c.LockoutThreshold, Duration: c.LockoutDuration},
		ResetTTL:     c.ResetTokenTTL,
		ResetURLBase: c.ResetURLBase,
		Logger:       logger,
	}
	auth, err := services.NewAuthService(repo, h, issuer, opts)
	if err != nil {
		app.Close()
		return nil, err
	}
	reset := services.NewResetService(repo, h, dispatcher, opts)
	admin := services.NewAdminService(repo, h, dispatcher, opts)

	loginGate, generalGate, err := app.newGates()
	if err != nil {
		app.Close()
		return nil, err
	}

	verifier := app.newVerifier(ctx)

	app.httpServer = httpapi.NewHTTPServer(c.EndpointAddrHTTP, httpapi.Deps{
		Auth:              auth,
		Reset:             reset,
		Admin:             admin,
		Cookie:            issuer.Cookie(),
		LoginGate:         loginGate,
		GeneralGate:       generalGate,
		Captcha:           verifier,
		Failures:          captcha.NewFailureTracker(c.CaptchaThreshold, time.Hour),
		AllowedOrigins:    c.AllowedOrigins,
		TrustProxyHeaders: c.TrustProxyHeaders,
		MetricsEnabled:    c.MetricsEnabled,
		Logger:            logger,
	})
	app.grpcServer = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, auth, reset, gs.Gates{Login: loginGate, General: generalGate})

	return app, nil
}

// newVerifier picks the human check used after repeated failed logins. A nil
// verifier turns the check off.
func (app *App) newVerifier(ctx context.Context) captcha.Verifier {
	c := app.config
	switch {
	case c.CaptchaSecret != "":
		return captcha.NewRecaptchaVerifier(c.CaptchaSecret)
	case c.CaptchaStaticToken != "":
		app.logger.Warn(ctx, "captcha accepts a static development token")
		return captcha.StaticVerifier{Token: c.CaptchaStaticToken}
	default:
		app.logger.Warn(ctx, "captcha disabled, no captcha secret configured", "threshold", c.CaptchaThreshold)
		return nil
	}
}

// openRepository returns the Postgres store, migrated, when a DSN is set
// and the in-memory store otherwise.
func (app *App) openRepository(ctx context.Context) (accounts.Repository, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database configured, accounts are kept in memory")
		return accounts.NewMemoryRepository(nil), nil
	}

	db, err := repomanager.Open(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	app.db = db
	return rm.Accounts(db), nil
}

func (app *App) newDispatcher(ctx context.Context) (mail.Dispatcher, error) {
	c := app.config
	switch c.MailBackend {
	case config.MailSMTP:
		return mail.NewSMTPDispatcher(mail.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			User:     c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.MailFrom,
		}), nil
	case config.MailS3:
		return mail.NewS3OutboxDispatcher(ctx, mail.S3Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			From:         c.MailFrom,
		})
	default:
		return mail.NewLogDispatcher(app.logger), nil
	}
}

func (app *App) newGates() (login admission.Gate, general admission.Gate, err error) {
	c := app.config
	loginPolicy := admission.Policy{Name: admission.Login().Name, Limit: c.LoginLimit, Window: c.LoginWindow}
	generalPolicy := admission.Policy{Name: admission.General().Name, Limit: c.GeneralLimit, Window: c.GeneralWindow}

	if c.AdmissionBackend == config.AdmissionRedis {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		return admission.NewRedisGate(app.redis, loginPolicy), admission.NewRedisGate(app.redis, generalPolicy), nil
	}

	if login, err = admission.NewMemoryGate(loginPolicy, 0, nil); err != nil {
		return nil, nil, err
	}
	if general, err = admission.NewMemoryGate(generalPolicy, 0, nil); err != nil {
		return nil, nil, err
	}
	return login, general, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Close releases the database and redis connections.
func (app *App) Close() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "closing database", "error", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(context.Background(), "closing redis", "error", err)
		}
	}
}

// Run serves HTTP and gRPC until ctx is cancelled, a signal arrives or one
// of the servers fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	run := func(name string, serve func(context.Context) error) {
		defer wg.Done()
		if err := serve(ctx); err != nil {
			app.logger.Error(ctx, name+" server failed", "error", err)
			cancelFunc()
		}
	}

	wg.Add(2)
	go run("HTTP", app.httpServer.Run)
	go run("gRPC", app.grpcServer.Run)

	wg.Wait()
	app.Close()

	app.logger.Info(ctx, "App stopped")
}
