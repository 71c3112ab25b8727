package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/migrate"

	auth "github.com/bankops/backoffice-auth"
	"github.com/bankops/backoffice-auth/config"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("backoffice-auth"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	configPath := os.Getenv("BOA_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg, lgr)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	tokens := auth.NewTokenService(
		[]byte(cfg.Auth.SigningKey),
		cfg.Auth.TokenTTL,
		cfg.Auth.Issuer,
		lgr.GetLogger("tokens"),
	)

	sink := auth.NewLogActivitySink(repo)

	sessions := auth.NewSessionService(repo, hasher, tokens).
		WithActivitySink(sink).
		WithLogger(lgr.GetLogger("sessions"))

	provisioning := auth.NewProvisioningService(repo, buildMailer(cfg, lgr)).
		WithLogger(lgr.GetLogger("provisioning"))

	audit := auth.NewAuditService(repo, lgr.GetLogger("audit"))

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	auth.RegisterRoutes(app,
		auth.WithSessionService(sessions),
		auth.WithProvisioningService(provisioning),
		auth.WithAuditService(audit),
		auth.WithTokenService(tokens),
		auth.WithSecureCookie(cfg.Server.SecureCookie),
		auth.WithControllerLogger(lgr.GetLogger("http")),
	)

	go func() {
		if err := app.Listen(cfg.Server.Addr()); err != nil {
			lgr.GetLogger("server").Error("server stopped: %v", err)
		}
	}()

	lgr.GetLogger("server").Info("listening on %s", cfg.Server.Addr())

	WaitExitSignal()

	if err := app.Shutdown(); err != nil {
		lgr.GetLogger("server").Error("shutdown error: %v", err)
	}
}

func openDatabase(ctx context.Context, cfg *config.Config, lgr *glog.BaseLogger) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(migrationsFS); err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, err
	}
	if !group.IsZero() {
		lgr.GetLogger("migrate").Info("applied migration group %s", group.String())
	}

	return db, nil
}

func buildMailer(cfg *config.Config, lgr *glog.BaseLogger) auth.Mailer {
	if cfg.SMTP.Host == "" {
		return auth.NewLogMailer(cfg.Frontend.BaseURL, lgr.GetLogger("mailer"))
	}
	return auth.NewSMTPMailer(auth.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, cfg.Frontend.BaseURL, lgr.GetLogger("mailer"))
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
