package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/activitymap"
	"github.com/goliatone/go-credentials/config"
	"github.com/goliatone/go-credentials/directory"
	"github.com/goliatone/go-credentials/ephemeral"
	"github.com/goliatone/go-credentials/httpapi"
	"github.com/goliatone/go-credentials/metrics"
	"github.com/goliatone/go-credentials/notifier"
	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	logger := credentials.DefaultLogger()

	store, closeStore, err := newEphemeralStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	db, err := newDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewActivityCollector(reg)
	activity := credentials.NewActivityFanout(collector, activitymap.NewLogSink(logger))

	users := directory.NewRepository(db, directory.WithLogger(logger))
	mailer := notifier.NewLogNotifier(logger)

	revocation := credentials.NewRevocationRegistry(cfg.GetRevocationBackend(), store, logger)
	tokens := credentials.NewTokenAuthority(cfg, revocation, credentials.WithTokenLogger(logger))
	ledger := credentials.NewCodeLedger(store,
		credentials.WithCodeExpiration(cfg.GetCodeExpiration()),
		credentials.WithCodeMaxAttempts(cfg.GetCodeMaxAttempts()),
		credentials.WithLedgerLogger(logger),
	)
	pending := credentials.NewPendingStore(store,
		credentials.WithPendingTTL(cfg.GetPendingRegistrationTTL()),
		credentials.WithPendingLogger(logger),
	)

	handlers := httpapi.Handlers{
		Tokens: tokens,
		Preregister: credentials.NewPreregisterHandler(users, pending, tokens, mailer).
			WithActivitySink(activity).
			WithLogger(logger),
		ConfirmRegistration: credentials.NewConfirmRegistrationHandler(users, pending, tokens, mailer).
			WithActivitySink(activity).
			WithLogger(logger),
		RequestRecoveryCode: credentials.NewRequestRecoveryCodeHandler(users, ledger, mailer).
			WithActivitySink(activity).
			WithLogger(logger),
		VerifyRecoveryCode: credentials.NewVerifyRecoveryCodeHandler(ledger, tokens).
			WithRecoveryTokenHours(cfg.RecoveryTokenHours()).
			WithActivitySink(activity).
			WithLogger(logger),
		ResetPassword: credentials.NewResetPasswordHandler(users, tokens).
			WithActivitySink(activity).
			WithLogger(logger),
		Login: credentials.NewLoginHandler(users, tokens).
			WithActivitySink(activity).
			WithLogger(logger),
		RemindUsername: credentials.NewRemindUsernameHandler(users, mailer).
			WithActivitySink(activity).
			WithLogger(logger),
		Logout: credentials.NewLogoutHandler(tokens).
			WithActivitySink(activity).
			WithLogger(logger),
	}

	limiter := httpapi.NewRateLimiter(httpapi.RateLimiterConfig{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Burst:             cfg.RateLimitBurst,
	}, httpapi.WithRateLimiterLogger(logger))
	defer limiter.Stop()

	app := httpapi.NewApp(httpapi.NewController(handlers,
		httpapi.WithLogger(logger),
		httpapi.WithRateLimiter(limiter),
		httpapi.WithRequestObserver(collector),
	))
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(reg)))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("credentials service listening on %s (%s)", cfg.HTTPAddr, cfg.Environment)
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-waitExitSignal():
		logger.Info("received %s, shutting down", sig)
	}

	return app.ShutdownWithTimeout(10 * time.Second)
}

func newEphemeralStore(ctx context.Context, cfg config.Config) (ephemeral.Store, func(), error) {
	if cfg.StoreBackend == "memory" {
		return ephemeral.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryOperation, "redis ping failed")
	}

	return ephemeral.NewRedisStore(client), func() { _ = client.Close() }, nil
}

func newDatabase(ctx context.Context, cfg config.Config) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := directory.CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func waitExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
