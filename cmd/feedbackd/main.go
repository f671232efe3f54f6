package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"feedback-app/internal/config"
	"feedback-app/internal/dbpool"
	"feedback-app/internal/feedback"
	"feedback-app/internal/httpapi"
	"feedback-app/internal/logger"
	"feedback-app/internal/metrics"
	"feedback-app/internal/session"
)

const defaultConfigPath = "/etc/feedbackd.yaml"

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "feedbackd",
		Short:         "Feedback form service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "config file path (.yaml or .properties)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfgPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the feedback table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), cfgPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("feedbackd v%s\n", httpapi.Version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger and an initialized pool.
func setup(ctx context.Context, cfgPath string) (*config.Config, *zap.Logger, *dbpool.Pool, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build logger: %w", err)
	}

	pool := dbpool.New(poolConfig(cfg.DB), dbpool.WithLogger(log))
	if err := pool.Initialize(ctx); err != nil {
		log.Error("db connect", zap.Error(err))
		_ = log.Sync()
		return nil, nil, nil, fmt.Errorf("db connect: %w", err)
	}
	return cfg, log, pool, nil
}

func migrate(ctx context.Context, cfgPath string) error {
	_, log, pool, err := setup(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer pool.Shutdown()

	if err := feedback.NewRepository(pool, log).Migrate(ctx); err != nil {
		return err
	}
	log.Info("schema up to date")
	return nil
}

func serve(cfgPath string) error {
	cfg, log, pool, err := setup(context.Background(), cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer pool.Shutdown()

	m := metrics.New()
	if err := m.RegisterPool(pool.Config().Name, pool); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}

	secret, err := sessionSecret(cfg.Session, log)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Config:   cfg,
		Store:    feedback.NewRepository(pool, log),
		Pool:     pool,
		Sessions: session.NewManager(secret, cfg.Session.TTL),
		Metrics:  m,
		Log:      log,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("feedback service listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("server shutdown error", zap.Error(err))
	}
	return nil
}

// poolConfig maps the db section onto the pool defaults. Unset fields keep
// the defaults; a max size below the default min idle pulls min idle down.
func poolConfig(db config.DBConfig) dbpool.Config {
	c := dbpool.DefaultConfig()
	c.URL = db.URL
	c.Username = db.Username
	c.Password = db.Password

	p := db.Pool
	if p.Name != "" {
		c.Name = p.Name
	}
	if p.MaxSize > 0 {
		c.MaxPoolSize = p.MaxSize
		if c.MinIdle > c.MaxPoolSize {
			c.MinIdle = c.MaxPoolSize
		}
	}
	if p.MinIdle > 0 {
		c.MinIdle = p.MinIdle
	}
	if p.IdleTimeout > 0 {
		c.IdleTimeout = p.IdleTimeout
	}
	if p.ConnectionTimeout > 0 {
		c.ConnectionTimeout = p.ConnectionTimeout
	}
	if p.HealthCheckPeriod > 0 {
		c.HealthCheckPeriod = p.HealthCheckPeriod
	}
	return c
}

// sessionSecret returns the configured signing key, or a random one when
// none is set. Sessions then do not survive a restart.
func sessionSecret(cfg config.SessionConfig, log *zap.Logger) ([]byte, error) {
	if cfg.Secret != "" {
		return []byte(cfg.Secret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	log.Warn("session.secret not set, using a random key")
	return secret, nil
}
