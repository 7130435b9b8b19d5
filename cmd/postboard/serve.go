package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/alphabot-ai/postboard/internal/auth"
	"github.com/alphabot-ai/postboard/internal/cache"
	"github.com/alphabot-ai/postboard/internal/clock"
	"github.com/alphabot-ai/postboard/internal/config"
	httpapp "github.com/alphabot-ai/postboard/internal/http"
	"github.com/alphabot-ai/postboard/internal/logging"
	"github.com/alphabot-ai/postboard/internal/posts"
	"github.com/alphabot-ai/postboard/internal/store"
	"github.com/alphabot-ai/postboard/internal/store/postgres"
	"github.com/alphabot-ai/postboard/internal/store/sqlite"
	"github.com/alphabot-ai/postboard/internal/token"
)

func runServer(args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file (default: $POSTBOARD_CONFIG)")
	addr := fs.String("addr", "", "Listen address, overrides config")
	logLevel := fs.String("log-level", "", "Log level, overrides config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	signer, err := token.NewSigner(cfg.TokenAlg, []byte(cfg.SigningKey))
	if err != nil {
		return err
	}
	codec := token.NewCodec(signer, cfg.TokenTTL, clock.Real())
	if cfg.SigningKey == config.DevSigningKey {
		logger.Warn("using the development signing key; set POSTBOARD_SIGNING_KEY")
	}

	authSvc := auth.NewService(st, codec, auth.Options{BcryptCost: cfg.BcryptCost, Logger: logger})
	postSvc := posts.NewService(st, posts.Options{MaxPageSize: cfg.MaxPageSize, Logger: logger})

	server, err := httpapp.NewServer(authSvc, postSvc, codec, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("postboard listening", "addr", cfg.Addr, "store", cfg.StoreDriver, "token_alg", codec.Alg())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}
	return nil
}

// openStore opens the configured backend and, when REDIS_URL is set,
// fronts it with the post cache.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	var st store.Store
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st = pg
	default:
		lite, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
		}
		st = lite
	}

	if cfg.RedisURL == "" {
		return st, nil
	}
	rc, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("post cache enabled", "ttl", cfg.CacheTTL)
	return cache.New(st, rc, cfg.CacheTTL, logger), nil
}
