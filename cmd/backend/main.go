package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-explorer/internal/config"
	"photo-explorer/internal/explorer"
	"photo-explorer/internal/logging"
	"photo-explorer/internal/media"
	"photo-explorer/internal/server"
	"photo-explorer/internal/storage"
	"photo-explorer/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error("config_invalid", nil, err)
		os.Exit(1)
	}

	logging.SetDefault(newLogger(os.Stdout, cfg.Log))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := newStore(ctx, cfg)
	cancel()
	if err != nil {
		logging.Error("storage_init_failed", map[string]any{"storage": cfg.Storage}, err)
		os.Exit(1)
	}

	pool := worker.NewPool(cfg.Workers)
	svc := explorer.NewService(store, pool, media.NewThumbnailer(), explorer.Options{
		SerializeUploads: cfg.SerializeUploads,
	})

	srv, err := server.New(server.Config{
		Addr:              cfg.Addr,
		Service:           svc,
		Build:             server.BuildInfo{Version: cfg.Build.Version, Commit: cfg.Build.Commit},
		Workers:           pool.Size(),
		MaxUploadBytes:    cfg.MaxUploadBytes,
		RateLimitRPS:      cfg.RateLimit.RPS,
		RateLimitBurst:    cfg.RateLimit.Burst,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		ReadTimeout:       cfg.ReadTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	})
	if err != nil {
		logging.Error("server_init_failed", nil, err)
		os.Exit(1)
	}

	// Start the HTTP server in a background goroutine.
	// This allows us to listen for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting", map[string]any{
			"addr":      cfg.Addr,
			"storage":   store.Location(),
			"workers":   pool.Size(),
			"version":   cfg.Build.Version,
			"commit":    cfg.Build.Commit,
			"serialize": cfg.SerializeUploads,
		})
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("shutting_down", map[string]any{"signal": sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.Error("shutdown_error", nil, err)
			os.Exit(1)
		}
		logging.Info("shutdown_complete", nil)
	case err := <-errCh:
		if err != nil {
			logging.Error("server_error", nil, err)
			os.Exit(1)
		}
	}
}

func newLogger(w io.Writer, c config.LogConfig) *logging.Logger {
	return logging.New(w, logging.ParseLevel(c.Level), c.Format == "json")
}

// newStore builds the configured storage backend. The disk root is not
// required to exist yet; /health reports it until it does.
func newStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case config.StorageDisk:
		resolver, err := storage.NewResolver(cfg.UploadPath)
		if err != nil {
			return nil, err
		}
		return storage.NewDisk(resolver), nil
	case config.StorageMinio:
		return storage.NewMinio(ctx, storage.MinioOptions{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}
