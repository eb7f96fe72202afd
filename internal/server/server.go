package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultShutdownTimeout = 10 * time.Second

type serverConfig struct {
	shutdownTimeout time.Duration
	onShutdown      []func(context.Context)
}

type Option func(*serverConfig)

func WithShutdownTimeout(timeout time.Duration) Option {
	return func(c *serverConfig) {
		if timeout > 0 {
			c.shutdownTimeout = timeout
		}
	}
}

// WithOnShutdown регистрирует функцию, которая будет вызвана при остановке вместе с HTTP-сервером.
func WithOnShutdown(fn func(context.Context)) Option {
	return func(c *serverConfig) {
		c.onShutdown = append(c.onShutdown, fn)
	}
}

// Run запускает server и блокируется до ошибки ListenAndServe или отмены ctx,
// после чего останавливает сервер в пределах таймаута.
func Run(ctx context.Context, server *http.Server, logger *zap.Logger, opts ...Option) error {
	cfg := serverConfig{shutdownTimeout: defaultShutdownTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("Server started", zap.String("address", server.Addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to listen and serve: %w", err)
	case <-ctx.Done():
		return stopGracefully(server, logger, &cfg)
	}
}

func stopGracefully(server *http.Server, logger *zap.Logger, cfg *serverConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()

	logger.Info("Stopping the server...")
	for _, fn := range cfg.onShutdown {
		fn(ctx)
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Stopped the server successfully")
	return nil
}
