package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Totarae/MailtoShortener/internal/config"
	"github.com/Totarae/MailtoShortener/internal/grpc/health"
	"github.com/Totarae/MailtoShortener/internal/handlers"
	"github.com/Totarae/MailtoShortener/internal/logger"
	"github.com/Totarae/MailtoShortener/internal/router"
	"github.com/Totarae/MailtoShortener/internal/server"
	"github.com/Totarae/MailtoShortener/internal/service"
	"github.com/Totarae/MailtoShortener/internal/upstream"
)

func main() {
	// Инициализация конфигурации
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer zl.Sync()

	zl.Info("Инициализация конфигурации",
		zap.String("server_address", cfg.ServerAddress),
		zap.String("shortener_url", cfg.ShortenerURL),
		zap.Int("attempts", cfg.ShortenerAttempts),
		zap.Duration("backoff", cfg.ShortenerBackoff),
		zap.Duration("timeout", cfg.ShortenerTimeout),
		zap.String("grpc_address", cfg.GRPCAddress),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router.NewRouter(newHandler(cfg, zl), zl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var opts []server.Option
	opts = append(opts, server.WithShutdownTimeout(cfg.ShutdownTimeout))
	if cfg.GRPCAddress != "" {
		hs := health.NewServer(zl)
		go func() {
			if err := hs.ListenAndServe(cfg.GRPCAddress); err != nil {
				zl.Error("gRPC health server failed", zap.Error(err))
			}
		}()
		opts = append(opts, server.WithOnShutdown(hs.Shutdown))
	}

	if err := server.Run(ctx, srv, zl, opts...); err != nil {
		zl.Fatal("Ошибка при запуске сервера", zap.Error(err))
	}
}

// newHandler связывает клиента is.gd, цикл повторов и HTTP-обработчик.
func newHandler(cfg *config.Config, zl *zap.Logger) *handlers.Handler {
	client := upstream.NewClient(cfg.ShortenerURL, upstream.WithTimeout(cfg.ShortenerTimeout))
	svc := service.NewShortenerService(client, zl, cfg.ShortenerAttempts, cfg.ShortenerBackoff)
	return handlers.NewHandler(svc, zl)
}
