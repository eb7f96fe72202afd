// Package shortener экспортирует serverless-функцию сокращения mailto-ссылок.
//
// Handle имеет сигнатуру net/http и подходит для Go-рантаймов FaaS (например, Scaleway Functions).
// Настройки читаются из переменных окружения, см. internal/config.
package shortener

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Totarae/MailtoShortener/internal/config"
	"github.com/Totarae/MailtoShortener/internal/handlers"
	"github.com/Totarae/MailtoShortener/internal/logger"
	"github.com/Totarae/MailtoShortener/internal/model"
	"github.com/Totarae/MailtoShortener/internal/service"
	"github.com/Totarae/MailtoShortener/internal/upstream"
)

var (
	initOnce sync.Once
	fn       *handlers.Handler
	fnLogger = zap.NewNop()
)

// setup собирает обработчик один раз на экземпляр функции.
func setup() {
	cfg, err := config.FromEnv()
	if err != nil {
		l, lerr := zap.NewProduction()
		if lerr != nil {
			l = zap.NewNop()
		}
		l.Error("invalid function configuration", zap.Error(err))
		fnLogger = l
		return
	}
	// уровень уже проверен в Validate, ошибка здесь означает сбой сборки логгера
	l, err := logger.New(cfg.LogLevel)
	if err != nil {
		l = zap.NewNop()
	}
	fnLogger = l

	client := upstream.NewClient(cfg.ShortenerURL, upstream.WithTimeout(cfg.ShortenerTimeout))
	svc := service.NewShortenerService(client, l, cfg.ShortenerAttempts, cfg.ShortenerBackoff)
	fn = handlers.NewHandler(svc, l)
}

// Handle точка входа serverless-функции.
func Handle(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(setup)

	if fn == nil {
		// без конфигурации ответ всё равно должен нести CORS-заголовки
		_ = model.NewErrorResponse(http.StatusInternalServerError, "Failed to create short URL").Write(w)
		return
	}

	h := *fn
	h.Logger = fnLogger.With(zap.String("invocation_id", uuid.NewString()))
	h.Service = withLogger(fn.Service, h.Logger)
	h.ServeHTTP(w, r)
}

// withLogger привязывает логгер вызова к циклу повторов, чтобы попытки было видно в одном контексте.
func withLogger(s handlers.Shortener, l *zap.Logger) handlers.Shortener {
	svc, ok := s.(*service.ShortenerService)
	if !ok {
		return s
	}
	scoped := *svc
	scoped.Logger = l
	return &scoped
}
