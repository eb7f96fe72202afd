package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

//go:generate mockgen -source=shortener.go -destination=mocks/upstream_mock.go -package=mocks

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 200 * time.Millisecond

	mailtoPrefix = "mailto:"
)

var (
	ErrURLRequired = errors.New("url is required")
	ErrNotMailto   = errors.New("only mailto urls are allowed")
	ErrUnavailable = errors.New("shortening service unavailable")
)

// Upstream одна попытка обращения к внешнему сервису сокращения.
type Upstream interface {
	Shorten(ctx context.Context, target string) (string, error)
}

// SleepFunc ожидает d или отмены ctx.
type SleepFunc func(ctx context.Context, d time.Duration) error

type ShortenerService struct {
	Upstream    Upstream
	Logger      *zap.Logger
	MaxAttempts int
	Backoff     time.Duration
	Sleep       SleepFunc
}

func NewShortenerService(up Upstream, logger *zap.Logger, maxAttempts int, backoff time.Duration) *ShortenerService {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if backoff < 0 {
		backoff = DefaultBackoff
	}
	return &ShortenerService{
		Upstream:    up,
		Logger:      logger,
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
		Sleep:       sleepContext,
	}
}

// ValidateMailto пропускает только непустые ссылки со схемой mailto:.
func ValidateMailto(target string) error {
	if target == "" {
		return ErrURLRequired
	}
	if !strings.HasPrefix(target, mailtoPrefix) {
		return ErrNotMailto
	}
	return nil
}

// IsShortURL проверяет ответ сервиса: после обрезки пробелов он начинается с http и не содержит Error.
func IsShortURL(reply string) bool {
	return strings.HasPrefix(strings.TrimSpace(reply), "http") && !strings.Contains(reply, "Error")
}

// Shorten делает до MaxAttempts последовательных попыток, между ними ждёт Backoff × номер попытки.
// Если все попытки неудачны или ctx отменён, возвращает ErrUnavailable.
func (s *ShortenerService) Shorten(ctx context.Context, target string) (string, error) {
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		reply, err := s.Upstream.Shorten(ctx, target)
		switch {
		case err != nil:
			s.Logger.Warn("shortening attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		case IsShortURL(reply):
			return strings.TrimSpace(reply), nil
		default:
			s.Logger.Warn("shortening attempt rejected",
				zap.Int("attempt", attempt),
				zap.String("reply", strings.TrimSpace(reply)),
			)
		}

		if attempt == s.MaxAttempts {
			break
		}
		if err := s.Sleep(ctx, s.Backoff*time.Duration(attempt)); err != nil {
			s.Logger.Warn("retry aborted", zap.Int("attempt", attempt), zap.Error(err))
			break
		}
	}

	s.Logger.Error("shortening service unavailable", zap.Int("attempts", s.MaxAttempts))
	return "", ErrUnavailable
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
