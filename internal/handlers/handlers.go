package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Totarae/MailtoShortener/internal/model"
	"github.com/Totarae/MailtoShortener/internal/service"
)

// DefaultMaxBodySize ограничивает размер тела входящего запроса.
const DefaultMaxBodySize = 64 << 10

// Тексты ошибок, которые видит клиент.
const (
	msgMethodNotAllowed = "Method not allowed"
	msgURLRequired      = "URL is required"
	msgOnlyMailto       = "Only mailto URLs are allowed"
	msgUnavailable      = "URL shortening service temporarily unavailable. Please try again later."
	msgFailed           = "Failed to create short URL"
)

var errURLNotString = errors.New("url field is not a string")

// Shortener сокращает проверенную mailto-ссылку.
type Shortener interface {
	Shorten(ctx context.Context, target string) (string, error)
}

type Handler struct {
	Service     Shortener
	Logger      *zap.Logger
	MaxBodySize int64
}

func NewHandler(svc Shortener, logger *zap.Logger) *Handler {
	return &Handler{
		Service:     svc,
		Logger:      logger,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// Handle превращает метод и тело запроса в ответ. Любая ошибка или паника
// внутри превращается в 500, так что ответ есть всегда и всегда с CORS-заголовками.
func (h *Handler) Handle(ctx context.Context, method string, body []byte) (resp model.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			h.Logger.Error("shortening panic", zap.Any("panic", rec))
			resp = model.NewErrorResponse(http.StatusInternalServerError, msgFailed)
		}
	}()

	switch method {
	case http.MethodOptions:
		return model.NewResponse(http.StatusOK, nil)
	case http.MethodPost:
	default:
		return model.NewErrorResponse(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}

	target, err := decodeTarget(body)
	if err != nil {
		return h.failed(err)
	}

	if err := service.ValidateMailto(target); err != nil {
		switch {
		case errors.Is(err, service.ErrURLRequired):
			return model.NewErrorResponse(http.StatusBadRequest, msgURLRequired)
		case errors.Is(err, service.ErrNotMailto):
			return model.NewErrorResponse(http.StatusBadRequest, msgOnlyMailto)
		default:
			return h.failed(err)
		}
	}

	short, err := h.Service.Shorten(ctx, target)
	if err != nil {
		if errors.Is(err, service.ErrUnavailable) {
			return model.NewErrorResponse(http.StatusServiceUnavailable, msgUnavailable)
		}
		return h.failed(err)
	}
	return model.NewResponse(http.StatusOK, model.ShortenResponse{ShortURL: short})
}

// ServeHTTP адаптирует Handle к net/http.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var resp model.Response
	if r.Method != http.MethodPost {
		// тело нужно только POST: preflight и 405 не зависят от его размера
		resp = h.Handle(r.Context(), r.Method, nil)
	} else if body, err := h.readBody(w, r); err != nil {
		resp = h.failed(err)
	} else {
		resp = h.Handle(r.Context(), r.Method, body)
	}

	if err := resp.Write(w); err != nil {
		h.Logger.Debug("failed to write response", zap.Error(err))
	}
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	limit := h.MaxBodySize
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

func (h *Handler) failed(err error) model.Response {
	h.Logger.Error("shortening error", zap.Error(err))
	return model.NewErrorResponse(http.StatusInternalServerError, msgFailed)
}

// decodeTarget достаёт поле url из JSON-тела. Отсутствующее или "ложное" значение
// (null, "", false, 0) даёт пустую строку; битый JSON, тело null и нестроковый url дают ошибку.
func decodeTarget(body []byte) (string, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode request body: %w", err)
	}
	if raw == nil {
		return "", errors.New("request body is null")
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return "", nil
	}
	switch v := obj["url"].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		if !v {
			return "", nil
		}
	case float64:
		if v == 0 {
			return "", nil
		}
	}
	return "", errURLNotString
}
