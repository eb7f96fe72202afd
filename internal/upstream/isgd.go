// Package upstream содержит HTTP-клиент внешнего сервиса сокращения ссылок.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL адрес API is.gd, возвращающего короткую ссылку простым текстом.
const DefaultBaseURL = "https://is.gd/create.php"

const (
	defaultTimeout = 5 * time.Second
	maxReplySize   = 4 << 10
	userAgent      = "mailto-shortener/1.0"
)

// ErrUnexpectedStatus возвращается, если сервис ответил не 2xx.
var ErrUnexpectedStatus = errors.New("unexpected upstream status")

// ErrReplyTooLarge возвращается, если ответ длиннее maxReplySize: обрезанный ответ за ссылку не выдаём.
var ErrReplyTooLarge = errors.New("upstream reply too large")

// Client выполняет одну попытку сокращения ссылки.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Option настраивает Client.
type Option func(*Client)

// WithTimeout задаёт таймаут одного запроса к сервису.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.HTTPClient.Timeout = timeout
	}
}

// WithHTTPClient подменяет http.Client, например в тестах.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

// NewClient создаёт клиента; пустой baseURL означает is.gd.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shorten отправляет GET <base>?format=simple&url=<target> и возвращает тело ответа как есть.
// Ошибкой считаются только транспортные сбои и ответы не 2xx; разбор тела остаётся вызывающему.
func (c *Client) Shorten(ctx context.Context, target string) (string, error) {
	endpoint, err := c.endpoint(target)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize+1))
	if err != nil {
		return "", fmt.Errorf("read upstream reply: %w", err)
	}
	if len(body) > maxReplySize {
		return "", fmt.Errorf("%w: more than %d bytes", ErrReplyTooLarge, maxReplySize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return string(body), nil
}

func (c *Client) endpoint(target string) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse upstream base url: %w", err)
	}
	q := u.Query()
	q.Set("format", "simple")
	q.Set("url", target)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
