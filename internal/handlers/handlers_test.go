package handlers_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Totarae/MailtoShortener/internal/handlers"
	"github.com/Totarae/MailtoShortener/internal/service"
	"github.com/Totarae/MailtoShortener/internal/upstream"
)

// fakeUpstream отвечает по очереди заранее заданными ответами и считает обращения.
type fakeUpstream struct {
	calls   int32
	replies []string
}

func (f *fakeUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&f.calls, 1)) - 1
		reply := f.replies[len(f.replies)-1]
		if n < len(f.replies) {
			reply = f.replies[n]
		}
		if reply == "" {
			// обрываем соединение, клиент увидит транспортную ошибку
			hj, ok := w.(http.Hijacker)
			if !ok {
				http.Error(w, "no hijack", http.StatusInternalServerError)
				return
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		fmt.Fprint(w, reply)
	}
}

type testEnv struct {
	handler  *handlers.Handler
	upstream *fakeUpstream
	sleeps   []time.Duration
}

func newTestEnv(t *testing.T, replies ...string) *testEnv {
	t.Helper()
	env := &testEnv{upstream: &fakeUpstream{replies: replies}}

	ts := httptest.NewServer(env.upstream.handler())
	t.Cleanup(ts.Close)

	svc := service.NewShortenerService(upstream.NewClient(ts.URL), zap.NewNop(), 3, 200*time.Millisecond)
	svc.Sleep = func(_ context.Context, d time.Duration) error {
		env.sleeps = append(env.sleeps, d)
		return nil
	}
	env.handler = handlers.NewHandler(svc, zap.NewNop())
	return env
}

func (env *testEnv) do(method, body string) *http.Response {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec.Result()
}

func assertCORS(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestOptionsPreflight(t *testing.T) {
	env := newTestEnv(t, "https://is.gd/abc")

	resp := env.do(http.MethodOptions, `{"url":"http://not-even-checked"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assertCORS(t, resp)
	assert.Empty(t, readBody(t, resp))
	assert.Zero(t, atomic.LoadInt32(&env.upstream.calls))
}

func TestMethodNotAllowed(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			env := newTestEnv(t, "https://is.gd/abc")

			resp := env.do(method, `{"url":"mailto:a@b.com"}`)

			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
			assertCORS(t, resp)
			assert.JSONEq(t, `{"error":"Method not allowed"}`, readBody(t, resp))
		})
	}
}

func TestPostValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "empty object", body: `{}`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"URL is required"}`},
		{name: "empty url", body: `{"url":""}`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"URL is required"}`},
		{name: "null url", body: `{"url":null}`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"URL is required"}`},
		{name: "array body", body: `["mailto:a@b.com"]`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"URL is required"}`},
		{name: "http url", body: `{"url":"http://example.com"}`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"Only mailto URLs are allowed"}`},
		{name: "javascript url", body: `{"url":"javascript:alert(1)"}`, wantStatus: http.StatusBadRequest, wantBody: `{"error":"Only mailto URLs are allowed"}`},
		{name: "malformed json", body: `{"url":`, wantStatus: http.StatusInternalServerError, wantBody: `{"error":"Failed to create short URL"}`},
		{name: "empty body", body: ``, wantStatus: http.StatusInternalServerError, wantBody: `{"error":"Failed to create short URL"}`},
		{name: "null body", body: `null`, wantStatus: http.StatusInternalServerError, wantBody: `{"error":"Failed to create short URL"}`},
		{name: "numeric url", body: `{"url":42}`, wantStatus: http.StatusInternalServerError, wantBody: `{"error":"Failed to create short URL"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "https://is.gd/abc")

			resp := env.do(http.MethodPost, tt.body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assertCORS(t, resp)
			assert.JSONEq(t, tt.wantBody, readBody(t, resp))
			assert.Zero(t, atomic.LoadInt32(&env.upstream.calls))
		})
	}
}

func TestShorten_FirstAttempt(t *testing.T) {
	env := newTestEnv(t, "https://is.gd/abc\n")

	resp := env.do(http.MethodPost, `{"url":"mailto:a@b.com"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assertCORS(t, resp)
	assert.JSONEq(t, `{"shortUrl":"https://is.gd/abc"}`, readBody(t, resp))
	assert.EqualValues(t, 1, atomic.LoadInt32(&env.upstream.calls))
	assert.Empty(t, env.sleeps)
}

func TestShorten_AllAttemptsRejected(t *testing.T) {
	env := newTestEnv(t, "Error: Please enter a valid URL to shorten")

	resp := env.do(http.MethodPost, `{"url":"mailto:a@b.com"}`)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assertCORS(t, resp)
	assert.JSONEq(t,
		`{"error":"URL shortening service temporarily unavailable. Please try again later."}`,
		readBody(t, resp))
	assert.EqualValues(t, 3, atomic.LoadInt32(&env.upstream.calls))
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, env.sleeps)
}

func TestShorten_TransportErrorsThenSuccess(t *testing.T) {
	env := newTestEnv(t, "", "", "https://is.gd/third")

	resp := env.do(http.MethodPost, `{"url":"mailto:a@b.com"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"shortUrl":"https://is.gd/third"}`, readBody(t, resp))
	assert.EqualValues(t, 3, atomic.LoadInt32(&env.upstream.calls))
}

type panickingShortener struct{}

func (panickingShortener) Shorten(context.Context, string) (string, error) {
	panic("unexpected")
}

type failingShortener struct{}

func (failingShortener) Shorten(context.Context, string) (string, error) {
	return "", fmt.Errorf("wrapped: %w", context.DeadlineExceeded)
}

func TestOuterBoundary(t *testing.T) {
	for name, svc := range map[string]handlers.Shortener{
		"panic":         panickingShortener{},
		"unknown error": failingShortener{},
	} {
		t.Run(name, func(t *testing.T) {
			h := handlers.NewHandler(svc, zap.NewNop())

			resp := h.Handle(context.Background(), http.MethodPost, []byte(`{"url":"mailto:a@b.com"}`))

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Equal(t, "*", resp.Header["Access-Control-Allow-Origin"])
			assert.JSONEq(t, `{"error":"Failed to create short URL"}`, string(resp.Body))
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, "https://is.gd/abc")
	env.handler.MaxBodySize = 16

	resp := env.do(http.MethodPost, `{"url":"mailto:someone-with-a-long-name@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assertCORS(t, resp)
	assert.JSONEq(t, `{"error":"Failed to create short URL"}`, readBody(t, resp))
}

func TestOversizedBodyIgnoredForNonPost(t *testing.T) {
	tests := []struct {
		method     string
		wantStatus int
		wantBody   string
	}{
		{method: http.MethodOptions, wantStatus: http.StatusOK, wantBody: ""},
		{method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed, wantBody: `{"error":"Method not allowed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			env := newTestEnv(t, "https://is.gd/abc")
			env.handler.MaxBodySize = 16

			resp := env.do(tt.method, `{"url":"mailto:`+strings.Repeat("a", 1024)+`@example.com"}`)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assertCORS(t, resp)
			body := readBody(t, resp)
			if tt.wantBody == "" {
				assert.Empty(t, body)
			} else {
				assert.JSONEq(t, tt.wantBody, body)
			}
			assert.Zero(t, atomic.LoadInt32(&env.upstream.calls))
		})
	}
}
