package middleware

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// gzipResponseWriter оборачивает ResponseWriter и использует gzip.Writer для сжатия ответа
type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

func (g *gzipResponseWriter) WriteHeader(code int) {
	g.ResponseWriter.Header().Del("Content-Length")
	g.ResponseWriter.WriteHeader(code)
}

// brokenBody подменяет тело запроса, которое не удалось распаковать: любое чтение возвращает ошибку.
type brokenBody struct {
	io.Closer
	err error
}

func (b brokenBody) Read([]byte) (int, error) {
	return 0, b.err
}

// GzipMiddleware распаковывает gzip-запросы и сжимает ответ, если клиент это поддерживает.
// Распаковывается только тело POST. Если распаковать не удалось, ошибку получит обработчик
// при чтении тела и ответит сам, со своими заголовками.
// Ответы на OPTIONS не сжимаются: у них нет тела.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Распаковываем входящие gzip-запросы
		if r.Method == http.MethodPost && strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			reader, err := gzip.NewReader(r.Body)
			if err != nil {
				r.Body = brokenBody{Closer: r.Body, err: fmt.Errorf("decompress request body: %w", err)}
			} else {
				defer reader.Close()
				r.Body = reader
			}
			r.Header.Del("Content-Encoding")
		}

		if r.Method == http.MethodOptions || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		next.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, Writer: gzipWriter}, r)
	})
}
