package model

import (
	"encoding/json"
	"net/http"
)

// CORSHeaders возвращает фиксированный набор заголовков, который присутствует в каждом ответе.
func CORSHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Allow-Methods": "POST, OPTIONS",
		"Content-Type":                 "application/json",
	}
}

// Response описывает ответ функции: код, заголовки и уже сериализованное тело.
type Response struct {
	StatusCode int
	Header     map[string]string
	Body       []byte
}

// NewResponse собирает ответ с CORS-заголовками и телом, закодированным в JSON.
// Пустое тело (nil payload) остаётся пустым.
func NewResponse(status int, payload any) Response {
	resp := Response{StatusCode: status, Header: CORSHeaders()}
	if payload == nil {
		return resp
	}
	body, err := json.Marshal(payload)
	if err != nil {
		// DTO из этого пакета всегда сериализуются
		body = []byte(`{"error":"Failed to create short URL"}`)
		resp.StatusCode = http.StatusInternalServerError
	}
	resp.Body = body
	return resp
}

// NewErrorResponse возвращает ответ вида {"error": msg}.
func NewErrorResponse(status int, msg string) Response {
	return NewResponse(status, ErrorResponse{Error: msg})
}

// Write записывает ответ в http.ResponseWriter.
func (r Response) Write(w http.ResponseWriter) error {
	for k, v := range r.Header {
		w.Header().Set(k, v)
	}
	w.WriteHeader(r.StatusCode)
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}
