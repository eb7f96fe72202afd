package model

// ShortenRequest представляет тело POST-запроса на сокращение mailto-ссылки.
type ShortenRequest struct {
	URL string `json:"url"`
}

// ShortenResponse представляет успешный ответ с короткой ссылкой.
type ShortenResponse struct {
	ShortURL string `json:"shortUrl"`
}

// ErrorResponse представляет тело ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}
