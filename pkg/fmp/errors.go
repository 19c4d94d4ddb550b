package fmp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorType представляет тип ошибки при работе с FMP API.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrNoCredential
	ErrAuthFailed
	ErrForbidden
	ErrNotFound
	ErrRateLimit
	ErrServer
	ErrUnexpectedStatus
	ErrTimeout
	ErrNetwork
	ErrTooManyRedirects
	ErrCanceled
	ErrDecode
	ErrAPIMessage
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrNoCredential:
		return "no_credential"
	case ErrAuthFailed:
		return "authentication_failed"
	case ErrForbidden:
		return "forbidden"
	case ErrNotFound:
		return "not_found"
	case ErrRateLimit:
		return "rate_limit"
	case ErrServer:
		return "server_error"
	case ErrUnexpectedStatus:
		return "unexpected_status"
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network_error"
	case ErrTooManyRedirects:
		return "too_many_redirects"
	case ErrCanceled:
		return "canceled"
	case ErrDecode:
		return "invalid_json"
	case ErrAPIMessage:
		return "api_error"
	default:
		return "unknown"
	}
}

// HumanMessage возвращает человекочитаемое сообщение для типа ошибки.
func (e ErrorType) HumanMessage() string {
	switch e {
	case ErrNoCredential:
		return "API key is not configured. Set FMP_API_KEY."
	case ErrAuthFailed:
		return "API key is invalid or missing."
	case ErrForbidden:
		return "Access forbidden. The plan may not include this endpoint."
	case ErrNotFound:
		return "Resource not found. Symbol or endpoint may not exist."
	case ErrRateLimit:
		return "Rate limit exceeded. Wait before the next request."
	case ErrServer:
		return "Upstream server error. Try again later."
	case ErrUnexpectedStatus:
		return "Unexpected HTTP status from upstream."
	case ErrTimeout:
		return "Request timed out."
	case ErrNetwork:
		return "Upstream is unreachable: DNS failure or refused connection."
	case ErrTooManyRedirects:
		return "Too many redirects."
	case ErrCanceled:
		return "Request was canceled."
	case ErrDecode:
		return "Upstream returned a body that is not valid JSON."
	case ErrAPIMessage:
		return "Upstream returned an error message."
	default:
		return "Unknown error while calling the API."
	}
}

// FetchError описывает мягкий отказ запроса.
//
// Не возвращается как error из Fetch: лежит внутри Result.
type FetchError struct {
	Type       ErrorType
	StatusCode int    // 0, если до HTTP статуса не дошли
	URL        string // Без query string: в ней API ключ
	Message    string // Сообщение из тела ответа, если есть
	Cause      error
}

func (e *FetchError) Error() string {
	parts := []string{e.Type.String()}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("Status: %d", e.StatusCode))
	}
	if e.URL != "" {
		parts = append(parts, "URL: "+e.URL)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " | ")
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

var errTooManyRedirects = errors.New("stopped after too many redirects")

// ClassifyError классифицирует транспортную ошибку по типу.
//
//   - ErrTooManyRedirects: превышен лимит редиректов
//   - ErrCanceled: контекст отменён
//   - ErrTimeout: timeout, deadline exceeded
//   - ErrNetwork: DNS, connection refused и прочие ошибки соединения
//   - ErrUnknown: все остальные ошибки
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}

	switch {
	case errors.Is(err, errTooManyRedirects):
		return ErrTooManyRedirects
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrNetwork
	}

	// Ошибки, обёрнутые без %w, узнаём по тексту
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "timeout") {
		return ErrTimeout
	}
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "connection reset") {
		return ErrNetwork
	}

	return ErrUnknown
}
