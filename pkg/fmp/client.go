// Package fmp provides the transport layer for the Financial Modeling Prep REST API.
//
// Architecture:
//
// The client issues exactly one GET per call and turns every outcome into a
// Result value instead of an error:
//   - Data: a RecordSet, a single Record, or another JSON value
//   - Empty: the request succeeded but there is nothing to show
//   - Failure: a soft failure (credential, transport, status, payload), logged
//
// Only caller input errors (see Validate* functions) are returned as error.
// There are no retries and no caching. Client-side throttling per API
// generation keeps bursts of tool calls under the plan limit.
//
// Usage pattern:
//   - pkg/fmp - transport and response classification
//   - pkg/output - precision normalization and rendering
//   - pkg/tools/std - config-driven tools for LLM function calling
package fmp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ilkoid/poncho-fmp/pkg/config"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrorMessageKey — ключ, под которым API кладёт сообщение об ошибке в тело 200 ответа.
const ErrorMessageKey = "Error Message"

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Позволяет мокировать HTTP клиент в тестах.
// Стандартный *http.Client реализует этот интерфейс.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CredentialFunc возвращает API ключ. Вызывается перед каждым запросом,
// поэтому ротация ключа в окружении подхватывается без перезапуска.
type CredentialFunc func() string

// EnvCredential читает ключ из переменной окружения при каждом вызове.
func EnvCredential(name string) CredentialFunc {
	return func() string {
		return os.Getenv(name)
	}
}

// StaticCredential возвращает фиксированный ключ.
func StaticCredential(key string) CredentialFunc {
	return func() string {
		return key
	}
}

type Client struct {
	baseURLs   map[Generation]string
	httpClient HTTPClient
	credential CredentialFunc
	logger     *zap.SugaredLogger
	rateLimit  int // Запросов в минуту, 0 — без ограничения
	burst      int

	mu       sync.Mutex
	limiters map[Generation]*rate.Limiter // generation → limiter
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP клиент (тесты, прокси).
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger задаёт логгер. По умолчанию используется zap.NewNop().
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCredential подменяет источник API ключа.
func WithCredential(fn CredentialFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.credential = fn
		}
	}
}

// WithRateLimit задаёт лимит запросов в минуту на поколение API.
// rateLimit <= 0 отключает ограничение.
func WithRateLimit(rateLimit int, burst int) Option {
	return func(c *Client) {
		c.rateLimit = rateLimit
		c.burst = burst
	}
}

// New создает клиент со статическим ключом и дефолтной конфигурацией.
func New(apiKey string, opts ...Option) *Client {
	cfg := config.FMPConfig{APIKey: apiKey}
	// Дефолтная конфигурация заведомо валидна
	c, _ := NewFromConfig(cfg, opts...)
	return c
}

// NewFromConfig создает клиент из конфигурации.
//
// Поля с нулевыми значениями используют дефолтные значения через GetDefaults().
// Отсутствие ключа здесь не ошибка: ключ проверяется при каждом вызове Fetch.
func NewFromConfig(cfg config.FMPConfig, opts ...Option) (*Client, error) {
	cfg = cfg.GetDefaults()

	connectTimeout, readTimeout, err := cfg.Timeouts()
	if err != nil {
		return nil, err
	}

	credential := EnvCredential(cfg.APIKeyEnv)
	if cfg.APIKey != "" {
		credential = StaticCredential(cfg.APIKey)
	}

	c := &Client{
		baseURLs: map[Generation]string{
			V3:     cfg.BaseURLV3,
			V4:     cfg.BaseURLV4,
			Stable: cfg.BaseURLStable,
		},
		httpClient: newHTTPClient(connectTimeout, readTimeout, cfg.MaxRedirects),
		credential: credential,
		logger:     zap.NewNop().Sugar(),
		rateLimit:  cfg.RateLimit,
		burst:      cfg.BurstLimit,
		limiters:   make(map[Generation]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClient собирает *http.Client с раздельными таймаутами.
//
// connect — установка TCP/TLS соединения, read — ожидание ответа сервера.
// Общий Timeout равен их сумме и ограничивает чтение тела.
func newHTTPClient(connect, read time.Duration, maxRedirects int) *http.Client {
	dialer := &net.Dialer{Timeout: connect}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = connect
	transport.ResponseHeaderTimeout = read

	return &http.Client{
		Transport: transport,
		Timeout:   connect + read,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}
}

// Fetch выполняет GET запрос к API указанного поколения и классифицирует исход.
//
// Параметры:
//   - ctx: контекст для отмены
//   - gen: поколение API (выбирает базовый URL)
//   - path: путь к endpoint относительно базового URL (например, "quote/AAPL")
//   - params: query параметры без API ключа (может быть nil)
//
// Никогда не паникует и не возвращает error: все отказы лежат в Result.Err
// и сопровождаются строкой лога.
func (c *Client) Fetch(ctx context.Context, gen Generation, path string, params url.Values) Result {
	log := c.logger.With("request_id", uuid.NewString(), "generation", gen.String())

	apiKey := c.credential()
	if apiKey == "" {
		log.Errorw("FMP API key is not set", "path", path)
		return Failure(&FetchError{Type: ErrNoCredential})
	}

	endpoint, err := c.endpointURL(gen, path)
	if err != nil {
		log.Errorw("Invalid request URL", "path", path, "error", err)
		return Failure(&FetchError{Type: ErrUnknown, Cause: err})
	}

	if err := c.wait(ctx, gen); err != nil {
		return c.transportFailure(log, endpoint, err)
	}

	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}
	query.Set("apikey", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		log.Errorw("Failed to build request", "url", endpoint, "error", err)
		return Failure(&FetchError{Type: ErrUnknown, URL: endpoint, Cause: err})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportFailure(log, endpoint, err)
	}
	defer resp.Body.Close()

	if failure, failed := classifyStatus(log, endpoint, resp.StatusCode); failed {
		return failure
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportFailure(log, endpoint, err)
	}

	return decodeBody(log, endpoint, body)
}

// Get — сокращение для Fetch с RecordSet представлением.
//
// nil означает отказ, пустой набор — успешный пустой ответ.
func (c *Client) Get(ctx context.Context, gen Generation, path string, params url.Values) RecordSet {
	return c.Fetch(ctx, gen, path, params).RecordSet()
}

// endpointURL склеивает базовый URL и путь, нормализуя слэши.
func (c *Client) endpointURL(gen Generation, path string) (string, error) {
	base, ok := c.baseURLs[gen]
	if !ok || base == "" {
		return "", fmt.Errorf("unknown api generation %d", gen)
	}
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	u, err := url.Parse(strings.TrimRight(base, "/") + "/" + path)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	return u.String(), nil
}

// wait ждёт разрешения от лимитера поколения API.
func (c *Client) wait(ctx context.Context, gen Generation) error {
	limiter := c.getOrCreateLimiter(gen)
	if limiter == nil {
		return ctx.Err()
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// getOrCreateLimiter возвращает limiter для поколения API или nil без ограничения.
func (c *Client) getOrCreateLimiter(gen Generation) *rate.Limiter {
	if c.rateLimit <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, exists := c.limiters[gen]; exists {
		return limiter
	}

	burst := c.burst
	if burst <= 0 {
		burst = 1
	}
	// rateLimit в запросах/минуту → rate.Limit в запросах/секунду
	limiter := rate.NewLimiter(rate.Limit(float64(c.rateLimit)/60.0), burst)
	c.limiters[gen] = limiter
	return limiter
}

// transportFailure логирует ошибку уровня соединения и возвращает отказ.
func (c *Client) transportFailure(log *zap.SugaredLogger, endpoint string, err error) Result {
	// *url.Error содержит полный URL с apikey: логируем только причину
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	errType := ClassifyError(err)
	switch errType {
	case ErrTimeout:
		log.Errorw("Connection timed out", "url", endpoint, "error", err)
	case ErrNetwork:
		log.Errorw("Connection failed: DNS failure, refused connection or other connection issue",
			"url", endpoint, "error", err)
	case ErrTooManyRedirects:
		log.Errorw("Request exceeds the maximum number of redirects", "url", endpoint, "error", err)
	case ErrCanceled:
		log.Warnw("Request canceled", "url", endpoint, "error", err)
	default:
		log.Errorw("Unexpected error during request", "url", endpoint, "error", err)
	}

	return Failure(&FetchError{Type: errType, URL: endpoint, Cause: err})
}

// classifyStatus проверяет HTTP статус. Для любого статуса кроме 200
// пишет строку лога и возвращает отказ.
func classifyStatus(log *zap.SugaredLogger, endpoint string, status int) (Result, bool) {
	if status == http.StatusOK {
		return Result{}, false
	}

	var errType ErrorType
	switch {
	case status == http.StatusUnauthorized:
		errType = ErrAuthFailed
		log.Errorw("API authentication failed (401). Check your FMP API key", "url", endpoint, "status", status)
	case status == http.StatusForbidden:
		errType = ErrForbidden
		log.Errorw("API access forbidden (403). Your plan may not include this endpoint", "url", endpoint, "status", status)
	case status == http.StatusNotFound:
		errType = ErrNotFound
		log.Warnw("Resource not found (404). Symbol or endpoint may not exist", "url", endpoint, "status", status)
	case status == http.StatusTooManyRequests:
		errType = ErrRateLimit
		log.Errorw("API rate limit exceeded (429). Too many requests", "url", endpoint, "status", status)
	case status >= http.StatusInternalServerError:
		errType = ErrServer
		log.Errorw("FMP server error. Try again later", "url", endpoint, "status", status)
	default:
		errType = ErrUnexpectedStatus
		log.Errorw("Unexpected HTTP status", "url", endpoint, "status", status)
	}

	return Failure(&FetchError{Type: errType, StatusCode: status, URL: endpoint}), true
}

// decodeBody разбирает тело успешного ответа.
//
//   - пустое тело → Empty
//   - невалидный JSON → ErrDecode
//   - объект с "Error Message" → ErrAPIMessage
//   - {} и [] → Empty
//   - массив объектов → Records, объект → Record, остальное → Value
func decodeBody(log *zap.SugaredLogger, endpoint string, body []byte) Result {
	if len(body) == 0 {
		log.Warnw("Response appears to have no data. Returning empty list", "url", endpoint)
		return Empty()
	}

	if !gjson.ValidBytes(body) {
		log.Errorw("Failed to parse JSON response", "url", endpoint, "body_len", len(body))
		return Failure(&FetchError{Type: ErrDecode, StatusCode: http.StatusOK, URL: endpoint})
	}

	root := gjson.ParseBytes(body)
	switch {
	case root.IsObject():
		record := recordFromJSON(root)
		if msg, ok := record.Get(ErrorMessageKey); ok {
			text := fmt.Sprint(msg)
			log.Errorw("FMP API error", "url", endpoint, "message", text)
			return Failure(&FetchError{Type: ErrAPIMessage, StatusCode: http.StatusOK, URL: endpoint, Message: text})
		}
		if record.Len() == 0 {
			log.Warnw("Response appears to have no data. Returning empty list", "url", endpoint)
			return Empty()
		}
		return Single(record)

	case root.IsArray():
		items := root.Array()
		if len(items) == 0 {
			return Empty()
		}
		records := make(RecordSet, 0, len(items))
		for _, item := range items {
			if !item.IsObject() {
				// Массив не из объектов (например, список тикеров) отдаём как есть
				return Result{Kind: KindValue, Value: valueFromJSON(root)}
			}
			records = append(records, recordFromJSON(item))
		}
		return Records(records)

	default:
		return Result{Kind: KindValue, Value: valueFromJSON(root)}
	}
}
