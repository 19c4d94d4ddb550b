package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ilkoid/poncho-fmp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// countingHTTPClient — мок HTTPClient, который считает вызовы.
type countingHTTPClient struct {
	calls   atomic.Int32
	status  int
	body    string
	err     error
	lastURL *url.URL
}

func (m *countingHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.calls.Add(1)
	m.lastURL = req.URL
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(strings.NewReader(m.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// newTestClient создает клиент, направленный на httptest сервер.
func newTestClient(t *testing.T, baseURL string, opts ...Option) (*Client, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := config.FMPConfig{
		APIKey:        "test-key",
		BaseURLV3:     baseURL + "/api/v3",
		BaseURLV4:     baseURL + "/api/v4",
		BaseURLStable: baseURL + "/stable",
		RateLimit:     -1,
	}
	opts = append([]Option{WithLogger(zap.New(core).Sugar())}, opts...)
	c, err := NewFromConfig(cfg, opts...)
	require.NoError(t, err)
	return c, logs
}

func serve(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
}

// TestFetch_StatusClassification проверяет, что не-200 статусы дают отказ и не паникуют.
func TestFetch_StatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		wantType ErrorType
		wantLvl  zapcore.Level
		wantLog  string
	}{
		{http.StatusUnauthorized, ErrAuthFailed, zapcore.ErrorLevel, "authentication failed"},
		{http.StatusForbidden, ErrForbidden, zapcore.ErrorLevel, "forbidden"},
		{http.StatusNotFound, ErrNotFound, zapcore.WarnLevel, "not found"},
		{http.StatusTooManyRequests, ErrRateLimit, zapcore.ErrorLevel, "rate limit"},
		{http.StatusInternalServerError, ErrServer, zapcore.ErrorLevel, "server error"},
		{http.StatusServiceUnavailable, ErrServer, zapcore.ErrorLevel, "server error"},
		{http.StatusTeapot, ErrUnexpectedStatus, zapcore.ErrorLevel, "Unexpected HTTP status"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			srv := serve(tt.status, `[{"symbol":"AAPL"}]`)
			defer srv.Close()

			c, logs := newTestClient(t, srv.URL)

			for i := 0; i < 2; i++ {
				res := c.Fetch(context.Background(), V3, "quote/AAPL", nil)
				require.True(t, res.Failed())
				require.NotNil(t, res.Err)
				assert.Equal(t, tt.wantType, res.Err.Type)
				assert.Equal(t, tt.status, res.Err.StatusCode)
				assert.Nil(t, res.RecordSet())
			}

			entries := logs.All()
			require.Len(t, entries, 2)
			assert.Equal(t, tt.wantLvl, entries[0].Level)
			assert.Contains(t, entries[0].Message, tt.wantLog)
		})
	}
}

// TestFetch_RateLimitLog — 429 даёт отказ и строку лога с "rate limit".
func TestFetch_RateLimitLog(t *testing.T) {
	srv := serve(http.StatusTooManyRequests, "")
	defer srv.Close()

	c, logs := newTestClient(t, srv.URL)
	res := c.Fetch(context.Background(), V3, "actives", nil)

	assert.True(t, res.Failed())
	assert.Equal(t, ErrRateLimit, res.Err.Type)
	require.Equal(t, 1, logs.FilterMessageSnippet("rate limit").Len())
}

// TestFetch_NoCredential — без ключа нет ни одного HTTP запроса.
func TestFetch_NoCredential(t *testing.T) {
	mock := &countingHTTPClient{status: http.StatusOK, body: `[]`}
	core, logs := observer.New(zapcore.DebugLevel)

	c := New("", WithHTTPClient(mock), WithLogger(zap.New(core).Sugar()), WithCredential(StaticCredential("")))
	res := c.Fetch(context.Background(), V3, "actives", nil)

	assert.True(t, res.Failed())
	assert.Equal(t, ErrNoCredential, res.Err.Type)
	assert.Nil(t, res.RecordSet())
	assert.Equal(t, int32(0), mock.calls.Load())

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

// TestFetch_CredentialReadPerCall — ключ читается при каждом вызове, а не при создании клиента.
func TestFetch_CredentialReadPerCall(t *testing.T) {
	t.Setenv("FMP_TEST_KEY", "")
	mock := &countingHTTPClient{status: http.StatusOK, body: `[{"a":1}]`}
	c, err := NewFromConfig(config.FMPConfig{APIKeyEnv: "FMP_TEST_KEY", RateLimit: -1}, WithHTTPClient(mock))
	require.NoError(t, err)

	res := c.Fetch(context.Background(), V3, "actives", nil)
	assert.Equal(t, ErrNoCredential, res.Err.Type)
	assert.Equal(t, int32(0), mock.calls.Load())

	t.Setenv("FMP_TEST_KEY", "rotated")
	res = c.Fetch(context.Background(), V3, "actives", nil)
	require.False(t, res.Failed())
	assert.Equal(t, int32(1), mock.calls.Load())
	assert.Equal(t, "rotated", mock.lastURL.Query().Get("apikey"))
}

// TestFetch_Bodies проверяет классификацию тела успешного ответа.
func TestFetch_Bodies(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind Kind
		wantErr  ErrorType
		wantLen  int // длина RecordSet(), -1 — nil
	}{
		{name: "empty body", body: "", wantKind: KindEmpty, wantLen: 0},
		{name: "invalid json", body: "<html>oops</html>", wantKind: KindFailure, wantErr: ErrDecode, wantLen: -1},
		{name: "error message", body: `{"Error Message":"Invalid API KEY."}`, wantKind: KindFailure, wantErr: ErrAPIMessage, wantLen: -1},
		{name: "empty object", body: `{}`, wantKind: KindEmpty, wantLen: 0},
		{name: "empty array", body: `[]`, wantKind: KindEmpty, wantLen: 0},
		{name: "array of objects", body: `[{"a":1},{"a":2}]`, wantKind: KindRecords, wantLen: 2},
		{name: "single object", body: `{"symbol":"AAPL","price":189.5}`, wantKind: KindRecord, wantLen: 1},
		{name: "array of strings", body: `["AAPL","MSFT"]`, wantKind: KindValue, wantLen: -1},
		{name: "scalar", body: `42`, wantKind: KindValue, wantLen: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(http.StatusOK, tt.body)
			defer srv.Close()

			c, _ := newTestClient(t, srv.URL)
			res := c.Fetch(context.Background(), V3, "actives", nil)

			assert.Equal(t, tt.wantKind, res.Kind)
			if tt.wantKind == KindFailure {
				require.NotNil(t, res.Err)
				assert.Equal(t, tt.wantErr, res.Err.Type)
			}

			rs := res.RecordSet()
			if tt.wantLen < 0 {
				assert.Nil(t, rs)
			} else {
				require.NotNil(t, rs)
				assert.Len(t, rs, tt.wantLen)
			}
		})
	}
}

// TestFetch_EmptyBodyIsNotFailure — пустое тело даёт пустой набор, а не nil.
func TestFetch_EmptyBodyIsNotFailure(t *testing.T) {
	srv := serve(http.StatusOK, "")
	defer srv.Close()

	c, logs := newTestClient(t, srv.URL)
	rs := c.Get(context.Background(), V3, "actives", nil)

	require.NotNil(t, rs)
	assert.Empty(t, rs)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestFetch_APIErrorMessage(t *testing.T) {
	srv := serve(http.StatusOK, `{"Error Message":"Limit Reach"}`)
	defer srv.Close()

	c, logs := newTestClient(t, srv.URL)
	res := c.Fetch(context.Background(), V3, "actives", nil)

	require.True(t, res.Failed())
	assert.Equal(t, "Limit Reach", res.Err.Message)
	assert.Equal(t, 1, logs.FilterField(zap.String("message", "Limit Reach")).Len())
}

// TestFetch_KeepsOrderAndLiterals — порядок ключей и литералы чисел сохраняются.
func TestFetch_KeepsOrderAndLiterals(t *testing.T) {
	srv := serve(http.StatusOK, `[{"date":"2024-01-01","value":3.14159,"flag":true,"note":null,"nested":{"x":1}}]`)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	rs := c.Get(context.Background(), V3, "economic", nil)
	require.Len(t, rs, 1)

	rec := rs[0]
	assert.Equal(t, []string{"date", "value", "flag", "note", "nested"}, rec.Keys())

	v, _ := rec.Get("value")
	assert.Equal(t, json.Number("3.14159"), v)
	flag, _ := rec.Get("flag")
	assert.Equal(t, true, flag)
	note, ok := rec.Get("note")
	assert.True(t, ok)
	assert.Nil(t, note)
	nested, _ := rec.Get("nested")
	assert.Equal(t, json.RawMessage(`{"x":1}`), nested)
}

// TestFetch_RequestShape проверяет URL, query и выбор базового URL по поколению.
func TestFetch_RequestShape(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, `[{"a":1}]`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)

	tests := []struct {
		gen      Generation
		path     string
		wantPath string
	}{
		{V3, "quote/AAPL", "/api/v3/quote/AAPL"},
		{V4, "/treasury", "/api/v4/treasury"},
		{Stable, "sector-performance", "/stable/sector-performance"},
	}
	for _, tt := range tests {
		t.Run(tt.gen.String(), func(t *testing.T) {
			params := url.Values{"from": {"2024-01-01"}}
			res := c.Fetch(context.Background(), tt.gen, tt.path, params)
			require.False(t, res.Failed())

			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, "test-key", gotQuery.Get("apikey"))
			assert.Equal(t, "2024-01-01", gotQuery.Get("from"))
			// Исходные параметры не мутируются
			assert.Empty(t, params.Get("apikey"))
		})
	}
}

// TestFetch_TransportFailures — ошибки соединения дают отказ, ключ не попадает в лог.
func TestFetch_TransportFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
	}{
		{
			name:     "dns",
			err:      &url.Error{Op: "Get", URL: "https://x/?apikey=secret", Err: &net.DNSError{Err: "no such host", Name: "x"}},
			wantType: ErrNetwork,
		},
		{
			name:     "refused",
			err:      &url.Error{Op: "Get", URL: "https://x/?apikey=secret", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}},
			wantType: ErrNetwork,
		},
		{
			name:     "timeout",
			err:      &url.Error{Op: "Get", URL: "https://x/?apikey=secret", Err: context.DeadlineExceeded},
			wantType: ErrTimeout,
		},
		{
			name:     "redirects",
			err:      &url.Error{Op: "Get", URL: "https://x/?apikey=secret", Err: errTooManyRedirects},
			wantType: ErrTooManyRedirects,
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			wantType: ErrUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &countingHTTPClient{err: tt.err}
			c, logs := newTestClient(t, "https://example.invalid", WithHTTPClient(mock))

			res := c.Fetch(context.Background(), V3, "actives", nil)
			require.True(t, res.Failed())
			assert.Equal(t, tt.wantType, res.Err.Type)
			assert.NotContains(t, res.Err.Error(), "secret")

			require.Equal(t, 1, logs.Len())
			for _, f := range logs.All()[0].Context {
				assert.NotContains(t, f.String, "secret")
				if err, ok := f.Interface.(error); ok {
					assert.NotContains(t, err.Error(), "secret")
				}
			}
		})
	}
}

// TestFetch_RedirectCap — клиент останавливается на лимите редиректов.
func TestFetch_RedirectCap(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, srv.URL+"/api/v3/loop", http.StatusFound)
	}))
	defer srv.Close()

	core, _ := observer.New(zapcore.DebugLevel)
	c, err := NewFromConfig(config.FMPConfig{
		APIKey:       "k",
		BaseURLV3:    srv.URL + "/api/v3",
		MaxRedirects: 3,
		RateLimit:    -1,
	}, WithLogger(zap.New(core).Sugar()))
	require.NoError(t, err)

	res := c.Fetch(context.Background(), V3, "loop", nil)
	require.True(t, res.Failed())
	assert.Equal(t, ErrTooManyRedirects, res.Err.Type)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetch_Canceled(t *testing.T) {
	srv := serve(http.StatusOK, `[{"a":1}]`)
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Fetch(ctx, V3, "actives", nil)
	require.True(t, res.Failed())
	assert.Equal(t, ErrCanceled, res.Err.Type)
}

func TestGetOrCreateLimiter(t *testing.T) {
	c := New("k", WithRateLimit(60, 2))
	l1 := c.getOrCreateLimiter(V3)
	l2 := c.getOrCreateLimiter(V3)
	l3 := c.getOrCreateLimiter(V4)

	require.NotNil(t, l1)
	assert.Same(t, l1, l2)
	assert.NotSame(t, l1, l3)
	assert.Equal(t, 2, l1.Burst())
	assert.InDelta(t, 1.0, float64(l1.Limit()), 1e-9)

	unlimited := New("k", WithRateLimit(0, 0))
	assert.Nil(t, unlimited.getOrCreateLimiter(V3))
}

func TestNewFromConfig_InvalidTimeout(t *testing.T) {
	_, err := NewFromConfig(config.FMPConfig{ConnectTimeout: "five"})
	assert.Error(t, err)
}
