package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"ethcrawler/internal/application"
	"ethcrawler/internal/domain"
	"ethcrawler/internal/infrastructure/explorer"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const explorerURL = "https://explorer.test/api"

type stubAccounts struct {
	mu     sync.Mutex
	calls  []domain.QueryParams
	result domain.AccountData
	err    error
}

func (s *stubAccounts) GetAccount(_ context.Context, params domain.QueryParams) (domain.AccountData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, params)
	return s.result, s.err
}

// newExplorerServer wires the real aggregator to an explorer client whose
// transport is mocked.
func newExplorerServer(t *testing.T, responder httpmock.Responder) (*Server, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, explorerURL, responder)

	client, err := explorer.NewClient(explorer.Config{
		BaseURL:    explorerURL,
		APIKey:     "test-key",
		Timeout:    time.Second,
		HTTPClient: &http.Client{Transport: transport},
	})
	require.NoError(t, err)

	metrics := NewMetrics()
	agg, err := application.NewAggregator(client, application.AggregatorOptions{Observer: metrics})
	require.NoError(t, err)

	server, err := NewServer(agg, metrics, BuildInfo{Version: "test"}, nil)
	require.NoError(t, err)
	return server, transport
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAccount_Success(t *testing.T) {
	c := require.New(t)
	var (
		mu       sync.Mutex
		txlistQS url.Values
	)
	server, transport := newExplorerServer(t, func(req *http.Request) (*http.Response, error) {
		switch req.URL.Query().Get("action") {
		case "balance":
			return httpmock.NewStringResponse(http.StatusOK,
				`{"status":"1","message":"OK","result":"1000000000000000000"}`), nil
		default:
			mu.Lock()
			txlistQS = req.URL.Query()
			mu.Unlock()
			return httpmock.NewStringResponse(http.StatusOK, `{"status":"1","message":"OK","result":[
				{"blockNumber":"50","timeStamp":"0","hash":"0x1","from":"0xabc","to":"0xdef","value":"500000000000000000","gasPrice":"1","cumulativeGasUsed":"21000"}
			]}`), nil
		}
	})

	rec := get(t, server.Handler(), "/account?address=0xabc&from=0&to=100&page=1&offset=10&sort=asc")
	c.Equal(http.StatusOK, rec.Code)
	c.Equal("application/json", rec.Header().Get("Content-Type"))
	c.Equal(2, transport.GetTotalCallCount())

	mu.Lock()
	c.Equal("0", txlistQS.Get("startblock"))
	c.Equal("100", txlistQS.Get("endblock"))
	c.Equal("10", txlistQS.Get("offset"))
	mu.Unlock()

	var account domain.AccountData
	c.NoError(json.Unmarshal(rec.Body.Bytes(), &account))
	c.Equal("0xabc", account.Address)
	c.Equal("1000000000000000000", account.Balance)
	c.Equal(1, account.Page)
	c.Equal(10, account.Offset)
	c.Equal("asc", account.Sort)
	c.Len(account.NormalTransactions, 1)
	c.Equal("500000000000000000", account.NormalTransactions[0].Value)
	c.Equal("21000", account.NormalTransactions[0].CumulativeGasUsed)

	var raw map[string]any
	c.NoError(json.Unmarshal(rec.Body.Bytes(), &raw))
	c.Contains(raw, "normal_transactions")
}

func TestAccount_InvalidRangeSkipsUpstream(t *testing.T) {
	server, transport := newExplorerServer(t, httpmock.NewStringResponder(http.StatusOK, `{}`))

	rec := get(t, server.Handler(), "/account?address=0xabc&from=50&to=10")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"error"`)
	require.Equal(t, 0, transport.GetTotalCallCount())
	require.Equal(t, uint64(1), server.MetricsObserver().Snapshot().ValidationFailures)
}

func TestAccount_UpstreamFailure(t *testing.T) {
	server, _ := newExplorerServer(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("action") == "balance" {
			return httpmock.NewStringResponse(http.StatusInternalServerError, "boom"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, `{"status":"1","message":"OK","result":[]}`), nil
	})

	rec := get(t, server.Handler(), "/account?address=0xabc")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "remote_error", body["kind"])
	require.NotEmpty(t, body["error"])
	require.NotContains(t, rec.Body.String(), "balance")

	snap := server.MetricsObserver().Snapshot()
	require.Equal(t, []KindCount{{Kind: "remote_error", Count: 1}}, snap.UpstreamByKind)
	require.Equal(t, uint64(1), snap.LookupsFailed)
}

func TestAccount_ParseAndDefaults(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		want   *domain.QueryParams
	}{
		{
			name:   "defaults",
			target: "/account?address=%200xabc%20",
			status: http.StatusOK,
			want:   &domain.QueryParams{Address: "0xabc", From: 0, To: 99999999, Page: 1, Offset: 1000, Sort: "asc"},
		},
		{
			name:   "explicit",
			target: "/account?address=0xabc&from=5&to=6&page=3&offset=20&sort=DESC",
			status: http.StatusOK,
			want:   &domain.QueryParams{Address: "0xabc", From: 5, To: 6, Page: 3, Offset: 20, Sort: "desc"},
		},
		{name: "non integer from", target: "/account?address=0xabc&from=abc", status: http.StatusBadRequest},
		{name: "non integer page", target: "/account?address=0xabc&page=1.5", status: http.StatusBadRequest},
		{name: "negative block", target: "/account?address=0xabc&from=-1", status: http.StatusBadRequest},
		{name: "missing address", target: "/account?from=1&to=2", status: http.StatusBadRequest},
		{name: "bad sort", target: "/account?address=0xabc&sort=up", status: http.StatusBadRequest},
		{name: "zero offset", target: "/account?address=0xabc&offset=0", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &stubAccounts{result: domain.AccountData{Address: "0xabc"}}
			server, err := NewServer(accounts, nil, BuildInfo{}, nil)
			require.NoError(t, err)

			rec := get(t, server.Handler(), tt.target)
			require.Equal(t, tt.status, rec.Code)
			if tt.want == nil {
				require.Empty(t, accounts.calls)
				return
			}
			require.Len(t, accounts.calls, 1)
			require.Equal(t, *tt.want, accounts.calls[0])
		})
	}
}

func TestAccount_MethodNotAllowed(t *testing.T) {
	accounts := &stubAccounts{}
	server, err := NewServer(accounts, nil, BuildInfo{}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/account?address=0xabc", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Empty(t, accounts.calls)
}

func corsRequest(method, target string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return req
}

func TestCORS(t *testing.T) {
	accounts := &stubAccounts{}
	server, err := NewServer(accounts, nil, BuildInfo{}, nil)
	require.NoError(t, err)
	handler := server.Handler()

	for _, target := range []string{"/", "/account?address=0xabc", "/healthz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, corsRequest(http.MethodGet, target, map[string]string{"Origin": "http://localhost:8080"}))
		require.Equal(t, http.StatusOK, rec.Code, target)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), target)
	}
	require.Len(t, accounts.calls, 1)

	tests := []struct {
		name         string
		method       string
		headers      string
		allowed      bool
		allowMethods string
	}{
		{name: "get", method: http.MethodGet, allowed: true, allowMethods: "GET"},
		{name: "post with headers", method: http.MethodPost, headers: "content-type,x-requested-with", allowed: true, allowMethods: "POST"},
		{name: "delete", method: http.MethodDelete},
		{name: "unlisted header", method: http.MethodGet, headers: "authorization"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{
				"Origin":                        "http://localhost:8080",
				"Access-Control-Request-Method": tt.method,
			}
			if tt.headers != "" {
				headers["Access-Control-Request-Headers"] = tt.headers
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, corsRequest(http.MethodOptions, "/account", headers))

			require.Equal(t, http.StatusNoContent, rec.Code)
			if !tt.allowed {
				require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
				return
			}
			require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			require.Equal(t, tt.allowMethods, rec.Header().Get("Access-Control-Allow-Methods"))
			if tt.headers != "" {
				require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Headers"))
			}
		})
	}
	require.Len(t, accounts.calls, 1)
}

func TestWelcomeAndOperationalRoutes(t *testing.T) {
	server, err := NewServer(&stubAccounts{}, nil, BuildInfo{Version: "1.2.3", Commit: "abc"}, nil)
	require.NoError(t, err)
	handler := server.Handler()

	rec := get(t, handler, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Welcome to my api", rec.Body.String())
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))

	rec = get(t, handler, "/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, handler, "/healthz")
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, handler, "/version")
	require.JSONEq(t, `{"version":"1.2.3","commit":"abc","build_time":""}`, rec.Body.String())

	_ = get(t, handler, "/account?address=0xabc")
	rec = get(t, handler, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ethcrawler_account_requests_total 1\n")
}
