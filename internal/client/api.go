// Package client drives account lookups from a terminal against the crawler
// HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ethcrawler/internal/domain"
	"ethcrawler/internal/infrastructure/telemetry"

	"github.com/fatih/structs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultRequestTimeout = 30 * time.Second

type Fetcher interface {
	FetchAccount(ctx context.Context, params domain.QueryParams) (domain.AccountData, error)
}

// APIError is a non-2xx reply from the crawler API.
type APIError struct {
	Status  int
	Message string
	Kind    string
}

func (e *APIError) Error() string {
	switch {
	case e.Kind != "":
		return fmt.Sprintf("api status %d: %s (%s)", e.Status, e.Message, e.Kind)
	case e.Message != "":
		return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("api status %d", e.Status)
	}
}

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

type accountQuery struct {
	Address string `structs:"address"`
	From    int64  `structs:"from"`
	To      int64  `structs:"to"`
	Page    int    `structs:"page"`
	Offset  int    `structs:"offset"`
	Sort    string `structs:"sort"`
}

func NewAPIClient(baseURL string, httpClient *http.Client) (*APIClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &APIClient{baseURL: baseURL, httpClient: httpClient}, nil
}

func (c *APIClient) FetchAccount(ctx context.Context, params domain.QueryParams) (account domain.AccountData, err error) {
	ctx, span := telemetry.StartSpan(ctx, "client", "account.fetch", trace.SpanKindClient,
		attribute.String("address", params.Address),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	values := url.Values{}
	for key, value := range structs.Map(accountQuery(params)) {
		values.Set(key, fmt.Sprint(value))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account?"+values.Encode(), nil)
	if err != nil {
		return domain.AccountData{}, err
	}
	req.Header.Set("Accept", "application/json")
	telemetry.InjectHTTPHeaders(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AccountData{}, fmt.Errorf("request account: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
			apiErr.Message, apiErr.Kind = body.Error, body.Kind
		}
		return domain.AccountData{}, apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return domain.AccountData{}, fmt.Errorf("decode account: %w", err)
	}
	return account, nil
}
