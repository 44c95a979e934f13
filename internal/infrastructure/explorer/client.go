package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
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

const (
	DefaultTimeout = 10 * time.Second

	accountModule = "account"
	statusOK      = "1"
	statusNotOK   = "0"
	noTxMessage   = "No transactions found"
)

// Limiter throttles outbound calls. Wait blocks until a call may proceed.
type Limiter interface {
	Wait(ctx context.Context) error
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Limiter    Limiter
}

// Client talks to an Etherscan-compatible explorer API. It is safe for
// concurrent use; the underlying *http.Client is shared across calls.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	limiter    Limiter
}

type BalanceResult struct {
	Address string
	Balance string
}

// TransactionQuery selects one page of normal transactions. Field tags name
// the explorer's query keys.
type TransactionQuery struct {
	Address    string `structs:"address"`
	StartBlock int64  `structs:"startblock"`
	EndBlock   int64  `structs:"endblock"`
	Page       int    `structs:"page"`
	Offset     int    `structs:"offset"`
	Sort       string `structs:"sort"`
}

type TransactionListResult struct {
	Transactions []domain.Transaction
}

type balanceQuery struct {
	Address string `structs:"address"`
	Tag     string `structs:"tag"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type explorerTx struct {
	BlockNumber       string `json:"blockNumber"`
	TimeStamp         string `json:"timeStamp"`
	Hash              string `json:"hash"`
	Nonce             string `json:"nonce"`
	BlockHash         string `json:"blockHash"`
	TransactionIndex  string `json:"transactionIndex"`
	From              string `json:"from"`
	To                string `json:"to"`
	Value             string `json:"value"`
	Gas               string `json:"gas"`
	GasPrice          string `json:"gasPrice"`
	IsError           string `json:"isError"`
	TxReceiptStatus   string `json:"txreceipt_status"`
	Input             string `json:"input"`
	ContractAddress   string `json:"contractAddress"`
	CumulativeGasUsed string `json:"cumulativeGasUsed"`
	GasUsed           string `json:"gasUsed"`
	Confirmations     string `json:"confirmations"`
	MethodID          string `json:"methodId"`
	FunctionName      string `json:"functionName"`
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("explorer url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid explorer url: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, errors.New("explorer api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		limiter:    cfg.Limiter,
	}, nil
}

func (c *Client) FetchBalance(ctx context.Context, address string) (BalanceResult, error) {
	var balance string
	err := c.call(ctx, "balance", balanceQuery{Address: address, Tag: "latest"}, &balance,
		attribute.String("address", address),
	)
	if err != nil {
		return BalanceResult{}, err
	}
	return BalanceResult{Address: address, Balance: balance}, nil
}

func (c *Client) FetchTransactions(ctx context.Context, query TransactionQuery) (TransactionListResult, error) {
	var txs []explorerTx
	err := c.call(ctx, "txlist", query, &txs,
		attribute.String("address", query.Address),
		attribute.Int64("block.from", query.StartBlock),
		attribute.Int64("block.to", query.EndBlock),
		attribute.Int("page", query.Page),
		attribute.Int("offset", query.Offset),
	)
	if err != nil {
		return TransactionListResult{}, err
	}

	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.toDomain())
	}
	return TransactionListResult{Transactions: out}, nil
}

func (c *Client) call(ctx context.Context, action string, query any, result any, attrs ...attribute.KeyValue) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "explorer", "explorer."+action, trace.SpanKindClient,
		append(attrs, attribute.String("explorer.action", action))...)
	defer func() { telemetry.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return transportError(action, fmt.Errorf("rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(action, query), nil)
	if err != nil {
		return &Error{Kind: KindUnreachable, Op: action, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(action, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &Error{Kind: KindRemote, Op: action, Status: resp.StatusCode}
	}

	var decoded envelope
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transportError(action, ctxErr)
		}
		return &Error{Kind: KindDecode, Op: action, Err: err}
	}

	switch decoded.Status {
	case statusOK:
	case statusNotOK:
		if decoded.Message == noTxMessage && action == "txlist" {
			// An address without history is reported as a failure envelope
			// carrying an empty list.
			if err := json.Unmarshal([]byte("[]"), result); err != nil {
				return &Error{Kind: KindDecode, Op: action, Err: err}
			}
			return nil
		}
		return &Error{Kind: KindRemote, Op: action, Status: resp.StatusCode, Message: envelopeMessage(decoded)}
	default:
		return &Error{Kind: KindDecode, Op: action, Err: fmt.Errorf("unexpected envelope status %q", decoded.Status)}
	}

	if len(decoded.Result) == 0 {
		return &Error{Kind: KindDecode, Op: action, Err: errors.New("result is empty")}
	}
	if err := json.Unmarshal(decoded.Result, result); err != nil {
		return &Error{Kind: KindDecode, Op: action, Err: err}
	}
	return nil
}

func (c *Client) requestURL(action string, query any) string {
	values := url.Values{}
	for key, value := range structs.Map(query) {
		values.Set(key, fmt.Sprint(value))
	}
	values.Set("module", accountModule)
	values.Set("action", action)
	values.Set("apikey", c.apiKey)

	separator := "?"
	if strings.Contains(c.baseURL, "?") {
		separator = "&"
	}
	return c.baseURL + separator + values.Encode()
}

// transportError classifies a failed round trip. The *url.Error wrapper is
// dropped because its message carries the request URL and with it the key.
func transportError(op string, err error) *Error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindUnreachable, Op: op, Err: err}
}

func envelopeMessage(env envelope) string {
	var detail string
	if err := json.Unmarshal(env.Result, &detail); err == nil && detail != "" {
		if env.Message != "" {
			return env.Message + ": " + detail
		}
		return detail
	}
	return env.Message
}

func (tx explorerTx) toDomain() domain.Transaction {
	return domain.Transaction{
		Hash:              tx.Hash,
		From:              tx.From,
		To:                tx.To,
		BlockNumber:       tx.BlockNumber,
		BlockHash:         tx.BlockHash,
		TimeStamp:         tx.TimeStamp,
		Nonce:             tx.Nonce,
		TransactionIndex:  tx.TransactionIndex,
		Value:             tx.Value,
		Gas:               tx.Gas,
		GasPrice:          tx.GasPrice,
		GasUsed:           tx.GasUsed,
		CumulativeGasUsed: tx.CumulativeGasUsed,
		IsError:           tx.IsError,
		TxReceiptStatus:   tx.TxReceiptStatus,
		Input:             tx.Input,
		ContractAddress:   tx.ContractAddress,
		Confirmations:     tx.Confirmations,
		MethodID:          tx.MethodID,
		FunctionName:      tx.FunctionName,
	}
}
