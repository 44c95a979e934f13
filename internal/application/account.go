package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ethcrawler/internal/domain"
	"ethcrawler/internal/infrastructure/explorer"
	"ethcrawler/internal/infrastructure/telemetry"
	"ethcrawler/internal/streaming"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const publishTimeout = 5 * time.Second

type AccountSource interface {
	FetchBalance(ctx context.Context, address string) (explorer.BalanceResult, error)
	FetchTransactions(ctx context.Context, query explorer.TransactionQuery) (explorer.TransactionListResult, error)
}

type LookupPublisher interface {
	PublishLookup(ctx context.Context, msg streaming.Message) error
}

type LookupObserver interface {
	OnLookup(outcome streaming.Outcome, latency time.Duration)
}

type AggregationErrorKind string

const UpstreamFailure AggregationErrorKind = "upstream_failure"

// AggregationError reports a lookup that could not be assembled. Err is the
// *explorer.Error of whichever upstream call failed first.
type AggregationError struct {
	Kind AggregationErrorKind
	Err  error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

type AggregatorOptions struct {
	Publisher LookupPublisher
	Observer  LookupObserver
	Logger    *slog.Logger
}

// Aggregator assembles AccountData from the balance and transaction list
// calls. It holds no per-request state.
type Aggregator struct {
	source    AccountSource
	publisher LookupPublisher
	observer  LookupObserver
	logger    *slog.Logger
	now       func() time.Time
	pending   sync.WaitGroup
}

func NewAggregator(source AccountSource, opts AggregatorOptions) (*Aggregator, error) {
	if source == nil {
		return nil, errors.New("account source must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		source:    source,
		publisher: opts.Publisher,
		observer:  opts.Observer,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// GetAccount validates params, then fetches balance and transactions
// concurrently. Either both succeed and a complete document is returned, or
// the first failure is returned as an *AggregationError.
func (a *Aggregator) GetAccount(ctx context.Context, params domain.QueryParams) (account domain.AccountData, err error) {
	if err := params.Validate(); err != nil {
		return domain.AccountData{}, err
	}

	ctx, span := telemetry.StartSpan(ctx, "application", "account.get", trace.SpanKindInternal,
		attribute.String("address", params.Address),
		attribute.Int64("block.from", params.From),
		attribute.Int64("block.to", params.To),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	start := a.now()
	var (
		balance explorer.BalanceResult
		txs     explorer.TransactionListResult
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		result, err := a.source.FetchBalance(groupCtx, params.Address)
		if err != nil {
			return err
		}
		balance = result
		return nil
	})
	group.Go(func() error {
		result, err := a.source.FetchTransactions(groupCtx, explorer.TransactionQuery{
			Address:    params.Address,
			StartBlock: params.From,
			EndBlock:   params.To,
			Page:       params.Page,
			Offset:     params.Offset,
			Sort:       params.Sort,
		})
		if err != nil {
			return err
		}
		txs = result
		return nil
	})

	if err := group.Wait(); err != nil {
		latency := a.now().Sub(start)
		a.logger.Warn("account lookup failed",
			"address", params.Address,
			"kind", explorer.KindOf(err),
			"latency", latency,
			"err", err,
		)
		a.record(ctx, params, streaming.OutcomeUpstreamFailure, 0, string(explorer.KindOf(err)), latency)
		return domain.AccountData{}, &AggregationError{Kind: UpstreamFailure, Err: err}
	}

	transactions := txs.Transactions
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	account = domain.AccountData{
		Address:            params.Address,
		Balance:            balance.Balance,
		Page:               params.Page,
		Offset:             params.Offset,
		Sort:               params.Sort,
		NormalTransactions: transactions,
	}

	latency := a.now().Sub(start)
	a.logger.Info("account lookup",
		"address", params.Address,
		"from", params.From,
		"to", params.To,
		"txs", len(transactions),
		"latency", latency,
	)
	a.record(ctx, params, streaming.OutcomeSuccess, len(transactions), "", latency)
	return account, nil
}

// Wait blocks until every lookup event started so far has been published.
func (a *Aggregator) Wait() {
	a.pending.Wait()
}

func (a *Aggregator) record(ctx context.Context, params domain.QueryParams, outcome streaming.Outcome, txCount int, errKind string, latency time.Duration) {
	if a.observer != nil {
		a.observer.OnLookup(outcome, latency)
	}
	if a.publisher == nil {
		return
	}

	msg := streaming.Message{
		Type:      streaming.MessageTypeLookup,
		TraceID:   telemetry.TraceIDFromContext(ctx),
		Address:   params.Address,
		FromBlock: params.From,
		ToBlock:   params.To,
		Page:      params.Page,
		Offset:    params.Offset,
		Sort:      params.Sort,
		Outcome:   outcome,
		TxCount:   txCount,
		ErrorKind: errKind,
		LatencyMS: latency.Milliseconds(),
		At:        a.now().UTC(),
	}
	publishCtx := context.WithoutCancel(ctx)
	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		ctx, cancel := context.WithTimeout(publishCtx, publishTimeout)
		defer cancel()
		if err := a.publisher.PublishLookup(ctx, msg); err != nil {
			a.logger.Warn("lookup event publish failed", "address", msg.Address, "err", err)
		}
	}()
}
