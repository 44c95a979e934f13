package application

import (
	"context"
	"sync"
	"time"

	"ethcrawler/internal/infrastructure/explorer"
	"ethcrawler/internal/streaming"

	testMock "github.com/stretchr/testify/mock"
)

type sourceMock struct {
	testMock.Mock
}

func (s *sourceMock) FetchBalance(ctx context.Context, address string) (explorer.BalanceResult, error) {
	args := s.Called(ctx, address)

	return args.Get(0).(explorer.BalanceResult), args.Error(1)
}

func (s *sourceMock) FetchTransactions(ctx context.Context, query explorer.TransactionQuery) (explorer.TransactionListResult, error) {
	args := s.Called(ctx, query)

	return args.Get(0).(explorer.TransactionListResult), args.Error(1)
}

type publisherMock struct {
	testMock.Mock
}

func (p *publisherMock) PublishLookup(ctx context.Context, msg streaming.Message) error {
	args := p.Called(ctx, msg)

	return args.Error(0)
}

type observerStub struct {
	mu       sync.Mutex
	outcomes []streaming.Outcome
}

func (o *observerStub) OnLookup(outcome streaming.Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}
