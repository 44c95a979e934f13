package client

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"ethcrawler/internal/domain"
	"ethcrawler/internal/presentation"
)

const (
	MsgInvalidBlocks  = "Invalid block numbers!"
	MsgInvalidAddress = "Invalid wallet address!"
	MsgFetchFailed    = "Failed to fetch account data!"
)

// Input is the raw form as typed by the user.
type Input struct {
	Address string
	From    string
	To      string
}

// State is one of Idle, Validating, Fetching, Displaying or ShowingError.
type State interface {
	state()
}

type Idle struct{}

type Validating struct {
	Input Input
}

// Fetching carries the last successfully displayed document, or nil, so a
// renderer can keep it on screen while the request is in flight.
type Fetching struct {
	Params   domain.QueryParams
	Previous *Displaying
}

type Displaying struct {
	Params domain.QueryParams
	View   presentation.AccountView
}

type ShowingError struct {
	Message string
	Detail  string
}

func (Idle) state()         {}
func (Validating) state()   {}
func (Fetching) state()     {}
func (Displaying) state()   {}
func (ShowingError) state() {}

// Controller runs the lookup form. Only the most recent submission may
// change the state; results of superseded requests are dropped.
type Controller struct {
	fetcher  Fetcher
	onChange func(State)
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	lastShown  *Displaying
	generation uint64
	cancel     context.CancelFunc
	inflight   sync.WaitGroup
}

// NewController returns a Controller in Idle. onChange, if set, is called
// with every new state while the controller lock is held and must not call
// back into the Controller.
func NewController(fetcher Fetcher, onChange func(State), logger *slog.Logger) (*Controller, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{fetcher: fetcher, onChange: onChange, logger: logger, state: Idle{}}, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit validates in and, when it is valid, starts a fetch on its own
// goroutine. Any fetch still running for an earlier submission is cancelled.
func (c *Controller) Submit(ctx context.Context, in Input) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	generation := c.generation

	c.setState(Validating{Input: in})
	params, err := BuildParams(in)
	if err != nil {
		c.setState(ShowingError{Message: err.Error()})
		return
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.setState(Fetching{Params: params, Previous: c.lastShown})

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer cancel()
		account, err := c.fetcher.FetchAccount(fetchCtx, params)
		c.finish(generation, params, account, err)
	}()
}

// Wait blocks until every started fetch has returned.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Close cancels the in-flight fetch, if any, and waits for it.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.Wait()
}

func (c *Controller) finish(generation uint64, params domain.QueryParams, account domain.AccountData, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		c.logger.Debug("dropping stale result", "address", params.Address, "generation", generation)
		return
	}
	c.cancel = nil
	if err != nil {
		c.logger.Warn("account fetch failed", "address", params.Address, "err", err)
		c.setState(ShowingError{Message: MsgFetchFailed, Detail: err.Error()})
		return
	}
	shown := Displaying{Params: params, View: presentation.FormatAccount(account)}
	c.lastShown = &shown
	c.setState(shown)
}

func (c *Controller) setState(next State) {
	c.state = next
	if c.onChange != nil {
		c.onChange(next)
	}
}

// BuildParams turns form input into a lookup. Blank or non-numeric block
// bounds fall back to the full range; pagination is fixed.
func BuildParams(in Input) (domain.QueryParams, error) {
	params := domain.QueryParams{
		Address: strings.TrimSpace(in.Address),
		From:    parseBlock(in.From, domain.DefaultFromBlock),
		To:      parseBlock(in.To, domain.DefaultToBlock),
		Page:    domain.DefaultPage,
		Offset:  domain.DefaultOffset,
		Sort:    domain.SortAsc,
	}

	var validationErr *domain.ValidationError
	if err := params.Validate(); errors.As(err, &validationErr) {
		if validationErr.Field == "address" {
			return domain.QueryParams{}, errors.New(MsgInvalidAddress)
		}
		return domain.QueryParams{}, errors.New(MsgInvalidBlocks)
	} else if err != nil {
		return domain.QueryParams{}, err
	}
	return params, nil
}

func parseBlock(raw string, fallback int64) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fallback
	}
	return value
}
