package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ethcrawler/internal/application"
	"ethcrawler/internal/domain"
	"ethcrawler/internal/infrastructure/explorer"
)

const welcomeMessage = "Welcome to my api"

type AccountService interface {
	GetAccount(ctx context.Context, params domain.QueryParams) (domain.AccountData, error)
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	accounts  AccountService
	metrics   *Metrics
	buildInfo BuildInfo
	logger    *slog.Logger
}

func NewServer(accounts AccountService, metrics *Metrics, buildInfo BuildInfo, logger *slog.Logger) (*Server, error) {
	if accounts == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{accounts: accounts, metrics: metrics, buildInfo: buildInfo, logger: logger}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWelcome)
	mux.HandleFunc("/account", s.handleAccount)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/version", s.handleVersion)
	return withTracing(withCORS(mux))
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(welcomeMessage))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.metrics.IncRequest()

	params, err := parseQueryParams(r.URL.Query())
	if err == nil {
		err = params.Validate()
	}
	if err != nil {
		s.metrics.IncValidationFailure()
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := s.accounts.GetAccount(r.Context(), params)
	if err != nil {
		var aggErr *application.AggregationError
		switch {
		case domain.IsValidationError(err):
			s.metrics.IncValidationFailure()
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &aggErr):
			kind := string(explorer.KindOf(aggErr))
			s.metrics.IncUpstreamFailure(kind)
			respondUpstreamError(w, kind)
		default:
			s.logger.Error("account lookup failed", "address", params.Address, "err", err)
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	snap := s.metrics.Snapshot()

	uptime := time.Since(snap.StartTime).Seconds()
	fmt.Fprintf(w, "ethcrawler_uptime_seconds %.0f\n", uptime)
	fmt.Fprintf(w, "ethcrawler_account_requests_total %d\n", snap.Requests)
	fmt.Fprintf(w, "ethcrawler_validation_failures_total %d\n", snap.ValidationFailures)
	fmt.Fprintf(w, "ethcrawler_lookups_ok_total %d\n", snap.LookupsOK)
	fmt.Fprintf(w, "ethcrawler_lookups_failed_total %d\n", snap.LookupsFailed)
	for _, entry := range snap.UpstreamByKind {
		fmt.Fprintf(w, "ethcrawler_upstream_failures_total{kind=%q} %d\n", entry.Kind, entry.Count)
	}
	fmt.Fprintf(w, "ethcrawler_last_lookup_seconds %.3f\n", snap.LastLookupLatency.Seconds())
	fmt.Fprintf(w, "ethcrawler_max_lookup_seconds %.3f\n", snap.MaxLookupLatency.Seconds())
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

// parseQueryParams applies defaults for absent keys and rejects values that
// are present but not integers. Range checks are left to Validate.
func parseQueryParams(query url.Values) (domain.QueryParams, error) {
	params := domain.QueryParams{
		Address: strings.TrimSpace(query.Get("address")),
		From:    domain.DefaultFromBlock,
		To:      domain.DefaultToBlock,
		Page:    domain.DefaultPage,
		Offset:  domain.DefaultOffset,
		Sort:    domain.SortAsc,
	}

	var err error
	if params.From, err = parseIntParam(query, "from", params.From, 64); err != nil {
		return domain.QueryParams{}, err
	}
	if params.To, err = parseIntParam(query, "to", params.To, 64); err != nil {
		return domain.QueryParams{}, err
	}
	page, err := parseIntParam(query, "page", int64(params.Page), 32)
	if err != nil {
		return domain.QueryParams{}, err
	}
	offset, err := parseIntParam(query, "offset", int64(params.Offset), 32)
	if err != nil {
		return domain.QueryParams{}, err
	}
	params.Page, params.Offset = int(page), int(offset)

	if raw := strings.TrimSpace(query.Get("sort")); raw != "" {
		params.Sort = strings.ToLower(raw)
	}
	return params, nil
}

func parseIntParam(query url.Values, key string, fallback int64, bitSize int) (int64, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(raw, 10, bitSize)
	if err != nil {
		return 0, &domain.ValidationError{Field: key, Message: "must be an integer"}
	}
	return value, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondUpstreamError(w http.ResponseWriter, kind string) {
	respondJSON(w, http.StatusBadGateway, map[string]string{
		"error": "explorer request failed",
		"kind":  kind,
	})
}
