package httpapi

import (
	"net/http"

	"ethcrawler/internal/infrastructure/telemetry"

	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// corsPolicy is the one cross-origin policy applied to every route. Preflight
// requests are answered by the policy and never reach a handler.
var corsPolicy = cors.New(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet, http.MethodPost},
	AllowedHeaders: []string{"Origin", "Accept", "X-Requested-With", "Content-Type"},
})

func withCORS(next http.Handler) http.Handler {
	return corsPolicy.Handler(next)
}

func withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := telemetry.ExtractHTTPHeaders(r.Context(), r.Header)
		ctx, span := telemetry.StartSpan(ctx, "httpapi", r.Method+" "+r.URL.Path, trace.SpanKindServer,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.URL.Path),
		)
		defer span.End()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.status_code", recorder.status))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
