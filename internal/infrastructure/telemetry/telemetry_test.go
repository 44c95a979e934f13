package telemetry

import (
	"context"
	"net/http"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeaders_RoundTripTraceContext(t *testing.T) {
	_, err := InitTracer(context.Background(), "test", "")
	require.NoError(t, err)

	ctx, ok := ContextWithRemoteTraceID(context.Background(), "4bf92f3577b34da6a3ce929d0e0e4736")
	require.True(t, ok)

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "origin", Value: []byte("crawler")}})
	require.Len(t, headers, 2)

	extracted := ExtractKafkaHeaders(context.Background(), headers)
	spanCtx := trace.SpanContextFromContext(extracted)
	require.True(t, spanCtx.IsValid())
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spanCtx.TraceID().String())
	require.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", TraceIDFromContext(extracted))
}

func TestContextWithRemoteTraceID_RejectsGarbage(t *testing.T) {
	ctx := context.Background()
	got, ok := ContextWithRemoteTraceID(ctx, "not-a-trace")
	require.False(t, ok)
	require.Equal(t, ctx, got)
	require.Empty(t, TraceIDFromContext(got))
}

func TestHTTPHeaders_RoundTripTraceContext(t *testing.T) {
	_, err := InitTracer(context.Background(), "test", "")
	require.NoError(t, err)

	ctx, ok := ContextWithRemoteTraceID(context.Background(), "0af7651916cd43dd8448eb211c80319c")
	require.True(t, ok)

	headers := http.Header{}
	InjectHTTPHeaders(ctx, headers)
	require.NotEmpty(t, headers.Get("traceparent"))

	extracted := ExtractHTTPHeaders(context.Background(), headers)
	require.Equal(t, "0af7651916cd43dd8448eb211c80319c", TraceIDFromContext(extracted))
}
