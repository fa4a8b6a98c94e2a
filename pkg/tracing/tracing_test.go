package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"lyftr/internal/config"
)

func TestInit_DisabledExportsNothing(t *testing.T) {
	tp, err := Init(config.TracingConfig{})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()

	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestKafkaHeaders_RoundTripTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "event_type", Value: []byte("message.created")}})
	require.Len(t, headers, 2)
	assert.Equal(t, "traceparent", headers[1].Key)

	extracted := trace.SpanContextFromContext(
		otel.GetTextMapPropagator().Extract(context.Background(), &kafkaHeaderCarrier{headers: headers}),
	)
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
}

func TestCreateSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), createSampler(config.SamplerConfig{Type: "always_off"}).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), createSampler(config.SamplerConfig{Type: "always_on"}).Description())
	assert.Contains(t, createSampler(config.SamplerConfig{}).Description(), "ParentBased")
}

func TestEndIngestSpan_RecordsOutcome(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, ok := tp.Tracer("test").Start(context.Background(), "messages.ingest")
	EndIngestSpan(ok, "created", "m1", true)

	_, bad := tp.Tracer("test").Start(context.Background(), "messages.ingest")
	EndIngestSpan(bad, "invalid_signature", "", false)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Contains(t, spans[0].Attributes(), AttrWebhookResult.String("created"))
	assert.Contains(t, spans[0].Attributes(), AttrMessageID.String("m1"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Len(t, spans[1].Attributes(), 1)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
