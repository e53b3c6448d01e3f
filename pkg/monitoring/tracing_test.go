package monitoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingManager() (*TracingManager, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &TracingManager{tracer: tp.Tracer("test"), provider: tp}, recorder
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestStartDatabaseSpan_Attributes(t *testing.T) {
	tm, recorder := recordingManager()

	_, span := tm.StartDatabaseSpan(context.Background(), "insert", "medical_records")
	span.End()

	spans := recorder.Ended()
	assert.Len(t, spans, 1)
	assert.Equal(t, "db.insert", spans[0].Name())

	attrs := spanAttributes(spans[0])
	assert.Equal(t, "postgresql", attrs["db.system"].AsString())
	assert.Equal(t, "insert", attrs["db.operation"].AsString())
	assert.Equal(t, "medical_records", attrs["db.sql.table"].AsString())
}

func TestStartChainSpan_Attributes(t *testing.T) {
	tm, recorder := recordingManager()

	_, span := tm.StartChainSpan(context.Background(), "grantAccess")
	span.End()

	spans := recorder.Ended()
	assert.Len(t, spans, 1)
	assert.Equal(t, "chain.grantAccess", spans[0].Name())
	assert.Equal(t, "grantAccess", spanAttributes(spans[0])["chain.function"].AsString())
}
