package mq

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaHeaderCarrier(t *testing.T) {
	c := KafkaHeaderCarrier{}
	c.Set("traceparent", "a")
	c.Set("baggage", "b")
	c.Set("traceparent", "c")

	if got := c.Get("traceparent"); got != "c" {
		t.Fatalf("Get(traceparent) = %q, want c", got)
	}
	if got := c.Get("missing"); got != "" {
		t.Fatalf("Get(missing) = %q, want empty", got)
	}
	if keys := c.Keys(); len(keys) != 2 {
		t.Fatalf("Keys() = %v, want 2 keys", keys)
	}
}

func TestProduceMessage(t *testing.T) {
	w := &recordingWriter{}
	if err := ProduceMessage(context.Background(), w, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("ProduceMessage: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "k" || string(w.msgs[0].Value) != "v" {
		t.Fatalf("unexpected message: %+v", w.msgs[0])
	}
}

func TestExtractContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	w := &recordingWriter{}
	if err := ProduceMessage(ctx, w, nil, []byte("v")); err != nil {
		t.Fatal(err)
	}
	got := trace.SpanContextFromContext(ExtractContext(context.Background(), w.msgs[0]))
	if got.TraceID() != sc.TraceID() {
		t.Fatalf("trace id = %s, want %s", got.TraceID(), sc.TraceID())
	}
}
