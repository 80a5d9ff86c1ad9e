package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics()

	ok, err := goplug.NewBuilder("checkout").
		Use(m.Observe(), "checkout").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	boom := errors.New("boom")
	failing, err := goplug.NewBuilder("failing").
		Use(m.Observe(), "failing").
		UseFunc(func(ctx context.Context, msg message.Message, next goplug.Handler, _ any) (message.Message, error) {
			return msg, boom
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	nacking, err := goplug.NewBuilder("nacking").
		Use(m.Observe(), "nacking").
		UseFunc(func(ctx context.Context, msg message.Message, next goplug.Handler, _ any) (message.Message, error) {
			return next(ctx, msg.Nack())
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := context.Background()
	for range 2 {
		if _, err := ok.Run(ctx, message.Message{}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	}
	if _, err := failing.Run(ctx, message.Message{}); !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want boom", err)
	}
	if _, err := nacking.Run(ctx, message.Message{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := testutil.ToFloat64(m.messagesTotal.WithLabelValues("checkout", "ack")); got != 2 {
		t.Errorf("checkout acks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.messagesTotal.WithLabelValues("failing", "error")); got != 1 {
		t.Errorf("failing errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.messagesTotal.WithLabelValues("nacking", "nack")); got != 1 {
		t.Errorf("nacking nacks = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.messageDuration); got != 3 {
		t.Errorf("duration series = %d, want 3", got)
	}
}

func TestMetricsObserve_RequiresLabel(t *testing.T) {
	m := NewMetrics()

	p, err := goplug.NewBuilder("unlabeled").
		Use(m.Observe()).
		Build()
	if err == nil {
		t.Fatal("expected build error without a pipeline label")
	}
	if p != nil {
		t.Fatal("expected nil pipeline on build error")
	}
}

func TestMetricsHandler(t *testing.T) {
	if NewMetrics().Handler() == nil {
		t.Error("expected handler for own registry")
	}
	if NewMetricsOn(prometheus.NewRegistry()).Handler() != nil {
		t.Error("expected nil handler for foreign registerer")
	}
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()

	m.Record("manual", message.Message{}, nil, 0)
	m.Record("manual", message.Message{}, errors.New("x"), 0)

	if got := testutil.ToFloat64(m.messagesTotal.WithLabelValues("manual", "ack")); got != 1 {
		t.Errorf("manual acks = %v", got)
	}
	if got := testutil.ToFloat64(m.messagesTotal.WithLabelValues("manual", "error")); got != 1 {
		t.Errorf("manual errors = %v", got)
	}
}
