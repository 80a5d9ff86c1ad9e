package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/fxsml/goplug/broker"
	"github.com/fxsml/goplug/broker/redis"
)

func newTestTransport(t *testing.T) *redis.Transport {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewTransport(redis.Config{Addr: mr.Addr()})
}

func redisClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr})
}

func TestTransport_SendReceive(t *testing.T) {
	tr := newTestTransport(t)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	deliveries, err := tr.Subscribe(ctx, "orders")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := tr.Send(ctx, "orders", []byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case d := <-deliveries:
		if string(d.Data) != "hello" {
			t.Errorf("Data = %q, want %q", d.Data, "hello")
		}
		if d.Source != "orders" {
			t.Errorf("Source = %q, want %q", d.Source, "orders")
		}
	case <-ctx.Done():
		t.Fatal("Timeout waiting for delivery")
	}
}

func TestTransport_PatternSubscription(t *testing.T) {
	tr := newTestTransport(t)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	deliveries, err := tr.Subscribe(ctx, "orders.*")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := tr.Send(ctx, "orders.created", []byte("one")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case d := <-deliveries:
		if d.Source != "orders.created" {
			t.Errorf("Source = %q", d.Source)
		}
		if string(d.Data) != "one" {
			t.Errorf("Data = %q", d.Data)
		}
	case <-ctx.Done():
		t.Fatal("Timeout waiting for delivery")
	}
}

func TestTransport_ContextCancellation(t *testing.T) {
	tr := newTestTransport(t)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	deliveries, err := tr.Subscribe(ctx, "events")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	cancel()

	select {
	case _, ok := <-deliveries:
		if ok {
			t.Fatal("expected channel to close without a delivery")
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for channel close")
	}
}

func TestTransport_InjectedClientNotClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisClient(mr.Addr())
	defer client.Close()

	tr := redis.NewTransport(redis.Config{Client: client})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := tr.Send(ctx, "events", []byte("x")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The injected client must survive the transport.
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("injected client was closed: %v", err)
	}
}

func TestTransport_Closed(t *testing.T) {
	tr := newTestTransport(t)

	ctx := context.Background()
	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tr.Send(ctx, "events", []byte("x")); !errors.Is(err, broker.ErrTransportClosed) {
		t.Errorf("Send after close = %v", err)
	}
	if _, err := tr.Subscribe(ctx, "events"); !errors.Is(err, broker.ErrTransportClosed) {
		t.Errorf("Subscribe after close = %v", err)
	}
}
