package fetch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewHostLimiterDisabled(t *testing.T) {
	t.Parallel()

	for _, requests := range []float64{0, -1} {
		l := NewHostLimiter(requests, 5)
		if l != nil {
			t.Errorf("NewHostLimiter(%v) = %+v, want nil", requests, l)
		}
		if err := l.Wait(context.Background(), "example.com"); err != nil {
			t.Errorf("nil limiter Wait() error = %v", err)
		}
	}
}

func TestHostLimiterPerHost(t *testing.T) {
	t.Parallel()

	l := NewHostLimiter(1, 1)

	// The first request to each host uses the burst token.
	for _, host := range []string{"a.example", "b.example", "c.example"} {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		err := l.Wait(ctx, host)
		cancel()
		if err != nil {
			t.Errorf("Wait(%s) error = %v", host, err)
		}
	}

	// A second request to the same host must wait about a second.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "A.EXAMPLE"); err == nil {
		t.Error("Wait() returned immediately, want throttling for the same host")
	}
}

func TestHostLimiterCancelled(t *testing.T) {
	t.Parallel()

	l := NewHostLimiter(0.001, 1)
	_ = l.Wait(context.Background(), "slow.example")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx, "slow.example"); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}
