package datasource

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestRetryPolicyBackoffThenSuccess(t *testing.T) {
	ns := &noSleep{}
	p := RetryPolicy{Attempts: 3, BaseDelay: time.Second, RateLimitDelay: time.Second, Sleep: ns.sleep}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &ErrHTTP{StatusCode: 503, Status: "503 Service Unavailable"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if !reflect.DeepEqual(ns.delays, want) {
		t.Errorf("delays = %v, want %v", ns.delays, want)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	ns := &noSleep{}
	p := RetryPolicy{Attempts: 3, BaseDelay: time.Second, Sleep: ns.sleep}
	boom := errors.New("connection reset")

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if fe.Attempts != 3 || !errors.Is(err, boom) {
		t.Errorf("FetchError = %+v", fe)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// No sleep after the last attempt.
	if len(ns.delays) != 2 {
		t.Errorf("delays = %v, want 2 entries", ns.delays)
	}
}

func TestRetryPolicyRateLimitedRetriesSameAttempt(t *testing.T) {
	ns := &noSleep{}
	p := RetryPolicy{Attempts: 3, BaseDelay: 4 * time.Second, RateLimitDelay: 1500 * time.Millisecond, Sleep: ns.sleep}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return &ErrHTTP{StatusCode: 429, Status: "429 Too Many Requests"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	want := []time.Duration{1500 * time.Millisecond}
	if !reflect.DeepEqual(ns.delays, want) {
		t.Errorf("delays = %v, want %v (rate-limit pause only)", ns.delays, want)
	}
}

func TestRetryPolicyRateLimitedTwiceFallsBackToBackoff(t *testing.T) {
	ns := &noSleep{}
	p := RetryPolicy{Attempts: 2, BaseDelay: time.Second, RateLimitDelay: time.Second, Sleep: ns.sleep}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= 2 {
			return &ErrHTTP{StatusCode: 429}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	// 429, pause, 429 again -> backoff 1s -> success.
	want := []time.Duration{time.Second, time.Second}
	if !reflect.DeepEqual(ns.delays, want) || calls != 3 {
		t.Errorf("calls = %d, delays = %v", calls, ns.delays)
	}
}

func TestRetryPolicyContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{Attempts: 5, BaseDelay: time.Hour}

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicyRealSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p := RetryPolicy{Attempts: 2, BaseDelay: time.Hour}
	start := time.Now()
	err := p.Do(ctx, func(context.Context) error { return errors.New("fail") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("sleep ignored context")
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.Attempts != 3 || p.BaseDelay != time.Second || p.RateLimitDelay != time.Second {
		t.Errorf("DefaultRetryPolicy = %+v", p)
	}
}
