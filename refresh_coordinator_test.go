package goSession

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/token"
)

type scriptedExchange struct {
	calls   atomic.Int64
	release chan struct{}
	result  flows.RefreshResult
}

func (e *scriptedExchange) run(ctx context.Context) flows.RefreshResult {
	e.calls.Add(1)
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return flows.RefreshResult{Failure: flows.RefreshFailureTransport, Err: ctx.Err()}
		}
	}
	return e.result
}

func newTestCoordinator(store *session.TokenStore, ex *scriptedExchange) *refreshCoordinator {
	c := newRefreshCoordinator(store, time.Second, NewMetrics(MetricsConfig{Enabled: true}), hclog.NewNullLogger())
	c.exchange = ex.run
	return c
}

func TestCoordinatorReturnsNewerTokenWithoutExchange(t *testing.T) {
	store := session.NewTokenStore()
	store.Set(token.Token{Raw: "t2"})
	ex := &scriptedExchange{}
	c := newTestCoordinator(store, ex)

	tok, err := c.refresh(context.Background(), "t1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tok.Raw != "t2" || ex.calls.Load() != 0 {
		t.Fatalf("expected held t2 without exchange, got %q after %d calls", tok.Raw, ex.calls.Load())
	}
}

func TestCoordinatorJoinsInFlightExchange(t *testing.T) {
	store := session.NewTokenStore()
	store.Set(token.Token{Raw: "t1"})
	ex := &scriptedExchange{
		release: make(chan struct{}),
		result:  flows.RefreshResult{AccessToken: "t2"},
	}
	c := newTestCoordinator(store, ex)

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := c.refresh(context.Background(), "t1")
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			results <- tok.Raw
		}()
	}

	for ex.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(ex.release)
	wg.Wait()
	close(results)

	for raw := range results {
		if raw != "t2" {
			t.Fatalf("expected t2, got %q", raw)
		}
	}
	if got := ex.calls.Load(); got != 1 {
		t.Fatalf("expected one exchange, got %d", got)
	}
	if held, _ := store.Get(); held.Raw != "t2" {
		t.Fatalf("store should hold t2, got %q", held.Raw)
	}
}

func TestCoordinatorFailureClearsStore(t *testing.T) {
	store := session.NewTokenStore()
	store.Set(token.Token{Raw: "t1"})
	ex := &scriptedExchange{result: flows.RefreshResult{Failure: flows.RefreshFailureDenied, StatusCode: http.StatusUnauthorized}}
	c := newTestCoordinator(store, ex)

	var cleared atomic.Bool
	c.onFailure = func(_ context.Context, _ string, _ error, wasCleared bool) {
		cleared.Store(wasCleared)
	}

	_, err := c.refresh(context.Background(), "t1")
	if !errors.Is(err, ErrRefreshDenied) {
		t.Fatalf("expected ErrRefreshDenied, got %v", err)
	}
	if _, ok := store.Get(); ok {
		t.Fatal("store should be cleared")
	}
	if !cleared.Load() {
		t.Fatal("failure hook should report the teardown")
	}

	// A caller still holding t1 does not start another exchange.
	if _, err := c.refresh(context.Background(), "t1"); !errors.Is(err, ErrRefreshDenied) {
		t.Fatalf("expected torn-down error, got %v", err)
	}
	if got := ex.calls.Load(); got != 1 {
		t.Fatalf("expected one exchange, got %d", got)
	}
}

func TestCoordinatorMapsFailureKinds(t *testing.T) {
	tests := []struct {
		name string
		res  flows.RefreshResult
		want error
	}{
		{"denied", flows.RefreshResult{Failure: flows.RefreshFailureDenied, StatusCode: 403}, ErrRefreshDenied},
		{"server", flows.RefreshResult{Failure: flows.RefreshFailureServer, StatusCode: 503}, ErrRefreshTransport},
		{"transport", flows.RefreshResult{Failure: flows.RefreshFailureTransport, Err: errors.New("dial")}, ErrRefreshTransport},
		{"decode", flows.RefreshResult{Failure: flows.RefreshFailureDecode, Err: errors.New("eof")}, ErrRefreshTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := mapRefreshFailure(tc.res); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCoordinatorReleaseFailsWaiters(t *testing.T) {
	store := session.NewTokenStore()
	store.Set(token.Token{Raw: "t1"})
	ex := &scriptedExchange{
		release: make(chan struct{}),
		result:  flows.RefreshResult{AccessToken: "t2"},
	}
	c := newTestCoordinator(store, ex)

	done := make(chan error, 1)
	go func() {
		_, err := c.refresh(context.Background(), "t1")
		done <- err
	}()
	for ex.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	c.release()
	if err := <-done; !errors.Is(err, ErrRefreshDenied) {
		t.Fatalf("expected ErrRefreshDenied, got %v", err)
	}

	close(ex.release)
	deadline := time.Now().Add(time.Second)
	for c.metrics.Value(MetricRefreshDiscarded) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if _, ok := store.Get(); ok {
		t.Fatal("a refresh started before release must not repopulate the store")
	}
}

func TestCoordinatorCallerCancellation(t *testing.T) {
	store := session.NewTokenStore()
	store.Set(token.Token{Raw: "t1"})
	ex := &scriptedExchange{
		release: make(chan struct{}),
		result:  flows.RefreshResult{AccessToken: "t2"},
	}
	c := newTestCoordinator(store, ex)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.refresh(ctx, "t1")
		done <- err
	}()
	for ex.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(ex.release)
	tok, err := c.refresh(context.Background(), "t1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tok.Raw != "t2" {
		t.Fatalf("expected the detached exchange result, got %q", tok.Raw)
	}
	if got := ex.calls.Load(); got != 1 {
		t.Fatalf("expected the exchange to survive cancellation, got %d calls", got)
	}
}

func TestCoordinatorEmptyStoreAfterLogout(t *testing.T) {
	store := session.NewTokenStore()
	ex := &scriptedExchange{result: flows.RefreshResult{AccessToken: "t2"}}
	c := newTestCoordinator(store, ex)

	// Before any logout an empty store may be restored from the refresh cookie.
	tok, err := c.refresh(context.Background(), "")
	if err != nil || tok.Raw != "t2" {
		t.Fatalf("expected restore to t2, got %q, %v", tok.Raw, err)
	}

	c.release()
	if _, err := c.refresh(context.Background(), ""); !errors.Is(err, ErrRefreshDenied) {
		t.Fatalf("expected ErrRefreshDenied after release, got %v", err)
	}
	if got := ex.calls.Load(); got != 1 {
		t.Fatalf("expected no exchange after release, got %d calls", got)
	}

	c.resume()
	store.Set(token.Token{Raw: "t3"})
	ex.result = flows.RefreshResult{AccessToken: "t4"}
	if tok, err := c.refresh(context.Background(), "t3"); err != nil || tok.Raw != "t4" {
		t.Fatalf("expected t4 after resume, got %q, %v", tok.Raw, err)
	}
}
