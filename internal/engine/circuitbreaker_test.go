package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestCB(t *testing.T) (*CircuitBreaker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	cb := NewCircuitBreaker(client, logger)
	return cb, mr
}

// openCircuitAndExpireCooldown opens the circuit for a dependency, then
// sets last_failed_at to 31 seconds ago so the cooldown has elapsed.
func openCircuitAndExpireCooldown(t *testing.T, cb *CircuitBreaker, mr *miniredis.Miniredis, dep string) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, dep)
	}

	// Set last_failed_at to 31 seconds ago (past the 30s cooldown)
	pastTime := time.Now().Unix() - 31
	mr.HSet(cbKey(dep), "last_failed_at", fmt.Sprintf("%d", pastTime))
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	state, allowed := cb.AllowRequest(ctx, "vendor-api")

	if state != StateClosed {
		t.Errorf("expected state %q, got %q", StateClosed, state)
	}
	if !allowed {
		t.Error("requests should be allowed on a fresh circuit")
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, "vendor-api")
	}

	state, allowed := cb.AllowRequest(ctx, "vendor-api")
	if state != StateOpen {
		t.Errorf("expected state %q after 5 failures, got %q", StateOpen, state)
	}
	if allowed {
		t.Error("requests must be rejected while the circuit is open")
	}
}

func TestCircuitBreaker_StaysClosedBelowThreshold(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		cb.RecordFailure(ctx, "vendor-api")
	}

	state, allowed := cb.AllowRequest(ctx, "vendor-api")
	if state != StateClosed || !allowed {
		t.Errorf("4 failures should leave the circuit closed, got %q allowed=%v", state, allowed)
	}
}

func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	cb, mr := setupTestCB(t)
	ctx := context.Background()

	openCircuitAndExpireCooldown(t, cb, mr, "vendor-api")

	state, allowed := cb.AllowRequest(ctx, "vendor-api")
	if state != StateHalfOpen {
		t.Errorf("expected state %q after cooldown, got %q", StateHalfOpen, state)
	}
	if !allowed {
		t.Error("one test request should be allowed in half-open")
	}
}

func TestCircuitBreaker_RecoveryClosesCircuit(t *testing.T) {
	cb, mr := setupTestCB(t)
	ctx := context.Background()

	openCircuitAndExpireCooldown(t, cb, mr, "vendor-api")

	if _, allowed := cb.AllowRequest(ctx, "vendor-api"); !allowed {
		t.Fatal("half-open test request should be allowed")
	}
	cb.RecordSuccess(ctx, "vendor-api")

	state, allowed := cb.AllowRequest(ctx, "vendor-api")
	if state != StateClosed || !allowed {
		t.Errorf("success in half-open should close the circuit, got %q allowed=%v", state, allowed)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, mr := setupTestCB(t)
	ctx := context.Background()

	openCircuitAndExpireCooldown(t, cb, mr, "vendor-api")

	if _, allowed := cb.AllowRequest(ctx, "vendor-api"); !allowed {
		t.Fatal("half-open test request should be allowed")
	}
	cb.RecordFailure(ctx, "vendor-api")

	state, allowed := cb.AllowRequest(ctx, "vendor-api")
	if state != StateOpen {
		t.Errorf("failure in half-open should reopen the circuit, got %q", state)
	}
	if allowed {
		t.Error("requests must be rejected after a failed half-open test")
	}
}

func TestCircuitBreaker_IndependentDependencies(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.RecordFailure(ctx, "vendor-api")
	}

	if _, allowed := cb.AllowRequest(ctx, "vendor-api"); allowed {
		t.Error("vendor-api circuit should be open")
	}
	if _, allowed := cb.AllowRequest(ctx, "other-api"); !allowed {
		t.Error("other-api circuit should be unaffected")
	}
}

func TestCircuitBreaker_GetState(t *testing.T) {
	cb, _ := setupTestCB(t)
	ctx := context.Background()

	state := cb.GetState(ctx, "vendor-api")
	if state.State != StateClosed || state.Failures != 0 {
		t.Errorf("fresh circuit state = %+v, want closed/0", state)
	}

	cb.RecordFailure(ctx, "vendor-api")
	cb.RecordFailure(ctx, "vendor-api")

	state = cb.GetState(ctx, "vendor-api")
	if state.Failures != 2 {
		t.Errorf("failures = %d, want 2", state.Failures)
	}
	if state.LastFailedAt == "" {
		t.Error("last_failed_at should be set after failures")
	}
}
