package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/billing-reconciler/internal/store"
)

func setupTestRQ(t *testing.T) (*RetryQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	rs, err := store.NewRedis(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("connecting to miniredis: %v", err)
	}
	t.Cleanup(func() { rs.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRetryQueue(rs, logger), rs.Client()
}

func TestRetryQueue_EnqueueAndDepth(t *testing.T) {
	rq, _ := setupTestRQ(t)
	ctx := context.Background()

	depth, err := rq.Depth(ctx)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 0 {
		t.Fatalf("fresh queue depth = %d, want 0", depth)
	}

	job := RetryJob{EventID: "evt_1", Attempt: 2, MaxRetries: 5}
	if err := rq.Enqueue(ctx, job, time.Now().Add(30*time.Second)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	depth, err = rq.Depth(ctx)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 1 {
		t.Errorf("depth = %d, want 1", depth)
	}
}

func TestRetryQueue_JobsDoNotCollapse(t *testing.T) {
	rq, _ := setupTestRQ(t)
	ctx := context.Background()

	// Two retries of the same event at the same attempt must both survive;
	// the generated job id keeps the members distinct.
	job := RetryJob{EventID: "evt_1", Attempt: 2, MaxRetries: 5}
	if err := rq.Enqueue(ctx, job, time.Now()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := rq.Enqueue(ctx, job, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	depth, _ := rq.Depth(ctx)
	if depth != 2 {
		t.Errorf("depth = %d, want 2", depth)
	}
}

func TestRetryQueue_MemberRoundTrips(t *testing.T) {
	rq, client := setupTestRQ(t)
	ctx := context.Background()

	want := RetryJob{EventID: "evt_42", Attempt: 3, MaxRetries: 5}
	due := time.Now().Add(time.Minute)
	if err := rq.Enqueue(ctx, want, due); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	members, err := client.ZRangeWithScores(ctx, RetryQueueKey, 0, -1).Result()
	if err != nil {
		t.Fatalf("reading queue: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("members = %d, want 1", len(members))
	}

	var got RetryJob
	if err := json.Unmarshal([]byte(members[0].Member.(string)), &got); err != nil {
		t.Fatalf("unmarshaling job: %v", err)
	}
	if got.EventID != want.EventID || got.Attempt != want.Attempt || got.MaxRetries != want.MaxRetries {
		t.Errorf("job = %+v, want %+v", got, want)
	}
	if got.JobID == "" {
		t.Error("job id should be generated on enqueue")
	}

	if int64(members[0].Score) != due.UnixMicro() {
		t.Errorf("score = %d, want %d", int64(members[0].Score), due.UnixMicro())
	}
}
