package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hermosa/pos-api/internal/queue"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestEnqueueDequeue(t *testing.T) {
	client := newRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "test"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queued, err := enq.Enqueue(ctx, queue.Task{
		Kind:           "receipt-email",
		Payload:        []byte(`{"to":"ada@example.com"}`),
		IdempotencyKey: "sale-1",
	})
	require.NoError(t, err)
	require.True(t, queued)

	processed := make(chan []byte, 1)
	worker := queue.Worker{
		R:                 client,
		Prefix:            "test",
		Kind:              "receipt-email",
		VisibilityTimeout: time.Second,
		RetryBase:         10 * time.Millisecond,
		Logger:            zerolog.Nop(),
		Handler: func(ctx context.Context, task queue.Task) error {
			processed <- task.Payload
			cancel()
			return nil
		},
	}
	go func() { _ = worker.Run(ctx) }()

	select {
	case payload := <-processed:
		require.JSONEq(t, `{"to":"ada@example.com"}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for payload")
	}
}

func TestEnqueueDeduplicates(t *testing.T) {
	client := newRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "test"}
	ctx := context.Background()

	task := queue.Task{Kind: "receipt-email", Payload: []byte(`{}`), IdempotencyKey: "sale-9"}
	queued, err := enq.Enqueue(ctx, task)
	require.NoError(t, err)
	require.True(t, queued)
	queued, err = enq.Enqueue(ctx, task)
	require.NoError(t, err)
	require.False(t, queued)

	n, err := client.ZCard(ctx, "test:queue:receipt-email").Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func enqueue(t *testing.T, enq queue.Enqueuer, task queue.Task) {
	t.Helper()
	queued, err := enq.Enqueue(context.Background(), task)
	require.NoError(t, err)
	require.True(t, queued)
}

func TestWorkerRetriesFailedTask(t *testing.T) {
	client := newRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "retry"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enqueue(t, enq, queue.Task{
		Kind:        "receipt-email",
		Payload:     []byte(`{}`),
		MaxAttempts: 3,
	})

	var attempts atomic.Int32
	worker := queue.Worker{
		R:                 client,
		Prefix:            "retry",
		Kind:              "receipt-email",
		VisibilityTimeout: time.Second,
		RetryBase:         5 * time.Millisecond,
		Logger:            zerolog.Nop(),
		Handler: func(ctx context.Context, task queue.Task) error {
			if attempts.Add(1) == 1 {
				return errors.New("smtp glitch")
			}
			cancel()
			return nil
		},
	}
	go func() { _ = worker.Run(ctx) }()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not retry in time")
	}
	require.GreaterOrEqual(t, attempts.Load(), int32(2))
}

func TestExhaustedTaskLandsInDeadLetter(t *testing.T) {
	client := newRedis(t)
	enq := queue.Enqueuer{R: client, Prefix: "dlq"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enqueue(t, enq, queue.Task{
		Kind:        "receipt-email",
		Payload:     []byte(`{}`),
		MaxAttempts: 1,
	})

	failed := make(chan struct{}, 1)
	worker := queue.Worker{
		R:                 client,
		Prefix:            "dlq",
		Kind:              "receipt-email",
		VisibilityTimeout: time.Second,
		RetryBase:         5 * time.Millisecond,
		Logger:            zerolog.Nop(),
		Handler: func(ctx context.Context, task queue.Task) error {
			select {
			case failed <- struct{}{}:
			default:
			}
			return errors.New("permanent failure")
		},
	}
	go func() { _ = worker.Run(ctx) }()

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}

	require.Eventually(t, func() bool {
		n, err := client.LLen(context.Background(), "dlq:queue:receipt-email:dead").Result()
		return err == nil && n == 1
	}, 2*time.Second, 20*time.Millisecond)
	cancel()
}

func TestInvalidKindRejected(t *testing.T) {
	client := newRedis(t)
	enq := queue.Enqueuer{R: client}
	_, err := enq.Enqueue(context.Background(), queue.Task{Kind: "Not Valid!"})
	require.Error(t, err)
}
