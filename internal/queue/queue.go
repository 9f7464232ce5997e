package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hermosa/pos-api/internal/resilience"
)

// Task is a unit of asynchronous work, delivered at-least-once.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	MaxAttempts    int
	Delay          time.Duration
}

type envelope struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
	AvailableAt int64  `json:"availableAt"`
}

// keys derives the Redis key layout for one task kind. Pending and
// in-flight tasks live in sorted sets scored by availability and visibility
// deadline respectively; exhausted tasks land in a dead-letter list.
type keys struct {
	prefix string
	kind   string
}

func (k keys) pending() string    { return k.prefix + ":queue:" + k.kind }
func (k keys) processing() string { return k.prefix + ":queue:" + k.kind + ":processing" }
func (k keys) dead() string       { return k.prefix + ":queue:" + k.kind + ":dead" }
func (k keys) dedup(id string) string {
	return k.prefix + ":queue:" + k.kind + ":dedup:" + id
}

func validKind(kind string) bool {
	if kind == "" {
		return false
	}
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// Enqueuer publishes tasks to Redis-backed queues.
type Enqueuer struct {
	R        *redis.Client
	Prefix   string
	DedupTTL time.Duration
}

// Enqueue inserts the task into its kind's queue. A task with an idempotency
// key is enqueued at most once within the deduplication window; the returned
// bool reports whether this call actually queued it.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) (bool, error) {
	if e.R == nil {
		return false, errors.New("queue: redis client not configured")
	}
	if !validKind(t.Kind) {
		return false, fmt.Errorf("queue: invalid task kind %q", t.Kind)
	}
	k := keys{prefix: e.prefix(), kind: t.Kind}
	if t.IdempotencyKey != "" {
		ttl := e.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := e.R.SetNX(ctx, k.dedup(t.IdempotencyKey), "1", ttl).Result()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	env := envelope{
		Kind:        t.Kind,
		Key:         t.IdempotencyKey,
		Payload:     t.Payload,
		MaxAttempts: t.MaxAttempts,
		AvailableAt: time.Now().Add(t.Delay).UnixNano(),
	}
	if env.MaxAttempts <= 0 {
		env.MaxAttempts = 10
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return false, err
	}
	if err := e.R.ZAdd(ctx, k.pending(), redis.Z{Score: float64(env.AvailableAt), Member: raw}).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (e Enqueuer) prefix() string {
	if e.Prefix == "" {
		return "pos"
	}
	return e.Prefix
}

// Worker consumes tasks of a single kind.
type Worker struct {
	R                 *redis.Client
	Prefix            string
	Kind              string
	Concurrency       int
	VisibilityTimeout time.Duration
	RetryBase         time.Duration
	RetryJitter       float64
	Handler           func(context.Context, Task) error
	Logger            zerolog.Logger
}

// Run processes tasks until the context is cancelled. Claimed tasks are
// parked in a processing set and redelivered when their visibility deadline
// expires, so a crashed worker never loses work.
func (w Worker) Run(ctx context.Context) error {
	if w.R == nil {
		return errors.New("queue: worker redis client not configured")
	}
	if w.Handler == nil {
		return errors.New("queue: worker handler not configured")
	}
	if !validKind(w.Kind) {
		return fmt.Errorf("queue: invalid worker kind %q", w.Kind)
	}
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	visibility := w.VisibilityTimeout
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	retryBase := w.RetryBase
	if retryBase <= 0 {
		retryBase = 200 * time.Millisecond
	}
	k := keys{prefix: w.prefix(), kind: w.Kind}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	redeliver := time.NewTicker(time.Second)
	defer redeliver.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-redeliver.C:
			if err := w.redeliverExpired(ctx, k); err != nil {
				return err
			}
		default:
		}

		raw, ok, err := w.claim(ctx, k, visibility)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				wg.Wait()
				return nil
			}
			return err
		}
		if !ok {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		env, err := decode(raw)
		if err != nil {
			w.Logger.Error().Err(err).Str("kind", w.Kind).Msg("drop undecodable task")
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(claimed string, env envelope) {
			defer func() { <-sem }()
			defer wg.Done()
			err := w.Handler(ctx, Task{Kind: env.Kind, Payload: env.Payload, IdempotencyKey: env.Key})
			if err != nil {
				w.fail(ctx, k, claimed, env, retryBase)
				return
			}
			w.ack(ctx, k, claimed, env)
		}(raw, env)
	}
}

// claim moves one due task from pending to processing and returns its
// attempt-bumped encoding.
func (w Worker) claim(ctx context.Context, k keys, visibility time.Duration) (string, bool, error) {
	now := time.Now().UnixNano()
	due, err := w.R.ZRangeByScore(ctx, k.pending(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: 1,
	}).Result()
	if err != nil && err != redis.Nil {
		return "", false, err
	}
	if len(due) == 0 {
		return "", false, nil
	}
	removed, err := w.R.ZRem(ctx, k.pending(), due[0]).Result()
	if err != nil {
		return "", false, err
	}
	if removed == 0 {
		// another worker claimed it first
		return "", false, nil
	}
	env, err := decode(due[0])
	if err != nil {
		return "", false, nil
	}
	env.Attempt++
	raw, err := json.Marshal(env)
	if err != nil {
		return "", false, nil
	}
	deadline := time.Now().Add(visibility).UnixNano()
	if err := w.R.ZAdd(ctx, k.processing(), redis.Z{Score: float64(deadline), Member: raw}).Err(); err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

func (w Worker) fail(ctx context.Context, k keys, claimed string, env envelope, base time.Duration) {
	_ = w.R.ZRem(ctx, k.processing(), claimed).Err()
	if env.MaxAttempts > 0 && env.Attempt >= env.MaxAttempts {
		raw, err := json.Marshal(env)
		if err != nil {
			return
		}
		_ = w.R.LPush(ctx, k.dead(), raw).Err()
		if env.Key != "" {
			_ = w.R.Del(ctx, k.dedup(env.Key)).Err()
		}
		w.Logger.Error().Str("kind", env.Kind).Int("attempts", env.Attempt).Msg("task moved to dead letter queue")
		return
	}
	env.AvailableAt = time.Now().Add(resilience.Backoff(base, env.Attempt, w.RetryJitter)).UnixNano()
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = w.R.ZAdd(ctx, k.pending(), redis.Z{Score: float64(env.AvailableAt), Member: raw}).Err()
}

func (w Worker) ack(ctx context.Context, k keys, claimed string, env envelope) {
	_ = w.R.ZRem(ctx, k.processing(), claimed).Err()
	if env.Key != "" {
		_ = w.R.Del(ctx, k.dedup(env.Key)).Err()
	}
}

func (w Worker) redeliverExpired(ctx context.Context, k keys) error {
	now := strconv.FormatInt(time.Now().UnixNano(), 10)
	expired, err := w.R.ZRangeByScore(ctx, k.processing(), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	for _, raw := range expired {
		env, err := decode(raw)
		if err != nil {
			_ = w.R.ZRem(ctx, k.processing(), raw).Err()
			continue
		}
		_ = w.R.ZRem(ctx, k.processing(), raw).Err()
		env.AvailableAt = time.Now().UnixNano()
		encoded, err := json.Marshal(env)
		if err != nil {
			continue
		}
		_ = w.R.ZAdd(ctx, k.pending(), redis.Z{Score: float64(env.AvailableAt), Member: encoded}).Err()
	}
	return nil
}

func (w Worker) prefix() string {
	if w.Prefix == "" {
		return "pos"
	}
	return w.Prefix
}

func decode(raw string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}
