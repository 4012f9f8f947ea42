package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"texturelab/internal/domain"
)

// Task is the envelope carried on the work queue. It holds only the
// minimal data needed to re-derive the job — identifiers, prompt and
// locators, never image bytes.
type Task struct {
	Kind            domain.JobKind `json:"kind"`
	JobID           string         `json:"jobId"`
	UserID          string         `json:"userId"`
	Prompt          string         `json:"prompt,omitempty"`
	Size            string         `json:"size,omitempty"`
	ImageURL        string         `json:"imageUrl,omitempty"`
	ReferenceImages []string       `json:"referenceImages,omitempty"`
	OriginalJobID   string         `json:"originalJobId,omitempty"`
}

// Enqueuer is the producer side of the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task Task) error
}

// Consumer is the worker side of the work queue. Dequeue blocks until a
// task is available or the context ends; every dequeued task must be
// passed back to Ack once handling finished (successfully or not), so
// unacked tasks survive a worker crash and are redelivered.
type Consumer interface {
	Dequeue(ctx context.Context) (Task, error)
	Ack(ctx context.Context, task Task) error
}

// ErrClosed is returned by Dequeue when the context ends while waiting.
var ErrClosed = errors.New("queue: closed")

const dequeueBlock = 5 * time.Second

// RedisQueue is a durable multi-producer/multi-worker queue on a Redis
// list. Producers LPUSH onto the ready list; workers BLMOVE entries
// into a processing list and LREM them after handling. Entries left in
// the processing list by a crashed worker are pushed back onto the
// ready list by Recover, giving at-least-once delivery.
type RedisQueue struct {
	client *redis.Client
	name   string
}

// NewRedisQueue creates a queue over the named Redis list.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{client: client, name: name}
}

func (q *RedisQueue) processingList() string {
	return q.name + ":processing"
}

// Enqueue appends a task envelope to the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// Dequeue blocks until a task is available, atomically moving it into
// the processing list so it is redelivered if this worker dies before
// acking.
func (q *RedisQueue) Dequeue(ctx context.Context) (Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, ErrClosed
		}
		payload, err := q.client.BLMove(ctx, q.name, q.processingList(), "RIGHT", "LEFT", dequeueBlock).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Task{}, ErrClosed
			}
			return Task{}, fmt.Errorf("queue: dequeue: %w", err)
		}
		var task Task
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			// Malformed envelopes are dropped rather than looped forever.
			_ = q.client.LRem(ctx, q.processingList(), 1, payload).Err()
			return Task{}, fmt.Errorf("queue: decode task: %w", err)
		}
		return task, nil
	}
}

// Ack removes a handled task from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: marshal task: %w", err)
	}
	if err := q.client.LRem(ctx, q.processingList(), 1, payload).Err(); err != nil {
		return fmt.Errorf("queue: ack: %w", err)
	}
	return nil
}

// Recover moves any leftover processing entries back onto the ready
// list. Called once at worker boot, before consumers start, so tasks
// orphaned by a crash are redelivered.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processingList(), q.name, "RIGHT", "LEFT").Err()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return moved, nil
			}
			return moved, fmt.Errorf("queue: recover: %w", err)
		}
		moved++
	}
}
