package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payment-processor/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// TaskQueue implements ports.TaskQueue on Redis lists. Enqueued tasks live
// in a pending list; Dequeue moves a task to the in-flight list and records
// a lease deadline in a sorted set. Ack removes both. RequeueExpired moves
// tasks whose lease passed back to the pending list, which is what makes a
// crashed worker's job eventually redeliverable (at-least-once).
type TaskQueue struct {
	client        *goredis.Client
	pendingKey    string
	inflightKey   string
	leaseKey      string
	blockInterval time.Duration
	visibility    time.Duration
}

// NewTaskQueue creates a Redis-backed task queue.
func NewTaskQueue(client *goredis.Client, blockInterval, visibility time.Duration) *TaskQueue {
	return &TaskQueue{
		client:        client,
		pendingKey:    "tasks:pending",
		inflightKey:   "tasks:inflight",
		leaseKey:      "tasks:leases",
		blockInterval: blockInterval,
		visibility:    visibility,
	}
}

// Enqueue pushes a task onto the pending list.
func (q *TaskQueue) Enqueue(ctx context.Context, task ports.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.pendingKey, payload).Err(); err != nil {
		return fmt.Errorf("redis enqueue: %w", err)
	}
	return nil
}

// Dequeue blocks up to the configured interval for a task, moving it to the
// in-flight list and starting its lease. Returns nil, nil when the queue
// stayed empty.
func (q *TaskQueue) Dequeue(ctx context.Context) (*ports.Task, error) {
	payload, err := q.client.BLMove(ctx, q.pendingKey, q.inflightKey, "RIGHT", "LEFT", q.blockInterval).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis dequeue: %w", err)
	}

	deadline := float64(time.Now().Add(q.visibility).Unix())
	if err := q.client.ZAdd(ctx, q.leaseKey, goredis.Z{Score: deadline, Member: payload}).Err(); err != nil {
		// The task must not sit in-flight without a lease. Push it back to
		// pending; if this process dies before the rollback lands, the
		// reaper's orphan sweep recovers it.
		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, q.inflightKey, 1, payload)
		pipe.LPush(ctx, q.pendingKey, payload)
		pipe.Exec(ctx) //nolint:errcheck
		return nil, fmt.Errorf("redis lease task: %w", err)
	}

	task := &ports.Task{}
	if err := json.Unmarshal([]byte(payload), task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return task, nil
}

// Ack removes a finished task from the in-flight list and clears its lease.
func (q *TaskQueue) Ack(ctx context.Context, task ports.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.inflightKey, 1, payload)
	pipe.ZRem(ctx, q.leaseKey, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis ack: %w", err)
	}
	return nil
}

// RequeueExpired returns tasks whose lease ran out to the pending list, and
// recovers in-flight tasks that never received a lease. Called periodically
// by the worker pool's reaper.
func (q *TaskQueue) RequeueExpired(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	expired, err := q.client.ZRangeByScore(ctx, q.leaseKey, &goredis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list expired leases: %w", err)
	}

	requeued := 0
	for _, payload := range expired {
		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, q.inflightKey, 1, payload)
		pipe.ZRem(ctx, q.leaseKey, payload)
		pipe.LPush(ctx, q.pendingKey, payload)
		if _, err := pipe.Exec(ctx); err != nil {
			return requeued, fmt.Errorf("redis requeue task: %w", err)
		}
		requeued++
	}

	// Orphan sweep: an in-flight entry with no lease means the consumer died
	// between the move and the lease write. Such a task would otherwise never
	// expire, so it goes straight back to pending. A consumer racing this
	// scan can see its task redelivered once, which the workers' claim CAS
	// absorbs.
	inflight, err := q.client.LRange(ctx, q.inflightKey, 0, -1).Result()
	if err != nil {
		return requeued, fmt.Errorf("redis list inflight tasks: %w", err)
	}
	for _, payload := range inflight {
		_, err := q.client.ZScore(ctx, q.leaseKey, payload).Result()
		if err == nil {
			continue // leased, leave it to the expiry pass
		}
		if !errors.Is(err, goredis.Nil) {
			return requeued, fmt.Errorf("redis check lease: %w", err)
		}
		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, q.inflightKey, 1, payload)
		pipe.LPush(ctx, q.pendingKey, payload)
		if _, err := pipe.Exec(ctx); err != nil {
			return requeued, fmt.Errorf("redis requeue orphan task: %w", err)
		}
		requeued++
	}
	return requeued, nil
}
