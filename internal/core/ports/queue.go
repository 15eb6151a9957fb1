package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskKind identifies the operation a queued task asks a worker to perform.
type TaskKind string

const (
	TaskProcessTransaction TaskKind = "process_transaction"
	TaskApplyRefund        TaskKind = "apply_refund"
)

// Task is the unit of asynchronous work. Payload is just the entity id plus
// the operation; workers re-derive everything else from the ledger store on
// claim.
type Task struct {
	ID         uuid.UUID `json:"id"`
	Kind       TaskKind  `json:"kind"`
	EntityID   uuid.UUID `json:"entity_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// TaskQueue is the at-least-once job queue collaborator. A dequeued task
// stays leased until acked; RequeueExpired returns tasks whose lease ran out
// (crashed worker) to the queue for redelivery.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue blocks up to the implementation's poll interval and returns
	// nil, nil when no task arrived.
	Dequeue(ctx context.Context) (*Task, error)
	Ack(ctx context.Context, task Task) error
	RequeueExpired(ctx context.Context) (int, error)
}
