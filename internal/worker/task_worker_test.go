package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-processor/internal/core/ports"
	"payment-processor/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type workerFixture struct {
	queue     *mocks.MockTaskQueue
	processor *mocks.MockTransactionProcessor
	refunds   *mocks.MockRefundService
	pool      *TaskWorkerPool
}

func newWorkerFixture(t *testing.T) *workerFixture {
	ctrl := gomock.NewController(t)
	f := &workerFixture{
		queue:     mocks.NewMockTaskQueue(ctrl),
		processor: mocks.NewMockTransactionProcessor(ctrl),
		refunds:   mocks.NewMockRefundService(ctrl),
	}
	f.pool = NewTaskWorkerPool(f.queue, f.processor, f.refunds, 1, time.Hour, zerolog.Nop())
	return f
}

func TestTaskWorkerPool_RoutesTransactionTask(t *testing.T) {
	f := newWorkerFixture(t)
	task := &ports.Task{ID: uuid.New(), Kind: ports.TaskProcessTransaction, EntityID: uuid.New()}

	f.processor.EXPECT().ProcessTransaction(gomock.Any(), task.EntityID).Return(nil)
	f.queue.EXPECT().Ack(gomock.Any(), *task).Return(nil)

	f.pool.handle(context.Background(), zerolog.Nop(), task)
}

func TestTaskWorkerPool_RoutesRefundTask(t *testing.T) {
	f := newWorkerFixture(t)
	task := &ports.Task{ID: uuid.New(), Kind: ports.TaskApplyRefund, EntityID: uuid.New()}

	f.refunds.EXPECT().ApplyRefund(gomock.Any(), task.EntityID).Return(nil)
	f.queue.EXPECT().Ack(gomock.Any(), *task).Return(nil)

	f.pool.handle(context.Background(), zerolog.Nop(), task)
}

func TestTaskWorkerPool_HandlerErrorLeavesTaskLeased(t *testing.T) {
	f := newWorkerFixture(t)
	task := &ports.Task{ID: uuid.New(), Kind: ports.TaskProcessTransaction, EntityID: uuid.New()}

	f.processor.EXPECT().ProcessTransaction(gomock.Any(), task.EntityID).Return(errors.New("db down"))
	// No Ack: the task stays leased and the reaper redelivers it.

	f.pool.handle(context.Background(), zerolog.Nop(), task)
}

func TestTaskWorkerPool_UnknownKindIsDropped(t *testing.T) {
	f := newWorkerFixture(t)
	task := &ports.Task{ID: uuid.New(), Kind: "legacy_kind", EntityID: uuid.New()}

	// Acked without touching any handler so it never redelivers.
	f.queue.EXPECT().Ack(gomock.Any(), *task).Return(nil)

	f.pool.handle(context.Background(), zerolog.Nop(), task)
}

func TestTaskWorkerPool_StartDrainsQueueUntilCancelled(t *testing.T) {
	f := newWorkerFixture(t)
	task := ports.Task{ID: uuid.New(), Kind: ports.TaskProcessTransaction, EntityID: uuid.New()}
	handled := make(chan struct{})

	delivered := false
	f.queue.EXPECT().Dequeue(gomock.Any()).DoAndReturn(
		func(ctx context.Context) (*ports.Task, error) {
			if !delivered {
				delivered = true
				return &task, nil
			}
			<-ctx.Done()
			return nil, ctx.Err()
		}).AnyTimes()
	f.processor.EXPECT().ProcessTransaction(gomock.Any(), task.EntityID).Return(nil)
	f.queue.EXPECT().Ack(gomock.Any(), task).DoAndReturn(
		func(context.Context, ports.Task) error {
			close(handled)
			return nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	f.pool.Start(ctx)

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not handled in time")
	}

	cancel()
	done := make(chan struct{})
	go func() {
		f.pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not stop after cancel")
	}
	require.True(t, delivered)
}
