package worker

import (
	"context"
	"sync"
	"time"

	"payment-processor/internal/core/ports"

	"github.com/rs/zerolog"
)

// TaskWorkerPool consumes the task queue and routes each task to the
// transaction processor or the refund engine. A task is acked after its
// handler returns; a worker that dies mid-task simply lets the lease expire
// and the reaper puts the task back (at-least-once, handlers are idempotent).
type TaskWorkerPool struct {
	queue        ports.TaskQueue
	processor    ports.TransactionProcessor
	refunds      ports.RefundService
	concurrency  int
	reapInterval time.Duration
	log          zerolog.Logger

	wg sync.WaitGroup
}

// NewTaskWorkerPool creates a worker pool over the task queue.
func NewTaskWorkerPool(
	queue ports.TaskQueue,
	processor ports.TransactionProcessor,
	refunds ports.RefundService,
	concurrency int,
	reapInterval time.Duration,
	log zerolog.Logger,
) *TaskWorkerPool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &TaskWorkerPool{
		queue:        queue,
		processor:    processor,
		refunds:      refunds,
		concurrency:  concurrency,
		reapInterval: reapInterval,
		log:          log,
	}
}

// Start launches the workers and the lease reaper. They run until ctx is
// cancelled; Wait blocks until all of them drain.
func (p *TaskWorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runReaper(ctx)
	}()

	p.log.Info().Int("concurrency", p.concurrency).Msg("task worker pool started")
}

// Wait blocks until all workers have stopped.
func (p *TaskWorkerPool) Wait() {
	p.wg.Wait()
}

func (p *TaskWorkerPool) runWorker(ctx context.Context, id int) {
	log := p.log.With().Int("worker", id).Logger()
	for {
		if ctx.Err() != nil {
			return
		}

		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		p.handle(ctx, log, task)
	}
}

func (p *TaskWorkerPool) handle(ctx context.Context, log zerolog.Logger, task *ports.Task) {
	var err error
	switch task.Kind {
	case ports.TaskProcessTransaction:
		err = p.processor.ProcessTransaction(ctx, task.EntityID)
	case ports.TaskApplyRefund:
		err = p.refunds.ApplyRefund(ctx, task.EntityID)
	default:
		log.Error().Str("kind", string(task.Kind)).Msg("unknown task kind, dropping")
	}

	if err != nil {
		// Leave the task leased; the reaper redelivers it after the
		// visibility timeout. Handlers are idempotent so a retry is safe.
		log.Error().Err(err).
			Str("task_id", task.ID.String()).
			Str("kind", string(task.Kind)).
			Str("entity_id", task.EntityID.String()).
			Msg("task handler failed, leaving for redelivery")
		return
	}

	if err := p.queue.Ack(ctx, *task); err != nil {
		log.Warn().Err(err).Str("task_id", task.ID.String()).Msg("ack failed, task will be redelivered")
	}
}

func (p *TaskWorkerPool) runReaper(ctx context.Context) {
	ticker := time.NewTicker(p.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.queue.RequeueExpired(ctx)
			if err != nil {
				p.log.Error().Err(err).Msg("lease reaper failed")
				continue
			}
			if n > 0 {
				p.log.Warn().Int("requeued", n).Msg("requeued tasks with expired leases")
			}
		}
	}
}
