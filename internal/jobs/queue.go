package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jo-hoe/mbtisong/internal/common"
)

var (
	ErrQueueFull       = errors.New("queue is full")
	ErrQueueNotStarted = errors.New("queue not started")
	ErrQueueStopped    = errors.New("queue stopped")
)

// WorkItem is a snapshot of the job handed to a worker.
type WorkItem struct {
	Job Job
}

// Processor runs one job to completion.
type Processor interface {
	Process(ctx context.Context, item WorkItem) error
}

// Queue is an in-memory bounded queue drained by a fixed worker pool. Each
// worker runs one job at a time.
type Queue struct {
	log     *slog.Logger
	ch      chan WorkItem
	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
	stopped bool
	onDrop  func(WorkItem)
}

func NewQueue(logger *slog.Logger, capacity int, workers int) *Queue {
	if capacity <= 0 {
		capacity = common.DefaultQueueCapacity
	}
	if workers <= 0 {
		workers = common.DefaultWorkerCount
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		log:     logger,
		ch:      make(chan WorkItem, capacity),
		workers: workers,
	}
}

// OnDrop registers fn for items that were accepted but never processed
// because the queue shut down first. Call it before Start.
func (q *Queue) OnDrop(fn func(WorkItem)) { q.onDrop = fn }

func (q *Queue) drop(item WorkItem) {
	q.log.Warn("song job dropped on shutdown", "job_id", item.Job.ID)
	if q.onDrop != nil {
		q.onDrop(item)
	}
}

// Start launches the workers. Cancelling ctx aborts in-flight jobs.
func (q *Queue) Start(ctx context.Context, p Processor) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return errors.New("queue already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, p, i)
	}
	q.started = true
	return nil
}

func (q *Queue) worker(ctx context.Context, p Processor, idx int) {
	defer q.wg.Done()
	log := q.log.With("worker", idx)
	for {
		select {
		case <-ctx.Done():
			log.Debug("worker stopping due to context cancellation")
			return
		case item, ok := <-q.ch:
			if !ok {
				log.Debug("queue closed, worker exiting")
				return
			}
			if ctx.Err() != nil {
				q.drop(item)
				continue
			}
			jobLog := log.With("job_id", item.Job.ID)
			jobLog.Info("processing song job", "mbti", item.Job.Input.Category)
			start := time.Now()
			if err := p.Process(ctx, item); err != nil {
				jobLog.Error("song job failed", "err", err, "duration", time.Since(start))
			} else {
				jobLog.Info("song job done", "duration", time.Since(start))
			}
		}
	}
}

// Enqueue never blocks; a full queue is reported as ErrQueueFull.
func (q *Queue) Enqueue(item WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return ErrQueueNotStarted
	}
	if q.stopped {
		return ErrQueueStopped
	}
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len is the number of items waiting for a worker.
func (q *Queue) Len() int { return len(q.ch) }

// Shutdown stops accepting work, cancels running jobs and waits for workers
// up to deadline (zero waits indefinitely). Items still waiting are passed
// to the OnDrop handler.
func (q *Queue) Shutdown(deadline time.Duration) {
	q.mu.Lock()
	if q.stopped || !q.started {
		q.stopped = true
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.cancel()
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.wg.Wait()
	}()
	if deadline <= 0 {
		<-done
	} else {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			q.log.Warn("queue shutdown deadline reached; workers may still be running")
		}
	}
	// the channel is closed, so this ends once the buffer is empty
	for item := range q.ch {
		q.drop(item)
	}
}
