package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("dispatch queue closed")

// Job is one unit of work.
type Job func()

// Queue runs jobs in per-key lanes. Jobs with the same key run one after
// another in enqueue order; jobs with different keys run side by side, at
// most workers at a time. Enqueue never waits for a job to run.
type Queue struct {
	workers *semaphore.Weighted
	backlog int

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	wg     sync.WaitGroup
}

type lane struct {
	pending []Job
}

// NewQueue creates a queue running at most workers jobs at once. A lane
// holding more than backlog waiting jobs logs a warning.
func NewQueue(workers, backlog int) (*Queue, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be positive")
	}
	if backlog < 0 {
		backlog = 0
	}
	return &Queue{
		workers: semaphore.NewWeighted(int64(workers)),
		backlog: backlog,
		lanes:   make(map[string]*lane),
	}, nil
}

// Enqueue appends job to key's lane. It fails only when ctx is already done
// or the queue is closed.
func (q *Queue) Enqueue(ctx context.Context, key string, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	l, ok := q.lanes[key]
	if !ok {
		l = &lane{}
		q.lanes[key] = l
		q.wg.Add(1)
		go q.drain(key, l)
	}
	l.pending = append(l.pending, job)
	if q.backlog > 0 && len(l.pending) == q.backlog+1 {
		log.Warn().Str("key", key).Int("pending", len(l.pending)).Msg("dispatch backlog growing")
	}
	return nil
}

// Pending returns the number of jobs waiting across all lanes.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, l := range q.lanes {
		n += len(l.pending)
	}
	return n
}

// Close stops accepting jobs, lets queued jobs finish and waits for them.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}

// drain runs key's jobs in order and retires the lane once it is empty.
func (q *Queue) drain(key string, l *lane) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(l.pending) == 0 {
			delete(q.lanes, key)
			q.mu.Unlock()
			return
		}
		job := l.pending[0]
		l.pending[0] = nil
		l.pending = l.pending[1:]
		q.mu.Unlock()

		// Background never fails to acquire.
		_ = q.workers.Acquire(context.Background(), 1)
		q.run(job)
		q.workers.Release(1)
	}
}

func (q *Queue) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("dispatch job panic: %v", r)
		}
	}()
	job()
}
