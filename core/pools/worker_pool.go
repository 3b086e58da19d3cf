package pools

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool closed")

// DefaultWorkers is used when the CPU count is unavailable.
const DefaultWorkers = 4

// Task represents a unit of work
type Task func()

// WorkerPool runs tasks on a fixed set of goroutines pulling from one
// shared FIFO queue. The queue is unbounded: Submit never blocks.
type WorkerPool struct {
	numWorkers int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	head    int
	stopped bool

	wg  sync.WaitGroup
	log zerolog.Logger

	// Statistics
	stats struct {
		tasksSubmitted atomic.Uint64
		tasksStarted   atomic.Uint64
		tasksCompleted atomic.Uint64
		tasksDropped   atomic.Uint64
		tasksPanicked  atomic.Uint64
	}
}

// NewWorkerPool starts numWorkers workers. A non-positive count selects
// runtime.NumCPU(), falling back to DefaultWorkers.
func NewWorkerPool(numWorkers int, logger ...zerolog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}

	pool := &WorkerPool{
		numWorkers: numWorkers,
		log:        log.Logger,
	}
	if len(logger) > 0 {
		pool.log = logger[0]
	}
	pool.cond = sync.NewCond(&pool.mu)

	pool.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go pool.worker(i)
	}

	return pool
}

// Submit enqueues task. It fails with ErrPoolClosed once Shutdown has
// started.
func (p *WorkerPool) Submit(task Task) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()

	p.stats.tasksSubmitted.Add(1)
	p.cond.Signal()
	return nil
}

// next blocks until a task is available or the pool is stopped.
func (p *WorkerPool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for !p.stopped && p.head == len(p.queue) {
		p.cond.Wait()
	}
	if p.stopped {
		return nil, false
	}

	task := p.queue[p.head]
	p.queue[p.head] = nil
	p.head++

	// Compact once the consumed prefix dominates
	if p.head == len(p.queue) {
		p.queue = p.queue[:0]
		p.head = 0
	} else if p.head > 1024 && p.head*2 > len(p.queue) {
		n := copy(p.queue, p.queue[p.head:])
		clear(p.queue[n:])
		p.queue = p.queue[:n]
		p.head = 0
	}

	return task, true
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		task, ok := p.next()
		if !ok {
			return
		}
		p.stats.tasksStarted.Add(1)
		p.run(id, task)
		p.stats.tasksCompleted.Add(1)
	}
}

// run executes task, containing any panic to the task itself.
func (p *WorkerPool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.stats.tasksPanicked.Add(1)
			p.log.Error().
				Int("worker", id).
				Interface("panic", r).
				Msg("Task panicked")
		}
	}()
	task()
}

// Shutdown stops the pool and waits for every worker to exit. Tasks that
// are running finish normally; tasks still queued are discarded without
// being started. Calling Shutdown more than once is safe.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.stopped = true
	dropped := len(p.queue) - p.head
	p.queue = nil
	p.head = 0
	p.mu.Unlock()

	p.stats.tasksDropped.Add(uint64(dropped))
	p.cond.Broadcast()
	p.wg.Wait()

	if dropped > 0 {
		p.log.Warn().Int("dropped", dropped).Msg("Worker pool stopped with queued tasks")
	}
}

// Workers returns the number of workers.
func (p *WorkerPool) Workers() int {
	return p.numWorkers
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	p.mu.Lock()
	queued := len(p.queue) - p.head
	p.mu.Unlock()

	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: p.stats.tasksSubmitted.Load(),
		TasksStarted:   p.stats.tasksStarted.Load(),
		TasksCompleted: p.stats.tasksCompleted.Load(),
		TasksDropped:   p.stats.tasksDropped.Load(),
		TasksPanicked:  p.stats.tasksPanicked.Load(),
		TasksQueued:    uint64(queued),
	}
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers     int    `json:"workers"`
	TasksSubmitted uint64 `json:"submitted"`
	TasksStarted   uint64 `json:"started"`
	TasksCompleted uint64 `json:"completed"`
	TasksDropped   uint64 `json:"dropped"`
	TasksPanicked  uint64 `json:"panicked"`
	TasksQueued    uint64 `json:"queued"`
}
