package callcache

import "sync"

// Scheduler runs deferred notification work. Entries schedule at most one
// flush at a time, so mutations made in quick succession coalesce into one
// round of listener calls.
type Scheduler interface {
	Schedule(task func())
}

// InlineScheduler runs tasks immediately on the calling goroutine. Useful for
// tests and for hosts that already batch updates on their own loop.
type InlineScheduler struct{}

func (InlineScheduler) Schedule(task func()) { task() }

// queueScheduler is the default: an unbounded FIFO drained by one goroutine,
// started on the first Schedule. Unlike hooks/async it never drops work, since
// a lost flush would leave a subscriber waiting forever.
type queueScheduler struct {
	mu      sync.Mutex
	tasks   []func()
	started bool
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
	log  Logger
}

func newQueueScheduler(log Logger) *queueScheduler {
	q := &queueScheduler{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
		log:  log,
	}
	return q
}

func (q *queueScheduler) Schedule(task func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, task)
	if !q.started {
		q.started = true
		go q.loop()
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default: // already signalled
	}
}

func (q *queueScheduler) loop() {
	defer close(q.done)
	for {
		select {
		case <-q.wake:
			q.drain()
		case <-q.stop:
			q.drain()
			return
		}
	}
}

func (q *queueScheduler) drain() {
	for {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		q.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, task := range batch {
			q.run(task)
		}
	}
}

func (q *queueScheduler) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("notification task panicked", Fields{"panic": r})
		}
	}()
	task()
}

// Close runs what is already queued and stops the worker. Later Schedule
// calls are ignored.
func (q *queueScheduler) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		started := q.started
		q.mu.Unlock()
		close(q.stop)
		if started {
			<-q.done
		}
	})
}
