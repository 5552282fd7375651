// Package taskqueue implements the bounded, multi-producer
// single-consumer-group work queue the query executor uses to
// dispatch tile processing to a worker pool (spec §3 "Multi-threaded";
// §4.H). Grounded field-for-field on
// original_source/include/clarisma/thread/TaskQueue.h, a ring buffer
// guarded by one mutex and two condition variables.
package taskqueue

import "sync"

// Queue is a fixed-capacity ring buffer of tasks of type T.
type Queue[T any] struct {
	mu      sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf     []T
	front   int
	rear    int
	count   int
	running bool
}

// New builds a Queue with the given fixed capacity. size must be > 0.
func New[T any](size int) *Queue[T] {
	if size <= 0 {
		panic("taskqueue: size must be positive")
	}
	q := &Queue[T]{
		buf:     make([]T, size),
		running: true,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Submit blocks until there is room, then enqueues task.
func (q *Queue[T]) Submit(task T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == len(q.buf) {
		q.notFull.Wait()
	}
	q.pushLocked(task)
}

// TrySubmit enqueues task without blocking, returning false if the
// queue is full.
func (q *Queue[T]) TrySubmit(task T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		return false
	}
	q.pushLocked(task)
	return true
}

func (q *Queue[T]) pushLocked(task T) {
	q.buf[q.rear] = task
	q.rear = (q.rear + 1) % len(q.buf)
	q.count++
	q.notEmpty.Signal()
}

// Fill repeatedly calls supplier to obtain tasks until the queue is
// full or supplier reports no more work (returns false). It returns
// true if the queue ended up full, meaning the caller likely has more
// tasks to add later.
func (q *Queue[T]) Fill(supplier func() (T, bool)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	added := 0
	for q.count < len(q.buf) {
		task, ok := supplier()
		if !ok {
			break
		}
		q.buf[q.rear] = task
		q.rear = (q.rear + 1) % len(q.buf)
		q.count++
		added++
	}
	if added > 0 {
		q.notEmpty.Broadcast()
	}
	return q.count == len(q.buf)
}

// MinimumRemainingCapacity returns how much room is left in the queue.
// The lock is held for the duration of the call, matching the
// reference implementation's choice to keep the lock even though a
// single-consumer queue's count only ever decreases between polls.
func (q *Queue[T]) MinimumRemainingCapacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) - q.count
}

// Process pops tasks and invokes handle on each until Shutdown has
// been called and the queue is empty: tasks still queued when Shutdown
// is observed are handled before Process returns. Process runs on the
// caller's goroutine; call it once per worker goroutine to fan a queue
// out across a pool.
func (q *Queue[T]) Process(handle func(T)) {
	for {
		task, ok := q.popBlocking()
		if !ok {
			return
		}
		handle(task)
	}
}

func (q *Queue[T]) popBlocking() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 {
		if !q.running {
			var zero T
			return zero, false
		}
		q.notEmpty.Wait()
	}
	task := q.buf[q.front]
	var zero T
	q.buf[q.front] = zero
	q.front = (q.front + 1) % len(q.buf)
	q.count--
	q.notFull.Signal()
	return task, true
}

// AwaitCompletion blocks until the queue is empty.
func (q *Queue[T]) AwaitCompletion() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count != 0 {
		q.notFull.Wait()
	}
}

// Shutdown marks the queue as no longer running and wakes every
// blocked Process call; already-queued tasks are still delivered
// before Process returns.
func (q *Queue[T]) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = false
	q.notEmpty.Broadcast()
}
