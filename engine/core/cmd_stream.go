package core

import (
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/anima-gfx/engine/containers"
)

// CmdStream is a multiple-producer, single-consumer queue of deferred calls.
// Entries run strictly in push order on whichever goroutine calls Consume.
type CmdStream struct {
	mutex    sync.Mutex
	notEmpty *sync.Cond
	drained  *sync.Cond
	queue    *containers.RingQueue[func()]
	closed   bool
}

func NewCmdStream(capacity int) *CmdStream {
	s := &CmdStream{
		queue: containers.NewRingQueue[func()](capacity),
	}
	s.notEmpty = sync.NewCond(&s.mutex)
	s.drained = sync.NewCond(&s.mutex)
	return s
}

// Push enqueues fn and returns immediately.
func (s *CmdStream) Push(fn func()) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrStreamClosed
	}
	s.queue.Enqueue(fn)
	s.mutex.Unlock()

	s.notEmpty.Signal()
	return nil
}

// PushAndWait enqueues fn and blocks until it and everything pushed before
// it has been consumed. Returns ErrStreamClosed when the stream was closed
// before fn completed; fn may or may not have run in that case.
func (s *CmdStream) PushAndWait(fn func()) error {
	return s.pushAndWait(fn)
}

// Wait blocks until every entry queued at the time of the call has run.
func (s *CmdStream) Wait() {
	_ = s.pushAndWait(nil)
}

func (s *CmdStream) pushAndWait(fn func()) error {
	var done atomic.Bool
	sentinel := func() {
		done.Store(true)
		s.mutex.Lock()
		s.drained.Broadcast()
		s.mutex.Unlock()
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrStreamClosed
	}
	if fn != nil {
		s.queue.Enqueue(fn)
	}
	s.queue.Enqueue(sentinel)
	s.notEmpty.Signal()

	for !done.Load() && !s.closed {
		s.drained.Wait()
	}
	s.mutex.Unlock()

	if !done.Load() {
		return ErrStreamClosed
	}
	return nil
}

// Consume runs exactly one entry, blocking while the stream is empty. It
// returns false once the stream is closed and fully drained. Only the
// consumer goroutine may call it.
func (s *CmdStream) Consume() bool {
	s.mutex.Lock()
	for s.queue.IsEmpty() && !s.closed {
		s.notEmpty.Wait()
	}
	fn, err := s.queue.Dequeue()
	s.mutex.Unlock()

	if err != nil {
		return false
	}
	fn()
	return true
}

// PushClose marks the stream closed and releases every blocked caller.
// Calling it more than once is a no-op.
func (s *CmdStream) PushClose() {
	s.mutex.Lock()
	s.closed = true
	s.mutex.Unlock()

	s.notEmpty.Broadcast()
	s.drained.Broadcast()
}

func (s *CmdStream) IsClosed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closed
}

// Len returns the number of pending entries.
func (s *CmdStream) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.queue.Len()
}
