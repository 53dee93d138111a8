// Package timerservice implements the monotonic timer service of
// spec.md §4.8 and §9: a single min-heap keyed by next-fire time
// (rather than one OS timer per subscription/reply/entry), supporting
// one-shot and recurring callbacks identified by cancellable handles.
//
// Timers fire on a dedicated goroutine; callbacks are expected to do
// little work themselves and hand any real work off to a worker pool
// (spec.md §5), so the dispatch loop never blocks on a callback for
// long.
package timerservice

import (
	"container/heap"
	"sync"
	"time"

	"github.com/joynr-go/joynr/pkg/joynrlog"
)

var logger = joynrlog.For("timerservice")

// Handle identifies a scheduled timer for cancellation. Cancelling a
// handle is idempotent; a fired one-shot timer is removed
// automatically and a later Cancel of the same handle is a no-op.
type Handle uint64

type entry struct {
	handle   Handle
	fireAt   time.Time
	period   time.Duration // zero for one-shot
	callback func()
	index    int // heap index, maintained by container/heap
	canceled bool
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].fireAt.Before(h[j].fireAt) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Service is a monotonic timer service backed by a single priority
// queue. The zero value is not usable; construct with New.
type Service struct {
	mu        sync.Mutex
	heap      entryHeap
	byHandle  map[Handle]*entry
	nextID    Handle
	wake      chan struct{}
	stop      chan struct{}
	stopped   bool
	now       func() time.Time
	wg        sync.WaitGroup
}

// New starts the timer service's dispatch goroutine and returns a
// Service ready to schedule timers.
func New() *Service {
	s := &Service{
		byHandle: make(map[Handle]*entry),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// AfterFunc schedules a one-shot callback to run after d elapses.
func (s *Service) AfterFunc(d time.Duration, callback func()) Handle {
	return s.schedule(d, 0, callback)
}

// Every schedules a recurring callback, first firing after d and then
// every d thereafter until canceled.
func (s *Service) Every(d time.Duration, callback func()) Handle {
	return s.schedule(d, d, callback)
}

// At schedules a one-shot callback to run at the given absolute time.
// If t is already in the past, the callback fires on the next tick of
// the dispatch loop.
func (s *Service) At(t time.Time, callback func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(t, 0, callback)
}

func (s *Service) schedule(d time.Duration, period time.Duration, callback func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(s.now().Add(d), period, callback)
}

func (s *Service) insertLocked(fireAt time.Time, period time.Duration, callback func()) Handle {
	if s.stopped {
		logger.Warn("schedule after shutdown, ignoring")
		return 0
	}
	s.nextID++
	e := &entry{handle: s.nextID, fireAt: fireAt, period: period, callback: callback}
	heap.Push(&s.heap, e)
	s.byHandle[e.handle] = e
	s.signalLocked()
	return e.handle
}

// Cancel removes a scheduled timer. Idempotent: canceling an unknown
// or already-fired handle is a no-op.
func (s *Service) Cancel(h Handle) {
	if h == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byHandle[h]
	if !ok || e.canceled {
		return
	}
	e.canceled = true
	delete(s.byHandle, h)
	if e.index >= 0 {
		heap.Remove(&s.heap, e.index)
	}
}

// Reschedule changes the fire time of an existing recurring or
// one-shot timer, extending or shortening its next fire. Used by
// spec.md §4.4's racing-update rule: a shortened expiry loses to the
// existing (later) schedule, so callers should compare before calling
// Reschedule with a smaller time; Reschedule itself always takes the
// new time verbatim and lets the caller decide which is later.
func (s *Service) Reschedule(h Handle, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byHandle[h]
	if !ok || e.canceled {
		return
	}
	e.fireAt = fireAt
	heap.Fix(&s.heap, e.index)
	s.signalLocked()
}

// NextFireTime reports the fire time of handle h, for callers that
// need to compare against a candidate new expiry before deciding
// whether to extend or leave a schedule alone (spec.md §4.4).
func (s *Service) NextFireTime(h Handle) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byHandle[h]
	if !ok || e.canceled {
		return time.Time{}, false
	}
	return e.fireAt, true
}

func (s *Service) signalLocked() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) run() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		var waitCh <-chan time.Time
		var next *entry
		if len(s.heap) > 0 {
			next = s.heap[0]
			d := next.fireAt.Sub(s.now())
			if d < 0 {
				d = 0
			}
			waitCh = time.After(d)
		}
		s.mu.Unlock()

		select {
		case <-s.stop:
			return
		case <-s.wake:
			continue
		case <-waitCh:
			s.fireDue()
		}
	}
}

func (s *Service) fireDue() {
	now := s.now()
	var due []*entry

	s.mu.Lock()
	for len(s.heap) > 0 && !s.heap[0].fireAt.After(now) {
		e := heap.Pop(&s.heap).(*entry)
		if e.canceled {
			continue
		}
		due = append(due, e)
		if e.period > 0 {
			e.fireAt = now.Add(e.period)
			e.index = -1
			heap.Push(&s.heap, e)
		} else {
			delete(s.byHandle, e.handle)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		e.callback()
	}
}

// Shutdown cancels all timers and stops the dispatch goroutine.
// Safe to call once; an aborted timer on shutdown is not a failure
// (spec.md §4.7.6).
func (s *Service) Shutdown() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.heap = nil
	s.byHandle = make(map[Handle]*entry)
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
}
