package refetch

import "sync"

// Status is the lifecycle phase of a request as seen by consumers.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// RequestState is the consumer-visible snapshot of one call site.
// Data holds the zero value of V until the first success (or Mutate).
type RequestState[V any] struct {
	Status Status
	Data   V
	Err    error
}

// Loading reports whether an attempt is currently in flight.
func (s RequestState[V]) Loading() bool { return s.Status == StatusLoading }

// subscribers is an explicit observer registry: listeners are invoked with a
// state snapshot after every committed transition. Listeners run outside the
// registry lock, on the goroutine that committed the transition.
type subscribers[T any] struct {
	mu   sync.Mutex
	next int
	m    map[int]func(T)
}

// add registers fn and returns its unsubscribe function. The returned cancel
// is idempotent.
func (s *subscribers[T]) add(fn func(T)) (cancel func(), first bool) {
	s.mu.Lock()
	if s.m == nil {
		s.m = make(map[int]func(T))
	}
	first = len(s.m) == 0
	id := s.next
	s.next++
	s.m[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.m, id)
		s.mu.Unlock()
	}, first
}

func (s *subscribers[T]) notify(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.m))
	for _, fn := range s.m {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
