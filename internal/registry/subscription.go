package registry

import "sync"

// subscription delivers change events to one subscriber in order. Events
// wait in an unbounded queue so a slow reader never loses one.
type subscription struct {
	ch    chan ChangeEvent
	types map[ChangeType]bool // nil accepts every type

	mu    sync.Mutex
	queue []ChangeEvent
	wake  chan struct{}
	stop  chan struct{}
	once  sync.Once
}

func newSubscription(types []ChangeType) *subscription {
	s := &subscription{
		ch:   make(chan ChangeEvent),
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	if len(types) > 0 {
		s.types = make(map[ChangeType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	go s.run()
	return s
}

func (s *subscription) wants(t ChangeType) bool {
	return s.types == nil || s.types[t]
}

func (s *subscription) push(event ChangeEvent) {
	if !s.wants(event.Type) {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) pop() (ChangeEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return ChangeEvent{}, false
	}
	event := s.queue[0]
	s.queue[0] = ChangeEvent{}
	s.queue = s.queue[1:]
	return event, true
}

// close stops delivery. Events still queued are discarded and the
// channel is closed.
func (s *subscription) close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *subscription) run() {
	defer close(s.ch)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		event, ok := s.pop()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}

		select {
		case s.ch <- event:
		case <-s.stop:
			return
		}
	}
}
