package storage

import (
	"sync"

	"github.com/lotas/chatnav/internal/types"
)

// hub fans changes out to subscribers. Delivery is asynchronous and
// unbounded per subscriber: a writer never blocks on a slow reader, and a
// reader may call back into the store while handling a change.
type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	out   chan types.Change
	mu    sync.Mutex
	queue []types.Change
	wake  chan struct{}
	quit  chan struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) subscribe() (<-chan types.Change, func()) {
	s := &subscriber{
		out:  make(chan types.Change),
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	go s.pump()

	return s.out, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[s]; ok {
			delete(h.subs, s)
			close(s.quit)
		}
	}
}

func (h *hub) publish(c types.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		s.push(c)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.quit)
	}
}

func (s *subscriber) push(c types.Change) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		var next types.Change
		ok := len(s.queue) > 0
		if ok {
			next = s.queue[0]
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.quit:
				return
			}
		}
		select {
		case s.out <- next:
		case <-s.quit:
			return
		}
	}
}
