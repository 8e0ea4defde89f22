package webrtc

import "sync"

// subscribers tracks handler registrations for one observable object and
// hands back an unsubscribe function per registration.
type subscribers[H any] struct {
	mu   sync.Mutex
	next int
	subs map[int]H
}

func (s *subscribers[H]) add(h H) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]H)
	}
	id := s.next
	s.next++
	s.subs[id] = h

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// each invokes f for every registered handler. The handler set is copied
// first so handlers may subscribe or unsubscribe from inside f.
func (s *subscribers[H]) each(f func(H)) {
	s.mu.Lock()
	hs := make([]H, 0, len(s.subs))
	for _, h := range s.subs {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	for _, h := range hs {
		f(h)
	}
}
