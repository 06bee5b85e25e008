package auth

import (
	"sort"
	"sync"
)

// Principal is the authenticated user as seen by the rest of the program.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Session is an explicit handle on "who is signed in". It replaces ambient
// auth state: components that care receive the session and subscribe to it.
type Session struct {
	mu      sync.Mutex
	current *Principal
	subs    map[int]func(*Principal)
	nextSub int
}

func NewSession(p *Principal) *Session {
	return &Session{current: clonePrincipal(p), subs: map[int]func(*Principal){}}
}

// Current returns a copy of the signed-in principal, or nil.
func (s *Session) Current() *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePrincipal(s.current)
}

// Set replaces the principal and notifies subscribers once the change is
// visible. Callbacks run on the caller's goroutine in subscription order.
func (s *Session) Set(p *Principal) {
	s.mu.Lock()
	s.current = clonePrincipal(p)
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(*Principal), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(clonePrincipal(p))
	}
}

// Subscribe registers fn for principal changes and returns the function that
// removes it.
func (s *Session) Subscribe(fn func(*Principal)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func clonePrincipal(p *Principal) *Principal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
