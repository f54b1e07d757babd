package session

import "sync"

// Publisher replaces the current session of a Scope. Only the
// authentication orchestrator holds it.
type Publisher func(*Session)

// Scope is the in-process view of who is signed in. Readers query it or
// subscribe to changes; writes go through the Publisher returned by NewScope.
type Scope struct {
	mu      sync.RWMutex
	current *Session

	notifyMu sync.Mutex
	subs     map[uint64]func(*Session)
	nextID   uint64
}

// NewScope creates an empty scope and its single writer
func NewScope() (*Scope, Publisher) {
	s := &Scope{subs: make(map[uint64]func(*Session))}
	return s, s.publish
}

func (s *Scope) publish(next *Session) {
	// notifyMu keeps subscribers seeing changes in publish order
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	var snapshot *Session
	if next != nil {
		cp := *next
		snapshot = &cp
	}

	s.mu.Lock()
	s.current = snapshot
	subs := make([]func(*Session), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(copySession(snapshot))
	}
}

// Session returns a copy of the current session, or nil
func (s *Scope) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.current)
}

// Token implements requester.TokenSource
func (s *Scope) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Token == "" {
		return "", false
	}
	return s.current.Token, true
}

// IsAuthenticated reports whether a session is present
func (s *Scope) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// Subscribe registers fn for session changes. The returned function
// unsubscribes and may be called more than once.
func (s *Scope) Subscribe(fn func(*Session)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func copySession(in *Session) *Session {
	if in == nil {
		return nil
	}
	cp := *in
	return &cp
}
