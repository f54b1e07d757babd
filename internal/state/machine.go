package state

import (
	"sync"

	"github.com/postsiva/postsiva-cli/internal/logger"
	"github.com/postsiva/postsiva-cli/internal/requester"
	"go.uber.org/zap"
)

// Machine holds one resource's State and applies transitions to it.
// Subscribers are notified synchronously, in transition order, and must not
// trigger transitions on the same machine from inside the callback.
type Machine[T any] struct {
	mu       sync.Mutex
	current  State[T]
	inflight int

	notifyMu sync.Mutex
	subs     map[uint64]func(State[T])
	nextID   uint64

	log *zap.Logger
}

// NewMachine returns a machine in the Idle state
func NewMachine[T any](name string) *Machine[T] {
	return &Machine[T]{
		current: Idle[T]{},
		subs:    make(map[uint64]func(State[T])),
		log:     logger.Named("state").With(zap.String("resource", name)),
	}
}

// State returns the current state
func (m *Machine[T]) State() State[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Begin moves to Loading and drops the previous error. clear, when set,
// empties the slot of the action being started.
func (m *Machine[T]) Begin(clear func(*T)) {
	m.transition(func(cur State[T]) (State[T], bool) {
		if m.inflight > 0 {
			m.log.Debug("action started while another is in flight; the last to resolve wins",
				zap.Int("inflight", m.inflight))
		}
		m.inflight++
		data := cur.Data()
		if clear != nil {
			clear(&data)
		}
		return Loading[T]{Value: data}, true
	})
}

// Update applies fn to the data of a Loading state. It reports false and
// does nothing in any other state.
func (m *Machine[T]) Update(fn func(*T)) bool {
	var applied bool
	m.transition(func(cur State[T]) (State[T], bool) {
		loading, ok := cur.(Loading[T])
		if !ok {
			return cur, false
		}
		data := loading.Value
		fn(&data)
		applied = true
		return Loading[T]{Value: data}, true
	})
	return applied
}

// Succeed moves to Success with apply's result stored
func (m *Machine[T]) Succeed(apply func(*T)) {
	m.transition(func(cur State[T]) (State[T], bool) {
		m.settle()
		data := cur.Data()
		if apply != nil {
			apply(&data)
		}
		return Success[T]{Value: data}, true
	})
}

// Fail moves to Failed. A nil err is replaced with a generic one so that
// Failed never carries a nil error.
func (m *Machine[T]) Fail(err *requester.Error, clear func(*T)) {
	if err == nil {
		err = &requester.Error{Message: "Unknown error"}
	}
	m.transition(func(cur State[T]) (State[T], bool) {
		m.settle()
		data := cur.Data()
		if clear != nil {
			clear(&data)
		}
		return Failed[T]{Value: data, Cause: err}, true
	})
}

// Reset returns to Idle from any state. Actions still in flight resolve
// normally afterwards.
func (m *Machine[T]) Reset() {
	m.transition(func(State[T]) (State[T], bool) {
		return Idle[T]{}, true
	})
}

// Subscribe registers fn for every transition. The returned function
// unsubscribes and is safe to call more than once.
func (m *Machine[T]) Subscribe(fn func(State[T])) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

func (m *Machine[T]) settle() {
	if m.inflight > 0 {
		m.inflight--
	}
}

func (m *Machine[T]) transition(step func(State[T]) (State[T], bool)) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	next, changed := step(m.current)
	if !changed {
		m.mu.Unlock()
		return
	}
	m.current = next
	subs := make([]func(State[T]), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}
