// Package state implements the async lifecycle shared by every resource:
// idle, loading, success or failure, with the resource's data carried along.
package state

import "github.com/postsiva/postsiva-cli/internal/requester"

// Status is the coarse lifecycle position
type Status int

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

// State is one of Idle, Loading, Success or Failed. The variants make the
// invariants structural: only Failed carries an error, and it always does.
type State[T any] interface {
	Status() Status
	Data() T
	Err() *requester.Error
	sealed()
}

// Idle is the initial state and the target of Reset
type Idle[T any] struct{}

func (Idle[T]) Status() Status        { return StatusIdle }
func (Idle[T]) Data() T               { var zero T; return zero }
func (Idle[T]) Err() *requester.Error { return nil }
func (Idle[T]) sealed()               {}

// Loading means an action is in flight. Value is what remains visible while
// it runs, with the action's own slot already cleared.
type Loading[T any] struct {
	Value T
}

func (l Loading[T]) Status() Status      { return StatusLoading }
func (l Loading[T]) Data() T             { return l.Value }
func (Loading[T]) Err() *requester.Error { return nil }
func (Loading[T]) sealed()               {}

// Success holds the data after the last action resolved
type Success[T any] struct {
	Value T
}

func (s Success[T]) Status() Status      { return StatusSuccess }
func (s Success[T]) Data() T             { return s.Value }
func (Success[T]) Err() *requester.Error { return nil }
func (Success[T]) sealed()               {}

// Failed holds the normalized error of the last action
type Failed[T any] struct {
	Value T
	Cause *requester.Error
}

func (f Failed[T]) Status() Status        { return StatusError }
func (f Failed[T]) Data() T               { return f.Value }
func (f Failed[T]) Err() *requester.Error { return f.Cause }
func (Failed[T]) sealed()                 {}
