package state

import (
	"context"

	"github.com/postsiva/postsiva-cli/internal/requester"
)

// Action describes one orchestrated call against a resource
type Action[T, R any] struct {
	// Fallback replaces an empty error message
	Fallback string
	// Clear runs when the action starts
	Clear func(*T)
	// Discard runs when the action fails
	Discard func(*T)
	Call    func(ctx context.Context) (R, error)
	// Store writes the call's result into the resource
	Store func(*T, R)
}

// Run drives m through Loading to Success or Failed around a.Call. A failure
// is normalized, recorded on the machine and returned to the caller as a
// *requester.Error.
func Run[T, R any](ctx context.Context, m *Machine[T], a Action[T, R]) (R, error) {
	m.Begin(a.Clear)

	result, err := a.Call(ctx)
	if err != nil {
		normalized := requester.Normalize(err, a.Fallback)
		m.Fail(normalized, a.Discard)
		var zero R
		return zero, normalized
	}

	m.Succeed(func(data *T) {
		if a.Store != nil {
			a.Store(data, result)
		}
	})
	return result, nil
}
