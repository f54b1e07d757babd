package tiktok

import (
	"context"

	"github.com/postsiva/postsiva-cli/internal/state"
)

const profileFallback = "Failed to load TikTok profile"

// ProfileState is the profile resource with the backend's cache metadata
type ProfileState struct {
	Profile     *Profile
	LastUpdated string
	Source      string
}

type ProfileOrchestrator struct {
	client  *Client
	machine *state.Machine[ProfileState]
}

func NewProfileOrchestrator(client *Client) *ProfileOrchestrator {
	return &ProfileOrchestrator{
		client:  client,
		machine: state.NewMachine[ProfileState]("tiktok-profile"),
	}
}

// LoadProfile fetches the profile. With refresh the backend bypasses its
// cache. A failure drops the previously loaded profile.
func (o *ProfileOrchestrator) LoadProfile(ctx context.Context, refresh bool) (*ProfileResult, error) {
	return state.Run(ctx, o.machine, state.Action[ProfileState, *ProfileResult]{
		Fallback: profileFallback,
		Discard:  func(p *ProfileState) { p.Profile = nil },
		Call: func(ctx context.Context) (*ProfileResult, error) {
			return o.client.GetProfile(ctx, refresh)
		},
		Store: func(p *ProfileState, res *ProfileResult) {
			*p = ProfileState{
				Profile:     res.Profile,
				LastUpdated: res.LastUpdated,
				Source:      res.Source,
			}
		},
	})
}

func (o *ProfileOrchestrator) Reset() {
	o.machine.Reset()
}

func (o *ProfileOrchestrator) State() state.State[ProfileState] {
	return o.machine.State()
}

func (o *ProfileOrchestrator) Subscribe(fn func(state.State[ProfileState])) func() {
	return o.machine.Subscribe(fn)
}
