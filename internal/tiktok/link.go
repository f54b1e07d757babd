package tiktok

import (
	"context"

	"github.com/postsiva/postsiva-cli/internal/state"
)

const (
	checkTokenFallback  = "Failed to check TikTok connection"
	createOAuthFallback = "Failed to start TikTok OAuth"
)

// Link is the linked-account resource
type Link struct {
	Token     *TokenData
	OAuth     *OAuthData
	Connected bool
}

// LinkOrchestrator tracks whether a TikTok account is linked and hands out
// authorization URLs for linking one.
type LinkOrchestrator struct {
	client  *Client
	machine *state.Machine[Link]
}

func NewLinkOrchestrator(client *Client) *LinkOrchestrator {
	return &LinkOrchestrator{
		client:  client,
		machine: state.NewMachine[Link]("tiktok-link"),
	}
}

// CheckToken refreshes the link status
func (o *LinkOrchestrator) CheckToken(ctx context.Context) (*TokenData, error) {
	return state.Run(ctx, o.machine, state.Action[Link, *TokenData]{
		Fallback: checkTokenFallback,
		Discard: func(l *Link) {
			l.Token = nil
			l.Connected = false
		},
		Call: o.client.CheckToken,
		Store: func(l *Link, token *TokenData) {
			l.Token = token
			l.Connected = token != nil && token.AccessToken != ""
		},
	})
}

// CreateOAuth obtains a new authorization URL
func (o *LinkOrchestrator) CreateOAuth(ctx context.Context) (*OAuthData, error) {
	return state.Run(ctx, o.machine, state.Action[Link, *OAuthData]{
		Fallback: createOAuthFallback,
		Discard:  func(l *Link) { l.OAuth = nil },
		Call:     o.client.CreateOAuth,
		Store:    func(l *Link, data *OAuthData) { l.OAuth = data },
	})
}

func (o *LinkOrchestrator) Reset() {
	o.machine.Reset()
}

func (o *LinkOrchestrator) IsConnected() bool {
	return o.machine.State().Data().Connected
}

func (o *LinkOrchestrator) State() state.State[Link] {
	return o.machine.State()
}

func (o *LinkOrchestrator) Subscribe(fn func(state.State[Link])) func() {
	return o.machine.Subscribe(fn)
}
