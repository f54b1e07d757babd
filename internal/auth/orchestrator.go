// Package auth owns the authenticated identity: signup, login, logout and
// session restore, with the result mirrored into the session scope.
package auth

import (
	"context"
	"errors"

	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/logger"
	"github.com/postsiva/postsiva-cli/internal/requester"
	"github.com/postsiva/postsiva-cli/internal/session"
	"github.com/postsiva/postsiva-cli/internal/state"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	signupFallback = "Signup failed"
	loginFallback  = "Login failed"
)

// ErrNotAuthenticated is returned by RequireSession when nobody is signed in
var ErrNotAuthenticated = errors.New("not authenticated")

// Identity is the auth resource. Both fields are set together or not at all.
type Identity struct {
	Token string
	User  *session.User
}

// Authenticated reports whether the identity holds a session
func (i Identity) Authenticated() bool {
	return i.Token != "" && i.User != nil
}

// Session converts the identity to a scope session, or nil
func (i Identity) Session() *session.Session {
	if !i.Authenticated() {
		return nil
	}
	return &session.Session{Token: i.Token, User: *i.User}
}

type OrchestratorParams struct {
	fx.In

	Client  *Client
	Store   *session.Store
	Publish session.Publisher
	Config  *config.AuthConfig
}

// Orchestrator is the only writer of the session scope
type Orchestrator struct {
	client  *Client
	store   *session.Store
	publish session.Publisher
	machine *state.Machine[Identity]
	log     *zap.Logger
}

// NewOrchestrator creates the orchestrator and, when auto restore is on,
// loads the persisted session right away.
func NewOrchestrator(params OrchestratorParams) *Orchestrator {
	o := &Orchestrator{
		client:  params.Client,
		store:   params.Store,
		publish: params.Publish,
		machine: state.NewMachine[Identity]("auth"),
		log:     logger.Named("auth"),
	}
	if params.Config == nil || params.Config.AutoRestore {
		o.RestoreSession(context.Background())
	}
	return o
}

// Signup creates an account and signs it in
func (o *Orchestrator) Signup(ctx context.Context, req SignupRequest) (*Response, error) {
	return o.authenticate(ctx, signupFallback, func(ctx context.Context) (*Response, error) {
		return o.client.Signup(ctx, req)
	})
}

// Login signs an existing account in
func (o *Orchestrator) Login(ctx context.Context, req LoginRequest) (*Response, error) {
	return o.authenticate(ctx, loginFallback, func(ctx context.Context) (*Response, error) {
		return o.client.Login(ctx, req)
	})
}

func (o *Orchestrator) authenticate(ctx context.Context, fallback string, call func(context.Context) (*Response, error)) (*Response, error) {
	resp, err := state.Run(ctx, o.machine, state.Action[Identity, *Response]{
		Fallback: fallback,
		Discard:  func(id *Identity) { *id = Identity{} },
		Call: func(ctx context.Context) (*Response, error) {
			resp, err := call(ctx)
			if err != nil {
				return nil, err
			}
			if resp == nil || resp.AccessToken == "" {
				return nil, &requester.Error{Details: resp}
			}
			return resp, nil
		},
		Store: func(id *Identity, resp *Response) {
			user := resp.User
			*id = Identity{Token: resp.AccessToken, User: &user}
		},
	})
	if err != nil {
		o.publish(nil)
		return nil, err
	}

	o.store.Save(ctx, resp.AccessToken, resp.User)
	o.publish(&session.Session{Token: resp.AccessToken, User: resp.User})
	o.log.Debug("signed in", zap.String("user_id", resp.User.ID))
	return resp, nil
}

// Logout clears the persisted session. The resulting state is Success with
// no identity.
func (o *Orchestrator) Logout(ctx context.Context) {
	o.store.Clear(ctx)
	o.machine.Succeed(func(id *Identity) { *id = Identity{} })
	o.publish(nil)
}

// RestoreSession loads the persisted session, if any. It reports whether a
// session was restored.
func (o *Orchestrator) RestoreSession(ctx context.Context) bool {
	restored := o.store.Restore(ctx)
	if restored == nil {
		return false
	}
	user := restored.User
	o.machine.Succeed(func(id *Identity) {
		*id = Identity{Token: restored.Token, User: &user}
	})
	o.publish(restored)
	return true
}

// Reset returns to the initial state. The persisted session is untouched.
func (o *Orchestrator) Reset() {
	o.machine.Reset()
	o.publish(nil)
}

// Token returns the current bearer token
func (o *Orchestrator) Token() (string, bool) {
	id := o.machine.State().Data()
	if !id.Authenticated() {
		return "", false
	}
	return id.Token, true
}

func (o *Orchestrator) IsAuthenticated() bool {
	return o.machine.State().Data().Authenticated()
}

// RequireSession returns the current session or ErrNotAuthenticated
func (o *Orchestrator) RequireSession() (*session.Session, error) {
	s := o.machine.State().Data().Session()
	if s == nil {
		return nil, ErrNotAuthenticated
	}
	return s, nil
}

func (o *Orchestrator) State() state.State[Identity] {
	return o.machine.State()
}

func (o *Orchestrator) Subscribe(fn func(state.State[Identity])) func() {
	return o.machine.Subscribe(fn)
}
