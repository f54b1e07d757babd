package requester

import (
	"net/http"

	"golang.org/x/oauth2"
)

// TokenSource yields the current bearer token, if any
type TokenSource interface {
	Token() (string, bool)
}

// TokenSourceFunc adapts a function to TokenSource
type TokenSourceFunc func() (string, bool)

func (f TokenSourceFunc) Token() (string, bool) { return f() }

// AuthManager handles request authentication
type AuthManager interface {
	ApplyAuth(req *http.Request) error
}

// BearerAuthManager applies the session token as an OAuth2 bearer header
type BearerAuthManager struct {
	tokens TokenSource
}

// NewBearerAuthManager creates a new BearerAuthManager
func NewBearerAuthManager(tokens TokenSource) *BearerAuthManager {
	return &BearerAuthManager{tokens: tokens}
}

// ApplyAuth adds the Authorization header, or fails with a 401 Error when
// there is no token to send.
func (a *BearerAuthManager) ApplyAuth(req *http.Request) error {
	if a.tokens == nil {
		return Unauthorized()
	}
	token, ok := a.tokens.Token()
	if !ok || token == "" {
		return Unauthorized()
	}
	tok := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	tok.SetAuthHeader(req)
	return nil
}
