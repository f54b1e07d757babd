package auth

import (
	"context"
	"net/http"

	"github.com/postsiva/postsiva-cli/internal/requester"
	"github.com/postsiva/postsiva-cli/internal/session"
)

var (
	signupRoute = requester.Route{Method: http.MethodPost, Path: "/auth/signup"}
	loginRoute  = requester.Route{Method: http.MethodPost, Path: "/auth/login"}
)

// SignupRequest creates a new account
type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// LoginRequest authenticates an existing account
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Response is returned by both signup and login
type Response struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        session.User `json:"user"`
}

// Client calls the unauthenticated account endpoints
type Client struct {
	requester *requester.HTTPRequester
}

func NewClient(r *requester.HTTPRequester) *Client {
	return &Client{requester: r}
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*Response, error) {
	return requester.Fetch[*Response](ctx, c.requester, signupRoute, nil, requester.JSONBody(req))
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*Response, error) {
	return requester.Fetch[*Response](ctx, c.requester, loginRoute, nil, requester.JSONBody(req))
}
