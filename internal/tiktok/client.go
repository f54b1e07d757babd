package tiktok

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/postsiva/postsiva-cli/internal/requester"
)

var (
	getTokenRoute    = requester.Route{Method: http.MethodGet, Path: "/tiktok/get-token", Auth: true}
	createTokenRoute = requester.Route{Method: http.MethodPost, Path: "/tiktok/create-token", Auth: true}
	userProfileRoute = requester.Route{Method: http.MethodGet, Path: "/tiktok/user-profile/", Auth: true}
	photoPostRoute   = requester.Route{Method: http.MethodPost, Path: "/tiktok/photo/direct/post", Auth: true}
	draftURLRoute    = requester.Route{Method: http.MethodPost, Path: "/tiktok/draft-post/upload-url", Auth: true}
	draftUploadRoute = requester.Route{Method: http.MethodPost, Path: "/tiktok/draft-post/upload", Auth: true}
)

// Client wraps the bearer-authenticated TikTok endpoints. Every call fails
// with a 401 *requester.Error, before validation and without touching the
// network, when no token is available.
type Client struct {
	requester *requester.HTTPRequester
	tokens    requester.TokenSource
}

func NewClient(r *requester.HTTPRequester, tokens requester.TokenSource) *Client {
	return &Client{requester: r, tokens: tokens}
}

func (c *Client) authorized() error {
	if _, ok := c.tokens.Token(); !ok {
		return requester.Unauthorized()
	}
	return nil
}

// CheckToken returns the linked account's token data
func (c *Client) CheckToken(ctx context.Context) (*TokenData, error) {
	if err := c.authorized(); err != nil {
		return nil, err
	}
	env, err := requester.Fetch[envelope[*TokenData]](ctx, c.requester, getTokenRoute, nil, nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CreateOAuth asks the backend for a fresh authorization URL
func (c *Client) CreateOAuth(ctx context.Context) (*OAuthData, error) {
	if err := c.authorized(); err != nil {
		return nil, err
	}
	env, err := requester.Fetch[envelope[*OAuthData]](ctx, c.requester, createTokenRoute, nil, nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetProfile returns the cached profile, or a live one when refresh is set
func (c *Client) GetProfile(ctx context.Context, refresh bool) (*ProfileResult, error) {
	if err := c.authorized(); err != nil {
		return nil, err
	}
	query := url.Values{"refresh": {strconv.FormatBool(refresh)}}
	env, err := requester.Fetch[envelope[*profilePayload]](ctx, c.requester, userProfileRoute, query, nil)
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		return &ProfileResult{}, nil
	}
	return &ProfileResult{
		Profile:     env.Data.Data,
		LastUpdated: env.Data.LastUpdated,
		Source:      env.Data.Source,
	}, nil
}

func (c *Client) PostPhotos(ctx context.Context, req PhotoPostRequest) (*PhotoPostResponse, error) {
	if err := c.authorized(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return requirePayload(requester.Fetch[*PhotoPostResponse](ctx, c.requester, photoPostRoute, nil, requester.JSONBody(req)))
}

func (c *Client) UploadDraftVideoURL(ctx context.Context, req DraftVideoURLRequest) (*DraftVideoResponse, error) {
	if err := c.authorized(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("video_url", req.VideoURL)
	form.Set("title", req.Title)
	return requirePayload(requester.Fetch[*DraftVideoResponse](ctx, c.requester, draftURLRoute, nil, requester.FormBody(form)))
}

// UploadDraftVideoFile streams file as multipart form data. progress, when
// set, receives intermediate percentages below 100 as bytes are sent.
func (c *Client) UploadDraftVideoFile(ctx context.Context, file DraftVideoFile, progress func(int)) (*DraftVideoResponse, error) {
	if err := c.authorized(); err != nil {
		return nil, err
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	body := &requester.MultipartBody{
		File: &requester.FilePart{
			Field:  "file",
			Name:   file.Name,
			Size:   file.Size,
			Reader: file.Reader,
		},
		Fields:   []requester.Field{{Name: "title", Value: file.Title}},
		Progress: progress,
	}
	return requirePayload(requester.Fetch[*DraftVideoResponse](ctx, c.requester, draftUploadRoute, nil, body))
}

// requirePayload turns a successful reply without a body into an error whose
// empty message is later replaced by the action's fallback.
func requirePayload[T any](res *T, err error) (*T, error) {
	if err == nil && res == nil {
		return nil, &requester.Error{}
	}
	return res, err
}
