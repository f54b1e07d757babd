package requester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/postsiva/postsiva-cli/internal/config"

	"go.uber.org/fx"
)

// HTTPRequestBuilderParams holds the parameters for creating an HTTPRequestBuilder
type HTTPRequestBuilderParams struct {
	fx.In
	APIConfig   *config.APIConfig
	AuthManager AuthManager
}

// HTTPRequestBuilder turns a Route plus payload into an *http.Request
type HTTPRequestBuilder struct {
	apiCfg  *config.APIConfig
	authMgr AuthManager
}

// NewHTTPRequestBuilder creates a new HTTPRequestBuilder
func NewHTTPRequestBuilder(params HTTPRequestBuilderParams) *HTTPRequestBuilder {
	return &HTTPRequestBuilder{
		apiCfg:  params.APIConfig,
		authMgr: params.AuthManager,
	}
}

// BuildRequest builds a request for route. Authentication is applied before
// the body is encoded so a missing token never starts a streaming upload.
func (b *HTTPRequestBuilder) BuildRequest(ctx context.Context, route Route, query url.Values, body Body) (*Request, error) {
	target, err := b.buildURL(route.Path, query)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, route.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range b.apiCfg.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Accept", "application/json")

	if route.Auth {
		if b.authMgr == nil {
			return nil, Unauthorized()
		}
		if err := b.authMgr.ApplyAuth(httpReq); err != nil {
			return nil, err
		}
	}

	var contentType string
	if body != nil {
		r, ct, size, err := body.encode()
		if err != nil {
			return nil, err
		}
		setBody(httpReq, r, size)
		contentType = ct
		httpReq.Header.Set("Content-Type", contentType)
	}

	return &Request{
		URL:         target,
		Method:      route.Method,
		ContentType: contentType,
		HttpRequest: httpReq,
	}, nil
}

func (b *HTTPRequestBuilder) buildURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(b.apiCfg.BaseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid request URL: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func setBody(req *http.Request, r io.Reader, size int64) {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	req.Body = rc
	if size >= 0 {
		req.ContentLength = size
		if size == 0 {
			req.Body = http.NoBody
		}
	}
}
