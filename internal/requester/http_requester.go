package requester

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPRequester handles both request building and execution
type HTTPRequester struct {
	client  *http.Client
	builder *HTTPRequestBuilder
	limiter *rate.Limiter
}

type HTTPRequesterParams struct {
	fx.In

	APIConfig *config.APIConfig
	Builder   *HTTPRequestBuilder
}

// NewHTTPRequester creates a new HTTPRequester from the API configuration
func NewHTTPRequester(params HTTPRequesterParams) *HTTPRequester {
	r := &HTTPRequester{
		client:  &http.Client{Timeout: params.APIConfig.Timeout},
		builder: params.Builder,
	}
	if params.APIConfig.RateLimit > 0 {
		burst := params.APIConfig.RateBurst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(params.APIConfig.RateLimit), burst)
	}
	return r
}

// SetHTTPClient replaces the underlying client, mainly for tests
func (r *HTTPRequester) SetHTTPClient(client *http.Client) {
	r.client = client
}

// Do builds and executes a request for route. Any failure, including a
// missing token or a non-2xx status, is returned as *Error.
func (r *HTTPRequester) Do(ctx context.Context, route Route, query url.Values, body Body) (*Response, error) {
	req, err := r.builder.BuildRequest(ctx, route, query, body)
	if err != nil {
		return nil, Normalize(err, "failed to build request")
	}
	logger.Debug("request route",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
	)

	resp, err := r.execute(req)
	if err != nil {
		logger.Debug("request failed", zap.String("url", req.URL), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// execute performs the actual HTTP request execution
func (r *HTTPRequester) execute(req *Request) (*Response, error) {
	httpReq := req.HttpRequest

	if r.limiter != nil {
		if err := r.limiter.Wait(httpReq.Context()); err != nil {
			if httpReq.Body != nil {
				_ = httpReq.Body.Close()
			}
			return nil, &Error{Message: fmt.Sprintf("rate limit wait: %v", err), Details: err}
		}
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("request failed: %v", err), Details: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to read response body: %v", err), Code: resp.StatusCode, Details: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(resp.StatusCode, resp.Header.Get("Content-Type"), bodyBytes)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       bodyBytes,
		Headers:    resp.Header,
	}, nil
}

// Decode converts a successful response into T: JSON bodies are unmarshalled,
// text bodies are accepted when T is a string.
func Decode[T any](resp *Response) (T, error) {
	var out T
	if len(resp.Body) == 0 {
		return out, nil
	}

	if !resp.IsJSON() {
		if s, ok := any(&out).(*string); ok {
			*s = string(resp.Body)
			return out, nil
		}
	}

	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, &Error{
			Message: fmt.Sprintf("failed to decode response: %v", err),
			Code:    resp.StatusCode,
			Details: string(resp.Body),
		}
	}
	return out, nil
}

// Fetch runs Do and Decode in one step
func Fetch[T any](ctx context.Context, r *HTTPRequester, route Route, query url.Values, body Body) (T, error) {
	resp, err := r.Do(ctx, route, query, body)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](resp)
}
