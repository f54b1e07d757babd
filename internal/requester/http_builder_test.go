package requester_test

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/requester"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuthManager struct {
	applyAuthFunc func(*http.Request) error
}

func (m *mockAuthManager) ApplyAuth(req *http.Request) error {
	return m.applyAuthFunc(req)
}

func newBuilder(auth requester.AuthManager) *requester.HTTPRequestBuilder {
	return requester.NewHTTPRequestBuilder(requester.HTTPRequestBuilderParams{
		APIConfig: &config.APIConfig{
			BaseURL: "http://api.example.com",
			Headers: map[string]string{"X-Client": "postsiva-cli"},
		},
		AuthManager: auth,
	})
}

func TestHTTPRequestBuilder_BuildRequest(t *testing.T) {
	bearer := &mockAuthManager{applyAuthFunc: func(req *http.Request) error {
		req.Header.Set("Authorization", "Bearer test-token")
		return nil
	}}

	tests := []struct {
		name         string
		route        requester.Route
		query        url.Values
		body         requester.Body
		checkRequest func(t *testing.T, req *requester.Request)
	}{
		{
			name:  "GET with query",
			route: requester.Route{Method: http.MethodGet, Path: "/tiktok/user-profile/", Auth: true},
			query: url.Values{"refresh": {"true"}},
			checkRequest: func(t *testing.T, req *requester.Request) {
				assert.Equal(t, "http://api.example.com/tiktok/user-profile/?refresh=true", req.URL)
				assert.Equal(t, "Bearer test-token", req.HttpRequest.Header.Get("Authorization"))
				assert.Equal(t, "application/json", req.HttpRequest.Header.Get("Accept"))
				assert.Equal(t, "postsiva-cli", req.HttpRequest.Header.Get("X-Client"))
				assert.Nil(t, req.HttpRequest.Body)
			},
		},
		{
			name:  "POST JSON without auth",
			route: requester.Route{Method: http.MethodPost, Path: "/auth/login"},
			body:  requester.JSONBody(map[string]string{"email": "a@b.c"}),
			checkRequest: func(t *testing.T, req *requester.Request) {
				assert.Equal(t, "application/json", req.ContentType)
				assert.Empty(t, req.HttpRequest.Header.Get("Authorization"))
				data, err := io.ReadAll(req.HttpRequest.Body)
				require.NoError(t, err)
				assert.JSONEq(t, `{"email":"a@b.c"}`, string(data))
			},
		},
		{
			name:  "POST form",
			route: requester.Route{Method: http.MethodPost, Path: "/tiktok/draft-post/upload-url", Auth: true},
			body:  requester.FormBody(url.Values{"video_url": {"https://cdn/v.mp4"}, "title": {"Hello"}}),
			checkRequest: func(t *testing.T, req *requester.Request) {
				assert.Equal(t, "application/x-www-form-urlencoded", req.ContentType)
				data, err := io.ReadAll(req.HttpRequest.Body)
				require.NoError(t, err)
				values, err := url.ParseQuery(string(data))
				require.NoError(t, err)
				assert.Equal(t, "https://cdn/v.mp4", values.Get("video_url"))
				assert.Equal(t, "Hello", values.Get("title"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := newBuilder(bearer).BuildRequest(context.Background(), tt.route, tt.query, tt.body)
			require.NoError(t, err)
			tt.checkRequest(t, req)
		})
	}
}

func TestHTTPRequestBuilder_AuthFailureStopsBeforeBody(t *testing.T) {
	denied := &mockAuthManager{applyAuthFunc: func(*http.Request) error {
		return requester.Unauthorized()
	}}
	file := &countingReader{r: strings.NewReader("video-bytes")}
	body := &requester.MultipartBody{
		File: &requester.FilePart{Field: "file", Name: "clip.mp4", Size: 11, Reader: file},
	}

	_, err := newBuilder(denied).BuildRequest(context.Background(),
		requester.Route{Method: http.MethodPost, Path: "/tiktok/draft-post/upload", Auth: true}, nil, body)

	var apiErr *requester.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Code)
	assert.Zero(t, file.n, "file must not be read when auth fails")
}

func TestHTTPRequestBuilder_Multipart(t *testing.T) {
	builder := newBuilder(nil)
	var progress []int
	body := &requester.MultipartBody{
		Fields: []requester.Field{{Name: "title", Value: "My draft"}},
		File: &requester.FilePart{
			Field:  "file",
			Name:   "clip.mp4",
			Size:   int64(len("0123456789")),
			Reader: strings.NewReader("0123456789"),
		},
		Progress: func(p int) { progress = append(progress, p) },
	}

	req, err := builder.BuildRequest(context.Background(),
		requester.Route{Method: http.MethodPost, Path: "/upload"}, nil, body)
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(req.ContentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(req.HttpRequest.Body, params["boundary"])
	form, err := reader.ReadForm(1 << 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"My draft"}, form.Value["title"])
	require.Len(t, form.File["file"], 1)
	assert.Equal(t, "clip.mp4", form.File["file"][0].Filename)

	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1])
	}
	assert.LessOrEqual(t, progress[len(progress)-1], 99)
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}
