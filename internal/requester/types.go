package requester

import (
	"mime"
	"net/http"
	"strings"
)

// Route describes one backend endpoint
type Route struct {
	Method string
	Path   string
	// Auth marks endpoints that need the user's bearer token
	Auth bool
}

// Request represents a fully built HTTP request
type Request struct {
	URL         string
	Method      string
	ContentType string
	HttpRequest *http.Request // The actual HTTP request
}

// Response represents a successful HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// IsJSON reports whether the response declares a JSON body
func (r *Response) IsJSON() bool {
	return isJSON(r.Headers.Get("Content-Type"))
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
