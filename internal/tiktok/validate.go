package tiktok

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/postsiva/postsiva-cli/internal/requester"
)

func invalid(field, format string, args ...any) *requester.Error {
	return &requester.Error{
		Message: fmt.Sprintf(format, args...),
		Details: map[string]any{"field": field},
	}
}

// Validate checks the request locally before it is sent
func (r PhotoPostRequest) Validate() error {
	if len(r.PhotoURLs) == 0 {
		return invalid("photo_urls", "at least one photo URL is required")
	}
	for i, u := range r.PhotoURLs {
		if !isHTTPURL(u) {
			return invalid("photo_urls", "photo URL %d is not an http(s) URL: %q", i, u)
		}
	}
	if r.CoverIndex < 0 || r.CoverIndex >= len(r.PhotoURLs) {
		return invalid("cover_index", "cover index %d is out of range for %d photos", r.CoverIndex, len(r.PhotoURLs))
	}
	if !r.PrivacyLevel.Valid() {
		return invalid("privacy_level", "unknown privacy level %q", r.PrivacyLevel)
	}
	return nil
}

func (r DraftVideoURLRequest) Validate() error {
	if !isHTTPURL(r.VideoURL) {
		return invalid("video_url", "video URL must be an http(s) URL")
	}
	if strings.TrimSpace(r.Title) == "" {
		return invalid("title", "title is required")
	}
	return nil
}

func (f DraftVideoFile) Validate() error {
	if f.Reader == nil {
		return invalid("file", "video file is required")
	}
	if strings.TrimSpace(f.Title) == "" {
		return invalid("title", "title is required")
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
