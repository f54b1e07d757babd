package requester

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// NoTokenMessage is reported when a bearer endpoint is called without a session
const NoTokenMessage = "No authentication token available"

// Error is the normalized failure of any backend call, whatever shape the
// backend used for its error body. Code is the HTTP status (0 when the call
// never produced one) and Details holds the parsed error body.
type Error struct {
	Message string
	Code    int
	Details any
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	return e.Message
}

// Unwrap exposes the underlying transport error, if any
func (e *Error) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}

// Unauthorized is raised locally, without a network round trip, when no
// bearer token is available.
func Unauthorized() *Error {
	return &Error{Message: NoTokenMessage, Code: http.StatusUnauthorized}
}

// Normalize converts any error into an *Error. An empty message is replaced
// by fallback so callers always have something to show.
func Normalize(err error, fallback string) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		out := *apiErr
		if strings.TrimSpace(out.Message) == "" {
			out.Message = fallback
		}
		return &out
	}
	msg := err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = fallback
	}
	return &Error{Message: msg, Details: err}
}

// newHTTPError builds the normalized error for a non-2xx response. The body
// is parsed defensively: JSON when declared and valid, raw text otherwise.
func newHTTPError(status int, contentType string, body []byte) *Error {
	details := parseErrorBody(contentType, body)

	msg := messageFrom(details)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}

	return &Error{Message: msg, Code: status, Details: details}
}

func parseErrorBody(contentType string, body []byte) any {
	if isJSON(contentType) && len(body) > 0 {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			return parsed
		}
	}
	return string(body)
}

// messageFrom prefers "message", then "detail". FastAPI validation errors
// carry detail as a list of {msg: ...} objects.
func messageFrom(details any) string {
	obj, ok := details.(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := obj["message"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	switch d := obj["detail"].(type) {
	case string:
		return d
	case []any:
		var msgs []string
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if s, ok := m["msg"].(string); ok && s != "" {
					msgs = append(msgs, s)
				}
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
