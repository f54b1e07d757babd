// Package handshake completes the TikTok OAuth flow across two execution
// contexts: the opener that starts it and the child browser window that
// lands on the callback page. The child reports back with a single typed
// message through an origin-checked inbox.
package handshake

import (
	"net/url"
	"sync"

	"github.com/postsiva/postsiva-cli/internal/logger"
	"go.uber.org/zap"
)

// MessageType tags the callback message
const MessageType = "TIKTOK_OAUTH_CALLBACK"

// Message is what the child posts to the opener. It is never persisted.
type Message struct {
	Type    string  `json:"type"`
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Message *string `json:"message"`
}

// Params are the query parameters the backend appends to the callback URL
type Params struct {
	Success bool
	Error   string
	Message string
}

// ParseParams reads the callback query. Only the literal "true" counts as
// success.
func ParseParams(q url.Values) Params {
	return Params{
		Success: q.Get("success") == "true",
		Error:   q.Get("error"),
		Message: q.Get("message"),
	}
}

// AsMessage converts the params into the callback message. Empty strings
// become nulls.
func (p Params) AsMessage() Message {
	return Message{
		Type:    MessageType,
		Success: p.Success,
		Error:   nullable(p.Error),
		Message: nullable(p.Message),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Poster delivers a message on behalf of a sender origin
type Poster interface {
	Post(origin string, msg Message)
}

// Inbox accepts messages for listeners bound to one origin. Messages from
// any other origin are dropped without a trace beyond a debug log.
type Inbox struct {
	origin string

	mu        sync.Mutex
	listeners map[uint64]func(Message)
	nextID    uint64
}

func NewInbox(origin string) *Inbox {
	return &Inbox{
		origin:    origin,
		listeners: make(map[uint64]func(Message)),
	}
}

func (i *Inbox) Origin() string { return i.origin }

// Post delivers msg to every listener when origin matches the inbox's own
func (i *Inbox) Post(origin string, msg Message) {
	if origin != i.origin {
		logger.Debug("dropping message from foreign origin",
			zap.String("origin", origin),
			zap.String("expected", i.origin),
		)
		return
	}

	i.mu.Lock()
	listeners := make([]func(Message), 0, len(i.listeners))
	for _, fn := range i.listeners {
		listeners = append(listeners, fn)
	}
	i.mu.Unlock()

	for _, fn := range listeners {
		fn(msg)
	}
}

// Listen registers fn. The returned function removes it and may be called
// any number of times.
func (i *Inbox) Listen(fn func(Message)) func() {
	i.mu.Lock()
	id := i.nextID
	i.nextID++
	i.listeners[id] = fn
	i.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			delete(i.listeners, id)
			i.mu.Unlock()
		})
	}
}

// Listeners returns the number of registered listeners
func (i *Inbox) Listeners() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.listeners)
}
