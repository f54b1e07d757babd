package handshake

import (
	"net/url"
	"time"
)

const (
	// ConnectPath is the connect page the child falls back to on failure
	ConnectPath = "/auth/connect"

	defaultFailureReason = "OAuth failed"
)

// Outcome tells the child's host what happened: either the message was
// handed to the opener, or the child must navigate to Redirect itself.
type Outcome struct {
	Delivered bool
	Redirect  string
}

// Child is the callback side of the handshake
type Child struct {
	origin string
	grace  time.Duration
	clock  Clock
	close  func()
}

// NewChild creates the callback side for a window served from origin.
// closeSelf closes the child window once the grace period after delivery
// has passed.
func NewChild(origin string, grace time.Duration, clock Clock, closeSelf func()) *Child {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Child{origin: origin, grace: grace, clock: clock, close: closeSelf}
}

// Complete finishes the flow for params. With an opener the message is
// posted to it and the window closes itself after the grace period;
// without one the child redirects on its own.
func (c *Child) Complete(params Params, opener Poster) Outcome {
	if opener != nil {
		opener.Post(c.origin, params.AsMessage())
		if c.close != nil {
			c.clock.AfterFunc(c.grace, c.close)
		}
		return Outcome{Delivered: true}
	}

	if params.Success {
		return Outcome{Redirect: DashboardPath}
	}
	reason := params.Message
	if reason == "" {
		reason = defaultFailureReason
	}
	return Outcome{Redirect: ConnectPath + "?error=" + url.QueryEscape(reason)}
}
