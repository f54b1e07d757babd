package handshake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/logger"
	"github.com/postsiva/postsiva-cli/internal/tiktok"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	MsgPopupBlocked   = "Popup was blocked. Please allow popups for this site."
	MsgConnectFailed  = "Failed to connect TikTok account"
	MsgInitiateFailed = "Failed to initiate TikTok connection"

	// DashboardPath is where a successful connection lands
	DashboardPath = "/dashboard"
)

// ErrInProgress is returned by Connect while an attempt is running
var ErrInProgress = errors.New("a TikTok connection attempt is already in progress")

// Phase is the opener's position in the flow
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the opener. Error holds the user-facing message
// of the last attempt, if it produced one.
type Status struct {
	Phase Phase
	Error string
}

// Rect is a window's position and size in screen pixels
type Rect struct {
	Left, Top, Width, Height int
}

// Window is a child context opened by a Launcher
type Window interface {
	Closed() bool
	Close()
}

// Launcher opens url in a new child window. A nil window means the open
// was blocked.
type Launcher interface {
	Open(ctx context.Context, url string, rect Rect) (Window, error)
}

// Navigator moves the opener to another destination
type Navigator interface {
	Navigate(dest string)
}

type NavigatorFunc func(dest string)

func (f NavigatorFunc) Navigate(dest string) { f(dest) }

// AuthURLSource hands out third-party authorization URLs
type AuthURLSource interface {
	CreateOAuth(ctx context.Context) (*tiktok.OAuthData, error)
}

type OpenerParams struct {
	fx.In

	Config    *config.OAuthConfig
	Links     AuthURLSource
	Inbox     *Inbox
	Launcher  Launcher
	Navigator Navigator
	Clock     Clock `optional:"true"`
}

// Opener drives one connection attempt at a time: it asks for an
// authorization URL, opens it in a child window, and waits for the child's
// message or for the window to be closed.
type Opener struct {
	cfg       *config.OAuthConfig
	links     AuthURLSource
	inbox     *Inbox
	launcher  Launcher
	navigator Navigator
	clock     Clock
	log       *zap.Logger

	mu      sync.Mutex
	status  Status
	attempt *attempt
	changed chan struct{}
}

// attempt holds the resources of one Connect call. Every field is guarded
// by Opener.mu.
type attempt struct {
	window   Window
	unlisten func()
	poll     Stopper
	redirect Stopper
	received bool
}

func NewOpener(params OpenerParams) *Opener {
	clock := params.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Opener{
		cfg:       params.Config,
		links:     params.Links,
		inbox:     params.Inbox,
		launcher:  params.Launcher,
		navigator: params.Navigator,
		clock:     clock,
		log:       logger.Named("handshake"),
		changed:   make(chan struct{}),
	}
}

// PopupRect centers the configured popup size on the configured screen
func PopupRect(cfg *config.OAuthConfig) Rect {
	return Rect{
		Left:   cfg.ScreenWidth/2 - cfg.PopupWidth/2,
		Top:    cfg.ScreenHeight/2 - cfg.PopupHeight/2,
		Width:  cfg.PopupWidth,
		Height: cfg.PopupHeight,
	}
}

// Connect starts an attempt. Popup problems end the attempt with a message
// in Status rather than an error; only a failure to obtain the
// authorization URL is also returned.
func (o *Opener) Connect(ctx context.Context) error {
	o.mu.Lock()
	if o.status.Phase == PhaseConnecting {
		o.mu.Unlock()
		return ErrInProgress
	}
	o.teardownLocked(o.attempt)
	att := &attempt{}
	o.attempt = att
	o.setLocked(Status{Phase: PhaseConnecting})
	o.mu.Unlock()

	data, err := o.links.CreateOAuth(ctx)
	if err == nil && (data == nil || data.AuthURL == "") {
		err = errors.New("backend returned no authorization URL")
	}
	if err != nil {
		o.log.Warn("failed to start TikTok OAuth", zap.Error(err))
		o.finish(att, Status{Phase: PhaseFailed, Error: MsgInitiateFailed})
		return err
	}

	o.mu.Lock()
	if o.attempt != att {
		o.mu.Unlock()
		return nil
	}
	att.unlisten = o.inbox.Listen(func(msg Message) { o.receive(att, msg) })
	o.mu.Unlock()

	window, err := o.launcher.Open(ctx, data.AuthURL, PopupRect(o.cfg))
	if err != nil {
		o.log.Warn("failed to open authorization window", zap.Error(err))
	}
	if err != nil || window == nil || window.Closed() {
		o.finish(att, Status{Phase: PhaseIdle, Error: MsgPopupBlocked})
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempt != att {
		window.Close()
		return nil
	}
	att.window = window
	att.poll = o.clock.Every(o.pollInterval(), func() { o.poll(att) })
	return nil
}

func (o *Opener) receive(att *attempt, msg Message) {
	if msg.Type != MessageType {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempt != att || att.received {
		return
	}
	att.received = true
	if att.unlisten != nil {
		att.unlisten()
	}

	if msg.Success {
		o.setLocked(Status{Phase: PhaseConnected})
		att.redirect = o.clock.AfterFunc(o.redirectDelay(), func() {
			o.navigator.Navigate(DashboardPath)
		})
		return
	}

	reason := MsgConnectFailed
	if msg.Message != nil && *msg.Message != "" {
		reason = *msg.Message
	} else if msg.Error != nil && *msg.Error != "" {
		reason = *msg.Error
	}
	o.setLocked(Status{Phase: PhaseFailed, Error: reason})
}

// poll watches for a window closed by hand. The poll keeps running after a
// message so the window's closing still releases it.
func (o *Opener) poll(att *attempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempt != att || att.window == nil || !att.window.Closed() {
		return
	}
	if att.poll != nil {
		att.poll.Stop()
	}
	if att.unlisten != nil {
		att.unlisten()
	}
	if o.status.Phase == PhaseConnecting {
		o.setLocked(Status{Phase: PhaseIdle})
	}
}

// finish ends att early with st, releasing its listener
func (o *Opener) finish(att *attempt, st Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempt != att {
		return
	}
	if att.unlisten != nil {
		att.unlisten()
	}
	o.setLocked(st)
}

// Close tears the current attempt down: the listener is removed, the poll
// and any pending navigation are stopped and the child window is closed.
// An attempt still connecting returns to idle. Close is idempotent.
func (o *Opener) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.teardownLocked(o.attempt)
	o.attempt = nil
	if o.status.Phase == PhaseConnecting {
		o.setLocked(Status{Phase: PhaseIdle})
	}
}

func (o *Opener) teardownLocked(att *attempt) {
	if att == nil {
		return
	}
	if att.unlisten != nil {
		att.unlisten()
	}
	if att.poll != nil {
		att.poll.Stop()
	}
	if att.redirect != nil {
		att.redirect.Stop()
	}
	if att.window != nil && !att.window.Closed() {
		att.window.Close()
	}
}

// Status returns the current snapshot
func (o *Opener) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Wait blocks until the opener is no longer connecting
func (o *Opener) Wait(ctx context.Context) (Status, error) {
	for {
		o.mu.Lock()
		st, changed := o.status, o.changed
		o.mu.Unlock()

		if st.Phase != PhaseConnecting {
			return st, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

func (o *Opener) setLocked(st Status) {
	if st == o.status {
		return
	}
	o.log.Debug("handshake status",
		zap.Stringer("from", o.status.Phase),
		zap.Stringer("to", st.Phase),
		zap.String("error", st.Error),
	)
	o.status = st
	close(o.changed)
	o.changed = make(chan struct{})
}

func (o *Opener) pollInterval() time.Duration {
	if o.cfg.PollInterval > 0 {
		return o.cfg.PollInterval
	}
	return 500 * time.Millisecond
}

func (o *Opener) redirectDelay() time.Duration {
	if o.cfg.RedirectDelay > 0 {
		return o.cfg.RedirectDelay
	}
	return 2 * time.Second
}
