package handshake

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/render"
	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/postsiva/postsiva-cli/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// shutdownTimeout is the maximum time to wait for server shutdown
const shutdownTimeout = 5 * time.Second

type CallbackServerParams struct {
	fx.In

	Config *config.OAuthConfig
	Inbox  *Inbox
	Clock  Clock `optional:"true"`
}

// CallbackServer hosts the child side of the handshake on the loopback
// interface. The backend redirects the browser to /auth/callback once the
// user has answered TikTok's consent screen.
type CallbackServer struct {
	cfg   *config.OAuthConfig
	inbox *Inbox
	clock Clock
	log   *zap.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	errChan  chan error
	window   *trackedWindow
}

func NewCallbackServer(params CallbackServerParams) *CallbackServer {
	clock := params.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &CallbackServer{
		cfg:   params.Config,
		inbox: params.Inbox,
		clock: clock,
		log:   logger.Named("callback"),
	}
}

// Handler returns the server's routes
func (s *CallbackServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/callback", s.handleCallback)
	mux.HandleFunc("GET "+DashboardPath, s.handleDashboard)
	mux.HandleFunc("GET "+ConnectPath, s.handleConnect)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start binds the listener and serves in the background. Calling Start on
// a running server is a no-op.
func (s *CallbackServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	addr := net.JoinHostPort(s.cfg.CallbackHost, fmt.Sprint(s.cfg.CallbackPort))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting callback server", zap.String("address", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("callback server error: %w", err)
		}
		close(errChan)
	}()

	s.server, s.listener, s.errChan = server, listener, errChan
	return nil
}

// Addr returns the bound address, or "" before Start
func (s *CallbackServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and closes any tracked window
func (s *CallbackServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	server, errChan, window := s.server, s.errChan, s.window
	s.server, s.listener, s.errChan, s.window = nil, nil, nil, nil
	s.mu.Unlock()

	if window != nil {
		window.Close()
	}
	if server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("callback server shutdown error: %w", err)
	}
	return <-errChan
}

// Track registers the window the launcher is about to open. A previously
// tracked window is closed. The window closes itself after the abandon
// timeout if the callback never arrives.
func (s *CallbackServer) Track() Window {
	w := &trackedWindow{}
	if s.cfg.AbandonTimeout > 0 {
		timer := s.clock.AfterFunc(s.cfg.AbandonTimeout, w.Close)
		w.mu.Lock()
		w.timer = timer
		w.mu.Unlock()
	}

	s.mu.Lock()
	prev := s.window
	s.window = w
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return w
}

// claim hands the tracked window to a callback request. Only an open
// window counts as an opener reference.
func (s *CallbackServer) claim() *trackedWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.window
	s.window = nil
	if w == nil || w.Closed() {
		return nil
	}
	return w
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	params := ParseParams(r.URL.Query())
	window := s.claim()

	var opener Poster
	var closeSelf func()
	if window != nil {
		opener = s.inbox
		closeSelf = window.Close
	}

	// the page's origin is whatever host the browser reached it through;
	// the inbox drops anything that did not arrive via the callback address
	child := NewChild(requestOrigin(r), s.cfg.DeliveryGrace, s.clock, closeSelf)
	outcome := child.Complete(params, opener)
	s.log.Debug("callback completed",
		zap.String("origin", requestOrigin(r)),
		zap.Bool("success", params.Success),
		zap.Bool("delivered", outcome.Delivered),
		zap.String("redirect", outcome.Redirect),
	)

	if !outcome.Delivered {
		http.Redirect(w, r, outcome.Redirect, http.StatusFound)
		return
	}
	s.renderPage(w, r, http.StatusOK, page{
		Title: "Processing...",
		Body:  "Please wait while we complete the connection. This window will close by itself.",
	})
}

func requestOrigin(r *http.Request) string {
	return "http://" + strings.ToLower(r.Host)
}

func (s *CallbackServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, page{
		Title: "TikTok account connected",
		Body:  "You can close this window and return to the terminal.",
	})
}

func (s *CallbackServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("error")
	if reason == "" {
		s.renderPage(w, r, http.StatusOK, page{
			Title: "Connect your TikTok account",
			Body:  "Run `postsiva tiktok connect` to start.",
		})
		return
	}
	s.renderPage(w, r, http.StatusOK, page{
		Title: "Connection failed",
		Body:  reason,
	})
}

func (s *CallbackServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status": "ok",
		"origin": s.cfg.Origin(),
	})
}

type page struct {
	Title string
	Body  string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h3>{{.Title}}</h3>
<p>{{.Body}}</p>
</body>
</html>
`))

func (s *CallbackServer) renderPage(w http.ResponseWriter, r *http.Request, status int, p page) {
	var buf strings.Builder
	if err := pageTemplate.Execute(&buf, p); err != nil {
		s.log.Error("failed to render page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	render.Status(r, status)
	render.HTML(w, r, buf.String())
}

// trackedWindow is a browser tab as far as the callback server can tell:
// it counts as open until the callback closed it, the abandon timeout
// passed or the server stopped.
type trackedWindow struct {
	mu     sync.Mutex
	closed bool
	timer  Stopper
}

func (w *trackedWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *trackedWindow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
}
