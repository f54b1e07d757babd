package handshake

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCallbackFixture(t *testing.T) (*CallbackServer, *Inbox, *manualClock, *httptest.Server) {
	t.Helper()
	cfg := testOAuthConfig()
	cfg.AbandonTimeout = time.Minute
	inbox := NewInbox(cfg.Origin())
	clock := newManualClock()
	server := NewCallbackServer(CallbackServerParams{Config: cfg, Inbox: inbox, Clock: clock})

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, inbox, clock, ts
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}

// callbackAddr is the host the browser uses for testOAuthConfig
const callbackAddr = "127.0.0.1:8765"

// getCallback requests path on ts as if the browser had reached it via host
func getCallback(t *testing.T, ts *httptest.Server, path, host string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	req.Host = host
	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestCallbackServer_DeliversToTrackedWindow(t *testing.T) {
	server, inbox, clock, ts := newCallbackFixture(t)
	var got []Message
	defer inbox.Listen(func(msg Message) { got = append(got, msg) })()

	window := server.Track()
	resp := getCallback(t, ts, "/auth/callback?success=true", callbackAddr)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Processing...")
	assert.Equal(t, []Message{{Type: MessageType, Success: true}}, got)

	assert.False(t, window.Closed(), "window stays open during the grace period")
	clock.Advance(time.Second)
	assert.True(t, window.Closed())
}

func TestCallbackServer_RedirectsWithoutWindow(t *testing.T) {
	_, inbox, _, ts := newCallbackFixture(t)
	calls := 0
	defer inbox.Listen(func(Message) { calls++ })()

	resp := getCallback(t, ts, "/auth/callback?success=false&message=Token+expired", callbackAddr)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/connect?error=Token+expired", resp.Header.Get("Location"))
	assert.Zero(t, calls)
}

func TestCallbackServer_AbandonedWindowIsNotAnOpener(t *testing.T) {
	server, inbox, clock, ts := newCallbackFixture(t)
	calls := 0
	defer inbox.Listen(func(Message) { calls++ })()

	window := server.Track()
	clock.Advance(time.Minute)
	require.True(t, window.Closed())

	resp := getCallback(t, ts, "/auth/callback?success=true", callbackAddr)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, DashboardPath, resp.Header.Get("Location"))
	assert.Zero(t, calls)
}

func TestCallbackServer_ForeignHostIsNotDelivered(t *testing.T) {
	for _, host := range []string{"localhost:8765", "evil.example.com", "127.0.0.1:9999"} {
		t.Run(host, func(t *testing.T) {
			server, inbox, clock, ts := newCallbackFixture(t)
			calls := 0
			defer inbox.Listen(func(Message) { calls++ })()

			window := server.Track()
			resp := getCallback(t, ts, "/auth/callback?success=true", host)
			resp.Body.Close()

			assert.Zero(t, calls, "message from %s must be dropped", host)
			clock.Advance(time.Second)
			assert.True(t, window.Closed())
		})
	}
}

func TestCallbackServer_HostMatchIgnoresCase(t *testing.T) {
	cfg := testOAuthConfig()
	cfg.CallbackHost = "localhost"
	inbox := NewInbox(cfg.Origin())
	server := NewCallbackServer(CallbackServerParams{Config: cfg, Inbox: inbox, Clock: newManualClock()})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	var got []Message
	defer inbox.Listen(func(msg Message) { got = append(got, msg) })()

	server.Track()
	resp := getCallback(t, ts, "/auth/callback?success=true", "LocalHost:8765")
	resp.Body.Close()
	assert.Equal(t, []Message{{Type: MessageType, Success: true}}, got)
}

func TestCallbackServer_TrackClosesPrevious(t *testing.T) {
	server, _, clock, _ := newCallbackFixture(t)
	first := server.Track()
	second := server.Track()

	assert.True(t, first.Closed())
	assert.False(t, second.Closed())

	second.Close()
	assert.Zero(t, clock.Pending(), "closing stops the abandon timer")
}

func TestCallbackServer_ConnectPageEscapesReason(t *testing.T) {
	_, _, _, ts := newCallbackFixture(t)

	resp, err := http.Get(ts.URL + "/auth/connect?error=" + "%3Cscript%3Ealert(1)%3C%2Fscript%3E")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Connection failed")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<script>")
}

func TestCallbackServer_Health(t *testing.T) {
	_, _, _, ts := newCallbackFixture(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "ok", "origin": "http://127.0.0.1:8765"}, body)
}

func TestCallbackServer_StartStop(t *testing.T) {
	cfg := testOAuthConfig()
	cfg.CallbackPort = freePort(t)
	server := NewCallbackServer(CallbackServerParams{Config: cfg, Inbox: NewInbox(cfg.Origin()), Clock: newManualClock()})

	require.NoError(t, server.Start())
	require.NoError(t, server.Start())
	assert.NotEmpty(t, server.Addr())

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	window := server.Track()
	require.NoError(t, server.Stop(context.Background()))
	assert.True(t, window.Closed())
	assert.Empty(t, server.Addr())
	require.NoError(t, server.Stop(context.Background()))
}

func TestBrowserLauncher_Open(t *testing.T) {
	cfg := testOAuthConfig()
	cfg.CallbackPort = freePort(t)
	server := NewCallbackServer(CallbackServerParams{Config: cfg, Inbox: NewInbox(cfg.Origin()), Clock: newManualClock()})
	t.Cleanup(func() { _ = server.Stop(context.Background()) })

	var opened []string
	launcher := NewBrowserLauncher(server)
	launcher.open = func(_ context.Context, url string) error {
		opened = append(opened, url)
		return nil
	}

	window, err := launcher.Open(context.Background(), authURL, PopupRect(cfg))
	require.NoError(t, err)
	assert.False(t, window.Closed())
	assert.Equal(t, []string{authURL}, opened)
	assert.NotEmpty(t, server.Addr())

	launcher.open = func(context.Context, string) error { return io.ErrClosedPipe }
	window, err = launcher.Open(context.Background(), authURL, PopupRect(cfg))
	require.Error(t, err)
	assert.Nil(t, window)
}

func freePort(t *testing.T) int {
	t.Helper()
	ts := httptest.NewServer(http.NotFoundHandler())
	port := ts.Listener.Addr().(*net.TCPAddr).Port
	ts.Close()
	return port
}
