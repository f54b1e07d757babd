package handshake

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/postsiva/postsiva-cli/internal/logger"
	"go.uber.org/zap"
)

// BrowserLauncher opens authorization URLs in the system browser. The
// returned window is tracked by the callback server, which is started on
// first use.
type BrowserLauncher struct {
	server *CallbackServer
	open   func(ctx context.Context, url string) error
}

func NewBrowserLauncher(server *CallbackServer) *BrowserLauncher {
	return &BrowserLauncher{server: server, open: openBrowser}
}

func (l *BrowserLauncher) Open(ctx context.Context, url string, rect Rect) (Window, error) {
	if err := l.server.Start(); err != nil {
		return nil, err
	}

	window := l.server.Track()
	// the system browser picks its own geometry
	logger.Debug("opening authorization window",
		zap.String("url", url),
		zap.Int("width", rect.Width),
		zap.Int("height", rect.Height),
	)
	if err := l.open(ctx, url); err != nil {
		window.Close()
		return nil, err
	}
	return window, nil
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
