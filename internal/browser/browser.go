// Package browser owns the lifecycle of the one shared headless browser.
// The scheduler is the sole mutator: it starts the browser lazily, tears it
// down when idle, and restarts it periodically. Adapters only borrow
// sessions for the duration of their own run and never close anything.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Session is a borrowed handle on the running browser. It is valid until
// the manager tears the browser down.
type Session struct {
	ctx context.Context
}

// Context returns the chromedp context actions run against.
func (s *Session) Context() context.Context {
	return s.ctx
}

// NewDetachedSession returns a session not backed by a browser, for
// adapters that do plain HTTP work and for tests.
func NewDetachedSession(ctx context.Context) *Session {
	return &Session{ctx: ctx}
}

// Config controls how the browser process is launched.
type Config struct {
	Headless  bool
	UserAgent string
}

// Manager starts and stops the shared browser process.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	startedAt   time.Time
}

func NewManager(cfg Config, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: logger}
}

// Acquire returns a session against the running browser, starting it first
// if needed.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browserCtx == nil {
		if err := m.startLocked(ctx); err != nil {
			return nil, err
		}
	}
	return &Session{ctx: m.browserCtx}, nil
}

func (m *Manager) startLocked(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Launch the process now so a broken environment surfaces here instead
	// of in the first adapter run.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}

	m.allocCancel = allocCancel
	m.browserCtx = browserCtx
	m.cancel = cancel
	m.startedAt = time.Now()
	m.logger.Info("browser started", "headless", m.cfg.Headless)
	return nil
}

// Stop tears the browser down and releases its memory. Stopping an already
// stopped manager is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browserCtx == nil {
		return
	}

	m.cancel()
	m.allocCancel()
	m.browserCtx = nil
	m.cancel = nil
	m.allocCancel = nil
	m.logger.Info("browser stopped", "uptime", time.Since(m.startedAt).Round(time.Second))
	m.startedAt = time.Time{}
}

// Running reports whether a browser process is currently live.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browserCtx != nil
}

// Uptime returns how long the current browser process has been alive, zero
// when none is running.
func (m *Manager) Uptime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browserCtx == nil {
		return 0
	}
	return time.Since(m.startedAt)
}

// IsGone reports whether err indicates the browser became unusable and the
// session cannot be trusted for further work.
func IsGone(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"disconnected", "closed", "terminated", "context canceled", "websocket"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
