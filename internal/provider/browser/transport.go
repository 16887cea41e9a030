package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/kursadbilgin/bulk-dispatch/internal/provider"
	"go.uber.org/zap"
)

var errProbeTimeout = errors.New("element did not appear in time")

// Transport sends messages by driving WhatsApp Web in a local Chrome.
// One Chrome process and one tab live between Initialize and Close.
type Transport struct {
	cfg    Config
	logger *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

func NewTransport(cfg Config, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

func (t *Transport) Name() string {
	return "browser"
}

// Initialize launches Chrome with the configured profile.
func (t *Transport) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tabCtx != nil && t.tabCtx.Err() == nil {
		return nil
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range t.cfg.chromeFlags() {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if path := strings.TrimSpace(t.cfg.ChromePath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	if dir := t.cfg.userDataDir(); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chrome user data dir: %w", err)
		}
		opts = append(opts, chromedp.UserDataDir(dir))
		t.logger.Info("using chrome profile", zap.String("userDataDir", dir), zap.String("profile", t.cfg.Profile))
	}

	// The browser outlives single calls; call contexts only bound each step.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := ctx.Err(); err != nil {
		tabCancel()
		allocCancel()
		return err
	}

	// The first Run allocates the browser; a deadline here would kill Chrome with it.
	if startErr := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); startErr != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("start chrome: %w", startErr)
	}

	t.allocCancel = allocCancel
	t.tabCtx = tabCtx
	t.tabCancel = tabCancel

	t.logger.Info("chrome initialized", zap.Bool("headless", t.cfg.Headless))
	return nil
}

// Authenticate reuses an existing session when the chat list shows up within
// the session check window, otherwise waits for a QR code login.
func (t *Transport) Authenticate(ctx context.Context) (bool, error) {
	tab, err := t.tab()
	if err != nil {
		return false, err
	}

	if err := navigate(ctx, tab, t.cfg.BaseURL); err != nil {
		return false, fmt.Errorf("open %s: %w", t.cfg.BaseURL, err)
	}

	if _, err := waitForAny(ctx, tab, t.cfg.SessionCheckTimeout, xpathChatList); err == nil {
		t.logger.Info("using existing whatsapp session")
		return true, nil
	} else if !errors.Is(err, errProbeTimeout) {
		return false, err
	}

	t.logger.Info("session not found, waiting for qr code scan", zap.Duration("timeout", t.cfg.LoginTimeout))
	if _, err := waitForAny(ctx, tab, t.cfg.LoginTimeout, xpathChatList); err != nil {
		if errors.Is(err, errProbeTimeout) {
			t.logger.Warn("whatsapp login timed out")
			return false, nil
		}
		return false, err
	}

	t.logger.Info("login successful via qr scan")
	return true, nil
}

func (t *Transport) SendOne(ctx context.Context, contact, message, attachment string) (bool, error) {
	tab, err := t.tab()
	if err != nil {
		return false, err
	}

	logger := t.logger.With(zap.String("contact", contact))

	if err := navigate(ctx, tab, chatURL(t.cfg.BaseURL, contact)); err != nil {
		return false, &provider.DeliveryError{
			Contact:   contact,
			Reason:    provider.ReasonUnavailable,
			Message:   "failed to open chat",
			Transient: true,
			Cause:     err,
		}
	}

	hit, err := waitForAny(ctx, tab, chatProbeTimeout, xpathComposeBox, xpathNotRegistered)
	switch {
	case errors.Is(err, errProbeTimeout):
		logger.Warn("chat loading timed out, proceeding anyway")
	case err != nil:
		return false, err
	}

	if hit == 2 || present(ctx, tab, xpathNotRegistered) {
		return false, &provider.DeliveryError{
			Contact: contact,
			Reason:  provider.ReasonNotRegistered,
			Message: "contact is not registered on WhatsApp",
		}
	}

	if _, err := waitForAny(ctx, tab, t.cfg.ChatLoadTimeout, xpathComposeBox); err != nil {
		if errors.Is(err, errProbeTimeout) {
			return false, &provider.DeliveryError{
				Contact:   contact,
				Reason:    provider.ReasonChatTimeout,
				Message:   "message input did not load",
				Transient: true,
			}
		}
		return false, err
	}

	switch {
	case attachment != "":
		if err := t.sendAttachment(ctx, tab, contact, attachment, message); err != nil {
			return false, err
		}
	case message != "":
		if err := sendText(ctx, tab, message); err != nil {
			return false, &provider.DeliveryError{
				Contact:   contact,
				Reason:    provider.ReasonSession,
				Message:   "failed to type message",
				Transient: true,
				Cause:     err,
			}
		}
	}

	if _, err := waitForAny(ctx, tab, deliveredTimeout, xpathDeliveredTick); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		logger.Warn("message send confirmation not detected")
	}

	return true, nil
}

func (t *Transport) sendAttachment(ctx context.Context, tab context.Context, contact, path, caption string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve attachment path: %w", err)
	}

	err = runBounded(ctx, tab, controlTimeout, func(runCtx context.Context) error {
		return chromedp.Run(runCtx,
			chromedp.Click(xpathAttachButton, chromedp.BySearch, chromedp.NodeVisible),
			chromedp.SetUploadFiles(xpathFileInput, []string{absPath}, chromedp.BySearch),
		)
	})
	if err != nil {
		return &provider.DeliveryError{
			Contact:   contact,
			Reason:    provider.ReasonSession,
			Message:   "failed to attach file",
			Transient: true,
			Cause:     err,
		}
	}

	if _, err := waitForAny(ctx, tab, t.cfg.UploadTimeout, xpathSendButton); err != nil {
		if !errors.Is(err, errProbeTimeout) {
			return err
		}
		closeErr := runBounded(ctx, tab, controlTimeout, func(runCtx context.Context) error {
			return chromedp.Run(runCtx, chromedp.Click(xpathCloseButton, chromedp.BySearch))
		})
		if closeErr != nil {
			t.logger.Warn("failed to close attachment preview", zap.Error(closeErr))
		}
		return &provider.DeliveryError{
			Contact:   contact,
			Reason:    provider.ReasonUploadTimeout,
			Message:   "attachment upload took too long",
			Transient: true,
		}
	}

	return runBounded(ctx, tab, controlTimeout, func(runCtx context.Context) error {
		actions := make([]chromedp.Action, 0, 2)
		if caption != "" && isCaptionable(absPath) {
			actions = append(actions, chromedp.SendKeys(xpathCaptionBox, caption, chromedp.BySearch))
		}
		actions = append(actions, chromedp.Click(xpathSendButton, chromedp.BySearch))
		if err := chromedp.Run(runCtx, actions...); err != nil {
			return &provider.DeliveryError{
				Contact:   contact,
				Reason:    provider.ReasonSession,
				Message:   "failed to send attachment",
				Transient: true,
				Cause:     err,
			}
		}
		return nil
	})
}

// Close shuts the tab and the Chrome process down.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tabCancel != nil {
		t.tabCancel()
		t.tabCancel = nil
		t.tabCtx = nil
	}
	if t.allocCancel != nil {
		t.allocCancel()
		t.allocCancel = nil
	}
	return nil
}

func (t *Transport) tab() (context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tabCtx == nil || t.tabCtx.Err() != nil {
		return nil, &provider.DeliveryError{
			Reason:  provider.ReasonSession,
			Message: "browser is not initialized",
		}
	}
	return t.tabCtx, nil
}

// sendText types message line by line; Shift+Enter keeps lines in one message.
func sendText(ctx context.Context, tab context.Context, message string) error {
	lines := strings.Split(message, "\n")

	actions := []chromedp.Action{
		chromedp.Click(xpathComposeBox, chromedp.BySearch, chromedp.NodeVisible),
		chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
		chromedp.KeyEvent(kb.Delete),
	}
	for _, line := range lines[:len(lines)-1] {
		if line != "" {
			actions = append(actions, chromedp.SendKeys(xpathComposeBox, line, chromedp.BySearch))
		}
		actions = append(actions, chromedp.KeyEvent(kb.Enter, chromedp.KeyModifiers(input.ModifierShift)))
	}
	if last := lines[len(lines)-1]; last != "" {
		actions = append(actions, chromedp.SendKeys(xpathComposeBox, last, chromedp.BySearch))
	}
	actions = append(actions, chromedp.KeyEvent(kb.Enter))

	return runBounded(ctx, tab, controlTimeout+time.Duration(len(message))*50*time.Millisecond, func(runCtx context.Context) error {
		return chromedp.Run(runCtx, actions...)
	})
}

func navigate(ctx context.Context, tab context.Context, target string) error {
	return runBounded(ctx, tab, defaultNavTimeout, func(runCtx context.Context) error {
		return chromedp.Run(runCtx, chromedp.Navigate(target))
	})
}

// waitForAny polls until one of xpaths matches and returns its 1-based index.
func waitForAny(ctx context.Context, tab context.Context, timeout time.Duration, xpaths ...string) (int, error) {
	script := probeScript(xpaths...)
	deadline := time.Now().Add(timeout)

	for {
		var hit int
		err := runBounded(ctx, tab, controlTimeout, func(runCtx context.Context) error {
			return chromedp.Run(runCtx, chromedp.Evaluate(script, &hit))
		})
		if err == nil && hit > 0 {
			return hit, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		if tab.Err() != nil {
			return 0, fmt.Errorf("browser closed: %w", tab.Err())
		}
		if !time.Now().Before(deadline) {
			return 0, errProbeTimeout
		}

		timer := time.NewTimer(probePollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}
}

func present(ctx context.Context, tab context.Context, xpath string) bool {
	var hit int
	err := runBounded(ctx, tab, controlTimeout, func(runCtx context.Context) error {
		return chromedp.Run(runCtx, chromedp.Evaluate(probeScript(xpath), &hit))
	})
	return err == nil && hit > 0
}

// runBounded runs fn on the tab context, canceled by either the call context
// or the timeout.
func runBounded(callCtx context.Context, tab context.Context, timeout time.Duration, fn func(context.Context) error) error {
	runCtx, cancel := context.WithTimeout(tab, timeout)
	defer cancel()

	if callCtx != nil {
		if done := callCtx.Done(); done != nil {
			go func() {
				select {
				case <-done:
					cancel()
				case <-runCtx.Done():
				}
			}()
		}
	}

	err := fn(runCtx)
	if err != nil && callCtx != nil && callCtx.Err() != nil {
		return callCtx.Err()
	}
	return err
}
