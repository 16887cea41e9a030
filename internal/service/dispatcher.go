package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
	"github.com/kursadbilgin/bulk-dispatch/internal/observability"
	"github.com/kursadbilgin/bulk-dispatch/internal/provider"
	"github.com/kursadbilgin/bulk-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/bulk-dispatch/internal/sheet"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 2 * time.Second
	defaultMessageDelay = 10 * time.Second
)

// Options tunes delivery pacing. Zero values fall back to the defaults;
// a negative RetryBackoff or MessageDelay disables that wait.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	MessageDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	if o.MessageDelay == 0 {
		o.MessageDelay = defaultMessageDelay
	}
	return o
}

// RunSource names the uploaded files a background run reads from.
type RunSource struct {
	RecipientsPath string
	AttachmentPath string
}

// Dispatcher delivers one batch at a time through a single transport.
type Dispatcher struct {
	transport     provider.Transport
	transportName string
	reader        sheet.Reader
	limiter       ratelimit.RateLimiter
	reporter      Reporter
	logger        *zap.Logger
	opts          Options

	tracker *runTracker
	active  atomic.Bool

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopping bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

func NewDispatcher(
	transport provider.Transport,
	reader sheet.Reader,
	limiter ratelimit.RateLimiter,
	opts Options,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if reader == nil {
		return nil, fmt.Errorf("recipient reader is required")
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		transport:     transport,
		transportName: provider.NameOf(transport),
		reader:        reader,
		limiter:       limiter,
		reporter:      Reporters{},
		logger:        logger,
		opts:          opts.withDefaults(),
		now:           time.Now,
		sleep:         sleepWithContext,
		newID:         uuid.NewString,
	}
	d.tracker = newRunTracker(func() time.Time { return d.now() })
	return d, nil
}

// SetReporter replaces the progress reporter. It must be called before the
// first run starts.
func (d *Dispatcher) SetReporter(reporter Reporter) {
	if reporter == nil {
		reporter = Reporters{}
	}
	d.reporter = reporter
}

// LoadRecipients reads the recipient sheet at path.
func (d *Dispatcher) LoadRecipients(ctx context.Context, path string) ([]domain.Recipient, error) {
	recipients, _, err := d.loadRecipients(ctx, path)
	return recipients, err
}

func (d *Dispatcher) loadRecipients(ctx context.Context, path string) ([]domain.Recipient, columnChoice, error) {
	table, err := d.reader.Read(ctx, path)
	if err != nil {
		return nil, columnChoice{}, err
	}
	return recipientsFromTable(table)
}

// Start claims the active slot and processes the sheet in a background
// worker. It returns the new run id without waiting for delivery.
func (d *Dispatcher) Start(ctx context.Context, source RunSource) (string, error) {
	if strings.TrimSpace(source.RecipientsPath) == "" {
		return "", fmt.Errorf("%w: recipients file is required", domain.ErrValidation)
	}

	runID := d.newID()

	// The worker outlives the request that started it.
	runCtx, cancel := context.WithCancel(observability.WithRunID(context.WithoutCancel(ctx), runID))
	if err := d.claim(runID, cancel); err != nil {
		cancel()
		return "", err
	}

	d.reporter.RunStarted(runCtx, RunInfo{
		RunID:          runID,
		Transport:      d.transportName,
		RecipientsFile: source.RecipientsPath,
		AttachmentFile: source.AttachmentPath,
		StartedAt:      d.tracker.snapshot().StartedAt,
	})

	go func() {
		defer d.release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("dispatcher worker panic: %v", r)
				d.logger.Error("dispatcher worker panicked", zap.String("runId", runID), zap.Any("panic", r))
				d.tracker.logf("Error: %v", err)
				d.finish(runCtx, domain.RunStatusFailed, err)
			}
		}()

		d.tracker.logf("Reading recipients from %s", source.RecipientsPath)
		recipients, choice, err := d.loadRecipients(runCtx, source.RecipientsPath)
		if err != nil {
			if runCtx.Err() != nil {
				d.tracker.logf("Sending canceled")
				d.finish(runCtx, domain.RunStatusCanceled, runCtx.Err())
				return
			}
			d.logger.Error("failed to load recipients", zap.String("runId", runID), zap.Error(err))
			d.tracker.logf("Error reading recipients file: %v", err)
			d.finish(runCtx, domain.RunStatusFailed, err)
			return
		}
		if choice.fallback != "" {
			d.tracker.logf("%s", choice.fallback)
		}

		if _, err := d.execute(runCtx, runID, recipients, source.AttachmentPath); err != nil {
			d.logger.Warn("dispatch run ended with error", zap.String("runId", runID), zap.Error(err))
		}
	}()

	return runID, nil
}

// Run processes recipients synchronously under runID. It claims the same
// active slot as Start.
func (d *Dispatcher) Run(ctx context.Context, runID string, recipients []domain.Recipient, attachment string) (domain.BatchResult, error) {
	if strings.TrimSpace(runID) == "" {
		runID = d.newID()
	}

	runCtx, cancel := context.WithCancel(observability.WithRunID(ctx, runID))
	defer cancel()
	if err := d.claim(runID, cancel); err != nil {
		return domain.BatchResult{}, err
	}
	defer d.release()

	d.reporter.RunStarted(runCtx, RunInfo{
		RunID:          runID,
		Transport:      d.transportName,
		AttachmentFile: attachment,
		StartedAt:      d.tracker.snapshot().StartedAt,
	})

	return d.execute(runCtx, runID, recipients, attachment)
}

func (d *Dispatcher) execute(ctx context.Context, runID string, recipients []domain.Recipient, attachment string) (domain.BatchResult, error) {
	logger := observability.WithContextLogger(d.logger, ctx)
	total := len(recipients)
	d.tracker.setTotal(total)
	d.tracker.logf("Found %d recipients", total)
	logger.Info("dispatch run started", zap.Int("total", total), zap.String("transport", d.transportName))

	d.tracker.logf("Initializing %s transport", d.transportName)
	if err := d.transport.Initialize(ctx); err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrInitialization, err)
		logger.Error("transport initialization failed", zap.Error(err))
		d.tracker.logf("Error: %v", err)
		return d.finish(ctx, domain.RunStatusFailed, err), err
	}
	defer func() {
		if err := d.transport.Close(); err != nil {
			logger.Warn("failed to close transport", zap.Error(err))
		}
	}()

	authenticated, err := d.transport.Authenticate(ctx)
	if err != nil || !authenticated {
		if err == nil {
			err = fmt.Errorf("%w: session is not authenticated", domain.ErrInitialization)
		} else {
			err = fmt.Errorf("%w: %v", domain.ErrInitialization, err)
		}
		logger.Error("transport authentication failed", zap.Error(err))
		d.tracker.logf("Error: %v", err)
		return d.finish(ctx, domain.RunStatusFailed, err), err
	}
	d.tracker.logf("Session authenticated")

	for i, recipient := range recipients {
		index := i + 1
		if ctx.Err() != nil {
			break
		}

		d.tracker.logf("Processing recipient %d/%d: %s", index, total, recipient.Contact)
		sent, attempts, sendErr := d.deliver(ctx, runID, index, recipient, attachment)
		if ctx.Err() != nil && !sent {
			break
		}

		d.tracker.recordOutcome(index, sent)
		if sent {
			d.tracker.logf("✓ Message sent successfully to %s", recipient.Contact)
		} else {
			d.tracker.logf("✗ Failed to send message to %s after %d attempts", recipient.Contact, attempts)
		}
		_, success, failure := d.tracker.counts()
		d.reporter.RecipientFinished(ctx, RecipientReport{
			RunID:          runID,
			Transport:      d.transportName,
			RecipientIndex: index,
			Contact:        recipient.Contact,
			Sent:           sent,
			Attempts:       attempts,
			Err:            sendErr,
			At:             d.now(),
			Total:          total,
			SuccessCount:   success,
			FailureCount:   failure,
		})

		if d.opts.MessageDelay > 0 {
			if err := d.sleep(ctx, d.opts.MessageDelay); err != nil {
				break
			}
		}
	}

	if err := ctx.Err(); err != nil {
		d.tracker.logf("Sending canceled")
		logger.Info("dispatch run canceled")
		return d.finish(ctx, domain.RunStatusCanceled, err), err
	}

	state := d.tracker.snapshot()
	elapsed := d.now().Sub(state.StartedAt)
	d.tracker.logf("Completed in %s: %d sent, %d failed", elapsed.Round(time.Second), state.SuccessCount, state.FailureCount)
	logger.Info("dispatch run completed",
		zap.Int("success", state.SuccessCount),
		zap.Int("failure", state.FailureCount),
		zap.Duration("duration", elapsed),
	)
	return d.finish(ctx, domain.RunStatusCompleted, nil), nil
}

// deliver tries one recipient up to MaxRetries times. It returns whether the
// message went out and how many attempts were made.
func (d *Dispatcher) deliver(ctx context.Context, runID string, index int, recipient domain.Recipient, attachment string) (bool, int, error) {
	if err := recipient.Validate(); err != nil {
		d.tracker.logf("Invalid contact on row %d, skipping", recipient.Row)
		return false, 0, err
	}

	logger := observability.WithRecipient(observability.WithContextLogger(d.logger, ctx), index, recipient.Contact)
	maxRetries := d.opts.MaxRetries
	var lastErr error
	// The limiter paces recipients; retries of the same recipient are paced
	// by RetryBackoff alone.
	if err := d.limiter.Wait(ctx, d.transportName); err != nil {
		if ctx.Err() != nil {
			return false, 0, ctx.Err()
		}
		logger.Warn("rate limiter wait failed", zap.String("transport", d.transportName), zap.Error(err))
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {

		started := d.now()
		sent, err := d.transport.SendOne(ctx, recipient.Contact, recipient.Message, attachment)
		if err == nil && !sent {
			err = &provider.DeliveryError{
				Contact:   recipient.Contact,
				Reason:    provider.ReasonNotSent,
				Message:   "transport reported message as not sent",
				Transient: true,
			}
		}

		d.reporter.AttemptFinished(ctx, AttemptReport{
			RunID:          runID,
			Transport:      d.transportName,
			RecipientIndex: index,
			Contact:        recipient.Contact,
			Attempt:        attempt,
			Sent:           err == nil,
			Err:            err,
			Duration:       d.now().Sub(started),
			At:             d.now(),
		})
		if err == nil {
			return true, attempt, nil
		}

		lastErr = err
		logger.Debug("delivery attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		d.tracker.logf("Attempt %d/%d failed for %s: %v", attempt, maxRetries, recipient.Contact, err)
		if ctx.Err() != nil {
			return false, attempt, ctx.Err()
		}
		if !provider.IsTransient(err) {
			return false, attempt, err
		}

		if attempt < maxRetries {
			d.tracker.logf("Retry %d for %s", attempt, recipient.Contact)
			if d.opts.RetryBackoff > 0 {
				if err := d.sleep(ctx, d.opts.RetryBackoff); err != nil {
					return false, attempt, err
				}
			}
		}
	}

	return false, maxRetries, lastErr
}

// Cancel asks the active run to stop after the current wait or attempt.
func (d *Dispatcher) Cancel() error {
	d.mu.Lock()
	cancel := d.cancel
	active := d.active.Load()
	d.mu.Unlock()

	if !active || cancel == nil {
		return domain.ErrNotActive
	}
	d.tracker.logf("Cancellation requested")
	cancel()
	return nil
}

// Progress returns a copy of the live run state.
func (d *Dispatcher) Progress() domain.RunState {
	return d.tracker.snapshot()
}

// FinalStatus returns the last run's result once no run is active.
func (d *Dispatcher) FinalStatus() (domain.BatchResult, bool) {
	state := d.tracker.snapshot()
	if state.IsActive || !state.Status.IsTerminal() {
		return domain.BatchResult{}, false
	}
	return state.Result(), true
}

// IsActive reports whether a run holds the active slot.
func (d *Dispatcher) IsActive() bool {
	return d.active.Load()
}

// Shutdown cancels the active run, refuses new ones and waits for the
// worker to exit.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.stopping = true
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		d.tracker.logf("Cancellation requested")
		cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// claim takes the active slot. The cancel func and the worker count are
// registered under the same lock, so Cancel and Shutdown never observe a
// claimed slot without them.
func (d *Dispatcher) claim(runID string, cancel context.CancelFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopping {
		return domain.ErrShuttingDown
	}
	if !d.active.CompareAndSwap(false, true) {
		return domain.ErrAlreadyActive
	}
	d.tracker.begin(runID)
	d.cancel = cancel
	d.wg.Add(1)
	return nil
}

func (d *Dispatcher) release() {
	d.mu.Lock()
	d.cancel = nil
	d.active.Store(false)
	d.mu.Unlock()

	d.wg.Done()
}

func (d *Dispatcher) finish(ctx context.Context, status domain.RunStatus, err error) domain.BatchResult {
	state := d.tracker.finish(status)
	d.reporter.RunFinished(context.WithoutCancel(ctx), RunReport{
		Transport: d.transportName,
		State:     state,
		Err:       err,
	})
	return state.Result()
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
