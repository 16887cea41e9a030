package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
	"github.com/kursadbilgin/bulk-dispatch/internal/observability"
	"github.com/kursadbilgin/bulk-dispatch/internal/provider"
	"github.com/kursadbilgin/bulk-dispatch/internal/queue"
	"github.com/kursadbilgin/bulk-dispatch/internal/repository"
	"go.uber.org/zap"
)

// RunInfo describes a run as it starts.
type RunInfo struct {
	RunID          string
	Transport      string
	RecipientsFile string
	AttachmentFile string
	StartedAt      time.Time
}

// AttemptReport is the outcome of a single delivery attempt.
type AttemptReport struct {
	RunID          string
	Transport      string
	RecipientIndex int
	Contact        string
	Attempt        int
	Sent           bool
	Err            error
	Duration       time.Duration
	At             time.Time
}

// RecipientReport is the final outcome for one recipient.
type RecipientReport struct {
	RunID          string
	Transport      string
	RecipientIndex int
	Contact        string
	Sent           bool
	Attempts       int
	Err            error
	At             time.Time

	// Running totals after this recipient.
	Total        int
	SuccessCount int
	FailureCount int
}

// RunReport is the frozen outcome of a run.
type RunReport struct {
	Transport string
	State     domain.RunState
	Err       error
}

// Reporter observes dispatcher progress. Implementations must not block for
// long; errors are theirs to log.
type Reporter interface {
	RunStarted(ctx context.Context, info RunInfo)
	AttemptFinished(ctx context.Context, report AttemptReport)
	RecipientFinished(ctx context.Context, report RecipientReport)
	RunFinished(ctx context.Context, report RunReport)
}

// Reporters fans every event out to each reporter in order.
type Reporters []Reporter

func (rs Reporters) RunStarted(ctx context.Context, info RunInfo) {
	for _, r := range rs {
		r.RunStarted(ctx, info)
	}
}

func (rs Reporters) AttemptFinished(ctx context.Context, report AttemptReport) {
	for _, r := range rs {
		r.AttemptFinished(ctx, report)
	}
}

func (rs Reporters) RecipientFinished(ctx context.Context, report RecipientReport) {
	for _, r := range rs {
		r.RecipientFinished(ctx, report)
	}
}

func (rs Reporters) RunFinished(ctx context.Context, report RunReport) {
	for _, r := range rs {
		r.RunFinished(ctx, report)
	}
}

// MetricsReporter feeds Prometheus collectors.
type MetricsReporter struct {
	metrics *observability.Metrics
}

func NewMetricsReporter(metrics *observability.Metrics) *MetricsReporter {
	return &MetricsReporter{metrics: metrics}
}

func (r *MetricsReporter) RunStarted(ctx context.Context, info RunInfo) {
	r.metrics.SetRunActive(true)
}

func (r *MetricsReporter) AttemptFinished(ctx context.Context, report AttemptReport) {
	r.metrics.ObserveAttemptDuration(report.Transport, report.Duration)
	if report.Attempt > 1 {
		r.metrics.IncRetry(report.Transport)
	}
}

func (r *MetricsReporter) RecipientFinished(ctx context.Context, report RecipientReport) {
	if report.Sent {
		r.metrics.IncMessageSent(report.Transport)
		return
	}
	reason := provider.ReasonOf(report.Err)
	if reason == "" {
		reason = "exhausted"
	}
	r.metrics.IncMessageFailed(report.Transport, reason)
}

func (r *MetricsReporter) RunFinished(ctx context.Context, report RunReport) {
	r.metrics.SetRunActive(false)
	r.metrics.IncRunFinished(report.State.Status.String())
}

// HistoryReporter persists runs and delivery attempts.
type HistoryReporter struct {
	runs     repository.RunRepository
	attempts repository.AttemptRepository
	logger   *zap.Logger
}

func NewHistoryReporter(runs repository.RunRepository, attempts repository.AttemptRepository, logger *zap.Logger) *HistoryReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryReporter{
		runs:     runs,
		attempts: attempts,
		logger:   logger,
	}
}

func (r *HistoryReporter) RunStarted(ctx context.Context, info RunInfo) {
	run := &domain.Run{
		ID:             info.RunID,
		Status:         domain.RunStatusProcessing,
		RecipientsFile: info.RecipientsFile,
		AttachmentFile: optionalString(info.AttachmentFile),
		StartedAt:      info.StartedAt.UTC(),
	}
	if err := r.runs.Create(ctx, run); err != nil {
		observability.WithContextLogger(r.logger, ctx).Error("failed to persist run", zap.Error(err))
	}
}

func (r *HistoryReporter) AttemptFinished(ctx context.Context, report AttemptReport) {
	outcome := domain.RecipientSent
	if !report.Sent {
		outcome = domain.RecipientFailed
	}

	attempt := &domain.DeliveryAttempt{
		ID:             uuid.NewString(),
		RunID:          report.RunID,
		RecipientIndex: report.RecipientIndex,
		Contact:        report.Contact,
		AttemptNumber:  report.Attempt,
		Outcome:        outcome,
		Error:          errorString(report.Err),
		DurationMillis: report.Duration.Milliseconds(),
		CreatedAt:      report.At.UTC(),
	}
	if err := r.attempts.Create(ctx, attempt); err != nil {
		observability.WithContextLogger(r.logger, ctx).Error("failed to persist delivery attempt",
			zap.Int("recipientIndex", report.RecipientIndex),
			zap.Int("attempt", report.Attempt),
			zap.Error(err),
		)
	}
}

func (r *HistoryReporter) RecipientFinished(ctx context.Context, report RecipientReport) {
	if err := r.runs.UpdateProgress(ctx, report.RunID, report.Total, report.SuccessCount, report.FailureCount); err != nil {
		observability.WithContextLogger(r.logger, ctx).Warn("failed to persist run progress",
			zap.Int("recipientIndex", report.RecipientIndex),
			zap.Error(err),
		)
	}
}

func (r *HistoryReporter) RunFinished(ctx context.Context, report RunReport) {
	state := report.State
	finish := repository.RunFinish{
		Status:       state.Status,
		TotalCount:   state.Total,
		SuccessCount: state.SuccessCount,
		FailureCount: state.FailureCount,
		Error:        errorString(report.Err),
		FinishedAt:   state.FinishedAt.UTC(),
	}
	if err := r.runs.Finish(ctx, state.RunID, finish); err != nil {
		observability.WithContextLogger(r.logger, ctx).Error("failed to persist run result", zap.Error(err))
	}
}

// EventReporter publishes recipient and run events to the broker.
type EventReporter struct {
	publisher queue.Publisher
	logger    *zap.Logger
}

func NewEventReporter(publisher queue.Publisher, logger *zap.Logger) *EventReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventReporter{
		publisher: publisher,
		logger:    logger,
	}
}

// eventPublishTimeout bounds the wait for a broker confirm.
const eventPublishTimeout = 5 * time.Second

func (r *EventReporter) RunStarted(ctx context.Context, info RunInfo) {
	r.publish(ctx, queue.EventMessage{
		Kind:       queue.EventRunStarted,
		RunID:      info.RunID,
		Status:     domain.RunStatusProcessing.String(),
		OccurredAt: info.StartedAt.UTC(),
	})
}

func (r *EventReporter) AttemptFinished(ctx context.Context, report AttemptReport) {}

func (r *EventReporter) RecipientFinished(ctx context.Context, report RecipientReport) {
	status := domain.RecipientSent
	if !report.Sent {
		status = domain.RecipientFailed
	}

	msg := queue.EventMessage{
		Kind:           queue.EventRecipientFinished,
		RunID:          report.RunID,
		Status:         status.String(),
		RecipientIndex: report.RecipientIndex,
		Contact:        report.Contact,
		Attempts:       report.Attempts,
		OccurredAt:     report.At.UTC(),
	}
	if report.Err != nil {
		msg.Error = report.Err.Error()
	}
	r.publish(ctx, msg)
}

func (r *EventReporter) RunFinished(ctx context.Context, report RunReport) {
	state := report.State
	msg := queue.EventMessage{
		Kind:         queue.EventRunFinished,
		RunID:        state.RunID,
		Status:       state.Status.String(),
		Total:        state.Total,
		SuccessCount: state.SuccessCount,
		FailureCount: state.FailureCount,
		OccurredAt:   state.FinishedAt.UTC(),
	}
	if report.Err != nil {
		msg.Error = report.Err.Error()
	}
	r.publish(ctx, msg)
}

func (r *EventReporter) publish(ctx context.Context, msg queue.EventMessage) {
	msg.ID = uuid.NewString()

	publishCtx, cancel := context.WithTimeout(ctx, eventPublishTimeout)
	defer cancel()

	if err := r.publisher.Publish(publishCtx, queue.QueueFor(msg.Kind), msg); err != nil {
		observability.WithContextLogger(r.logger, ctx).Warn("failed to publish dispatch event",
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func errorString(err error) *string {
	if err == nil {
		return nil
	}
	value := err.Error()
	return &value
}
