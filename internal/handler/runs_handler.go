package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
	"github.com/kursadbilgin/bulk-dispatch/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

// RunHistory reads persisted runs. It is nil when no database is configured.
type RunHistory interface {
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Run, int64, error)
}

// AttemptHistory reads persisted delivery attempts.
type AttemptHistory interface {
	ListByRunID(ctx context.Context, runID string, filter repository.AttemptFilter) ([]domain.DeliveryAttempt, error)
}

type RunsHandler struct {
	runs     RunHistory
	attempts AttemptHistory
}

func NewRunsHandler(runs RunHistory, attempts AttemptHistory) *RunsHandler {
	return &RunsHandler{runs: runs, attempts: attempts}
}

func RegisterRunRoutes(router fiber.Router, h *RunsHandler) {
	api := router.Group("/api")
	api.Get("/runs", h.ListRuns)
	api.Get("/runs/:id", h.GetRun)
}

type runResponse struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	TotalCount     int        `json:"totalCount"`
	SuccessCount   int        `json:"successCount"`
	FailureCount   int        `json:"failureCount"`
	RecipientsFile string     `json:"recipientsFile"`
	AttachmentFile *string    `json:"attachmentFile,omitempty"`
	Error          *string    `json:"error,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

type attemptResponse struct {
	RecipientIndex int       `json:"recipientIndex"`
	Contact        string    `json:"contact"`
	AttemptNumber  int       `json:"attemptNumber"`
	Outcome        string    `json:"outcome"`
	Error          *string   `json:"error,omitempty"`
	DurationMillis int64     `json:"durationMs"`
	CreatedAt      time.Time `json:"createdAt"`
}

type runDetailResponse struct {
	runResponse
	Attempts []attemptResponse `json:"attempts"`
}

type listRunsResponse struct {
	Data []runResponse `json:"data"`
	Meta listMeta      `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *RunsHandler) ListRuns(c *fiber.Ctx) error {
	if h.runs == nil {
		return errHistoryDisabled()
	}

	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	runs, total, err := h.runs.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]runResponse, 0, len(runs))
	for i := range runs {
		data = append(data, toRunResponse(&runs[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listRunsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *RunsHandler) GetRun(c *fiber.Ctx) error {
	if h.runs == nil {
		return errHistoryDisabled()
	}

	id := strings.TrimSpace(c.Params("id"))
	filter, err := parseAttemptFilter(c)
	if err != nil {
		return toHTTPError(err)
	}

	run, err := h.runs.GetByID(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	resp := runDetailResponse{
		runResponse: toRunResponse(run),
		Attempts:    []attemptResponse{},
	}
	if h.attempts != nil {
		attempts, err := h.attempts.ListByRunID(c.UserContext(), id, filter)
		if err != nil {
			return toHTTPError(err)
		}
		for _, a := range attempts {
			resp.Attempts = append(resp.Attempts, attemptResponse{
				RecipientIndex: a.RecipientIndex,
				Contact:        a.Contact,
				AttemptNumber:  a.AttemptNumber,
				Outcome:        a.Outcome.String(),
				Error:          a.Error,
				DurationMillis: a.DurationMillis,
				CreatedAt:      a.CreatedAt,
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// parseAttemptFilter reads ?contact= and ?outcome=sent|failed.
func parseAttemptFilter(c *fiber.Ctx) (repository.AttemptFilter, error) {
	filter := repository.AttemptFilter{Contact: strings.TrimSpace(c.Query("contact"))}

	switch outcome := domain.RecipientStatus(strings.ToUpper(strings.TrimSpace(c.Query("outcome")))); outcome {
	case "":
	case domain.RecipientSent, domain.RecipientFailed:
		filter.Outcome = outcome
	default:
		return repository.AttemptFilter{}, fmt.Errorf("%w: outcome must be sent or failed", domain.ErrValidation)
	}

	return filter, nil
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseRunStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toRunResponse(r *domain.Run) runResponse {
	if r == nil {
		return runResponse{}
	}

	return runResponse{
		ID:             r.ID,
		Status:         r.Status.String(),
		TotalCount:     r.TotalCount,
		SuccessCount:   r.SuccessCount,
		FailureCount:   r.FailureCount,
		RecipientsFile: r.RecipientsFile,
		AttachmentFile: r.AttachmentFile,
		Error:          r.Error,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}

func errHistoryDisabled() error {
	return fiber.NewError(fiber.StatusServiceUnavailable, "run history is not configured")
}
