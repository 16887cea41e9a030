package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
	"github.com/kursadbilgin/bulk-dispatch/internal/service"
	"github.com/kursadbilgin/bulk-dispatch/internal/sheet"
	"go.uber.org/zap"
)

const (
	recipientsField = "recipientsFile"
	attachmentField = "attachmentFile"
)

var attachmentExtensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".gif", ".doc", ".docx", ".txt", ".mp4", ".xls", ".xlsx"}

// Dispatcher is the part of service.Dispatcher the API drives.
type Dispatcher interface {
	Start(ctx context.Context, source service.RunSource) (string, error)
	IsActive() bool
	Progress() domain.RunState
	FinalStatus() (domain.BatchResult, bool)
	Cancel() error
}

type DispatchHandler struct {
	dispatcher Dispatcher
	uploadDir  string
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

func NewDispatchHandler(dispatcher Dispatcher, uploadDir string, logger *zap.Logger) (*DispatchHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if strings.TrimSpace(uploadDir) == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %q: %w", uploadDir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchHandler{
		dispatcher: dispatcher,
		uploadDir:  uploadDir,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

func RegisterDispatchRoutes(router fiber.Router, h *DispatchHandler) {
	api := router.Group("/api")
	api.Post("/send", h.Send)
	api.Get("/progress", h.Progress)
	api.Get("/status", h.Status)
	api.Post("/cancel", h.Cancel)
}

type progressResponse struct {
	IsActive     bool     `json:"is_active"`
	Current      int      `json:"current"`
	Total        int      `json:"total"`
	Logs         []string `json:"logs"`
	SuccessCount int      `json:"success_count"`
	FailureCount int      `json:"failure_count"`
	RunID        string   `json:"run_id,omitempty"`
	Status       string   `json:"status"`
}

type completedStatusResponse struct {
	Status       string   `json:"status"`
	RunStatus    string   `json:"runStatus"`
	RunID        string   `json:"runId,omitempty"`
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	Total        int      `json:"total"`
	DurationMs   int64    `json:"durationMs"`
	Logs         []string `json:"logs"`
}

func (h *DispatchHandler) Send(c *fiber.Ctx) error {
	if h.dispatcher.IsActive() {
		return fiber.NewError(fiber.StatusBadRequest, "Another sending process is already active")
	}

	recipients, err := c.FormFile(recipientsField)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Recipients file is required")
	}
	if strings.TrimSpace(recipients.Filename) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "No recipients file selected")
	}
	if !hasExtension(recipients.Filename, sheet.SupportedExtensions) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid recipients file format. Use .xlsx, .xlsm or .csv")
	}

	var attachment *multipart.FileHeader
	if header, err := c.FormFile(attachmentField); err == nil && strings.TrimSpace(header.Filename) != "" {
		if !hasExtension(header.Filename, attachmentExtensions) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid attachment file format")
		}
		attachment = header
	}

	source := service.RunSource{}
	source.RecipientsPath, err = h.save(c, recipients, "recipients")
	if err != nil {
		return err
	}
	if attachment != nil {
		source.AttachmentPath, err = h.save(c, attachment, "attachment")
		if err != nil {
			h.discard(source)
			return err
		}
	}

	runID, err := h.dispatcher.Start(c.UserContext(), source)
	if err != nil {
		h.discard(source)
		if errors.Is(err, domain.ErrAlreadyActive) {
			return fiber.NewError(fiber.StatusBadRequest, "Another sending process is already active")
		}
		return toHTTPError(err)
	}

	h.logger.Info("dispatch run accepted",
		zap.String("runId", runID),
		zap.String("recipientsFile", source.RecipientsPath),
		zap.String("attachmentFile", source.AttachmentPath),
	)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Message sending started",
		"status":  "processing",
		"runId":   runID,
	})
}

func (h *DispatchHandler) Progress(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(toProgressResponse(h.dispatcher.Progress()))
}

func (h *DispatchHandler) Status(c *fiber.Ctx) error {
	state := h.dispatcher.Progress()
	if state.IsActive {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "processing",
			"progress": toProgressResponse(state),
		})
	}

	result, ok := h.dispatcher.FinalStatus()
	if !ok {
		result = state.Result()
	}

	logs := result.Logs
	if logs == nil {
		logs = []string{}
	}
	runStatus := result.Status
	if runStatus == "" {
		runStatus = domain.RunStatusIdle
	}

	return c.Status(fiber.StatusOK).JSON(completedStatusResponse{
		Status:       "completed",
		RunStatus:    runStatus.String(),
		RunID:        result.RunID,
		SuccessCount: result.SuccessCount,
		FailureCount: result.FailureCount,
		Total:        result.Total,
		DurationMs:   result.Duration.Milliseconds(),
		Logs:         logs,
	})
}

func (h *DispatchHandler) Cancel(c *fiber.Ctx) error {
	if err := h.dispatcher.Cancel(); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Cancellation requested",
		"runId":   h.dispatcher.Progress().RunID,
	})
}

func (h *DispatchHandler) save(c *fiber.Ctx, header *multipart.FileHeader, prefix string) (string, error) {
	path := filepath.Join(h.uploadDir, h.uploadName(prefix, header.Filename))

	if err := c.SaveFile(header, path); err != nil {
		h.logger.Error("failed to save upload", zap.String("path", path), zap.Error(err))
		return "", fmt.Errorf("failed to save %s file: %w", prefix, err)
	}
	return path, nil
}

// uploadName is <prefix>_<unix>_<id>_<sanitized name>. The id keeps two
// uploads of the same file within one second apart.
func (h *DispatchHandler) uploadName(prefix, filename string) string {
	id := strings.ReplaceAll(h.newID(), "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return fmt.Sprintf("%s_%d_%s_%s", prefix, h.now().Unix(), id, secureFilename(filename))
}

func (h *DispatchHandler) discard(source service.RunSource) {
	for _, path := range []string{source.RecipientsPath, source.AttachmentPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("failed to remove upload", zap.String("path", path), zap.Error(err))
		}
	}
}

func toProgressResponse(state domain.RunState) progressResponse {
	logs := state.Logs
	if logs == nil {
		logs = []string{}
	}
	status := state.Status
	if status == "" {
		status = domain.RunStatusIdle
	}

	return progressResponse{
		IsActive:     state.IsActive,
		Current:      state.CurrentIndex,
		Total:        state.Total,
		Logs:         logs,
		SuccessCount: state.SuccessCount,
		FailureCount: state.FailureCount,
		RunID:        state.RunID,
		Status:       status.String(),
	}
}

func hasExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext != "" && slices.Contains(allowed, ext)
}

// secureFilename reduces an uploaded name to a safe ASCII base name.
func secureFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}
