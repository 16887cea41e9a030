package repository

import (
	"testing"
	"time"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
)

func TestListParamsNormalized(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		in           ListParams
		wantPage     int
		wantPageSize int
	}{
		{name: "zero values", in: ListParams{}, wantPage: 1, wantPageSize: defaultPageSize},
		{name: "negative page", in: ListParams{Page: -3, PageSize: 10}, wantPage: 1, wantPageSize: 10},
		{name: "oversized page", in: ListParams{Page: 2, PageSize: 1000}, wantPage: 2, wantPageSize: maxPageSize},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := tc.in.normalized()
			if got.Page != tc.wantPage || got.PageSize != tc.wantPageSize {
				t.Fatalf("normalized() = page %d size %d, want page %d size %d", got.Page, got.PageSize, tc.wantPage, tc.wantPageSize)
			}
		})
	}
}

func TestRunModelMappingKeepsOptionalFields(t *testing.T) {
	t.Parallel()

	finished := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	attachment := "attachment_1_menu.pdf"
	run := &domain.Run{
		ID:             "3b0f1c52-8a51-4a8e-9b63-0f4c2f1d9a10",
		Status:         domain.RunStatusCompleted,
		TotalCount:     3,
		SuccessCount:   2,
		FailureCount:   1,
		RecipientsFile: "recipients_1_list.xlsx",
		AttachmentFile: &attachment,
		StartedAt:      finished.Add(-time.Minute),
		FinishedAt:     &finished,
	}

	got := runModelToDomain(runModelFromDomain(run))
	if got.AttachmentFile == nil || *got.AttachmentFile != attachment {
		t.Fatalf("AttachmentFile = %v, want %q", got.AttachmentFile, attachment)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Fatalf("FinishedAt = %v, want %v", got.FinishedAt, finished)
	}
	if got.Error != nil {
		t.Fatalf("Error = %v, want nil", *got.Error)
	}
	if runModelFromDomain(nil) != nil || runModelToDomain(nil) != nil {
		t.Fatal("nil mapping should return nil")
	}
}
