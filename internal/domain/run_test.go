package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseRunStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    RunStatus
		wantErr bool
	}{
		{name: "valid uppercase", input: "COMPLETED", want: RunStatusCompleted},
		{name: "valid lowercase with spaces", input: " processing ", want: RunStatusProcessing},
		{name: "invalid", input: "paused", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseRunStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseRunStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRunStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseRunStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRunStateCloneIsDeep(t *testing.T) {
	t.Parallel()

	state := RunState{RunID: "r1", Logs: []string{"[10:00:00] one"}}
	cp := state.Clone()
	cp.Logs[0] = "mutated"
	cp.Logs = append(cp.Logs, "two")

	if state.Logs[0] != "[10:00:00] one" {
		t.Fatalf("original log mutated: %q", state.Logs[0])
	}
	if len(state.Logs) != 1 {
		t.Fatalf("original logs len = %d, want 1", len(state.Logs))
	}
}

func TestRunStateResult(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	state := RunState{
		RunID:        "r1",
		Status:       RunStatusCompleted,
		Total:        3,
		SuccessCount: 2,
		FailureCount: 1,
		Logs:         []string{"a", "b"},
		StartedAt:    started,
		FinishedAt:   started.Add(90 * time.Second),
	}

	result := state.Result()
	if result.Duration != 90*time.Second {
		t.Fatalf("Duration = %v, want 90s", result.Duration)
	}
	if result.Processed() != 3 {
		t.Fatalf("Processed() = %d, want 3", result.Processed())
	}
	if len(result.Logs) != 2 {
		t.Fatalf("Logs len = %d, want 2", len(result.Logs))
	}

	state.Logs[0] = "changed"
	if result.Logs[0] != "a" {
		t.Fatal("result logs must not alias state logs")
	}
}
