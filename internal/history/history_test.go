package history

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	hist, err := NewHistory(dbPath)
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })
	return hist
}

func TestHistory_RecordInvocation(t *testing.T) {
	hist := newTestHistory(t)

	duration := 12.5
	record := &InvocationRecord{
		Pipeline:        "skill-metadata",
		Branch:          "19.02",
		Target:          "mycroft@165.22.40.13",
		Status:          "success",
		DurationSeconds: &duration,
	}

	id, err := hist.RecordInvocation(context.Background(), record)
	if err != nil {
		t.Fatalf("Failed to record invocation: %v", err)
	}

	if id == 0 {
		t.Error("Expected non-zero invocation ID")
	}
}

func TestHistory_GetLatestInvocation(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	_, err := hist.RecordInvocation(ctx, &InvocationRecord{
		Pipeline: "skill-metadata",
		Branch:   "19.02",
		Target:   "mycroft@test.mycroft.ai",
		Status:   "success",
	})
	if err != nil {
		t.Fatalf("Failed to record first invocation: %v", err)
	}

	errMsg := "exit status 1"
	_, err = hist.RecordInvocation(ctx, &InvocationRecord{
		Pipeline:     "skill-metadata",
		Branch:       "19.02",
		Target:       "mycroft@165.22.40.13",
		Status:       "failed",
		ExitCode:     1,
		ErrorMessage: &errMsg,
	})
	if err != nil {
		t.Fatalf("Failed to record second invocation: %v", err)
	}

	latest, err := hist.GetLatestInvocation(ctx, "skill-metadata")
	if err != nil {
		t.Fatalf("Failed to get latest invocation: %v", err)
	}

	if latest == nil {
		t.Fatal("Expected latest invocation to be non-nil")
	}
	if latest.Status != "failed" {
		t.Errorf("Expected latest status 'failed', got %q", latest.Status)
	}
	if latest.ExitCode != 1 {
		t.Errorf("Expected exit code 1, got %d", latest.ExitCode)
	}
	if latest.Target != "mycroft@165.22.40.13" {
		t.Errorf("Expected production target, got %q", latest.Target)
	}
	if latest.ErrorMessage == nil || *latest.ErrorMessage != errMsg {
		t.Errorf("Expected error message %q, got %v", errMsg, latest.ErrorMessage)
	}
}

func TestHistory_GetLatestInvocation_NoRecords(t *testing.T) {
	hist := newTestHistory(t)

	latest, err := hist.GetLatestInvocation(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Expected no error for nonexistent pipeline, got: %v", err)
	}
	if latest != nil {
		t.Errorf("Expected nil for nonexistent pipeline, got: %v", latest)
	}
}

func TestHistory_GetInvocationHistory(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		duration := float64(i)
		_, err := hist.RecordInvocation(ctx, &InvocationRecord{
			Pipeline:        "skill-metadata",
			Branch:          "19.02",
			Target:          "mycroft@165.22.40.13",
			Status:          "success",
			DurationSeconds: &duration,
		})
		if err != nil {
			t.Fatalf("Failed to record invocation %d: %v", i, err)
		}
	}

	records, err := hist.GetInvocationHistory(ctx, "skill-metadata", 3)
	if err != nil {
		t.Fatalf("Failed to get invocation history: %v", err)
	}

	if len(records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(records))
	}

	// Newest first
	if records[0].DurationSeconds == nil {
		t.Error("Expected first record duration to be non-nil")
	} else if *records[0].DurationSeconds != 4.0 {
		t.Errorf("Expected first record duration 4.0, got %f", *records[0].DurationSeconds)
	}
}

func TestHistory_GetAllPipelinesStatus(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	hist.RecordInvocation(ctx, &InvocationRecord{
		Pipeline: "skill-metadata",
		Branch:   "19.02",
		Target:   "mycroft@165.22.40.13",
		Status:   "success",
	})
	hist.RecordInvocation(ctx, &InvocationRecord{
		Pipeline: "skill-display",
		Branch:   "19.02",
		Target:   "mycroft@165.22.40.13",
		Status:   "failed",
		ExitCode: 2,
	})

	status, err := hist.GetAllPipelinesStatus(ctx)
	if err != nil {
		t.Fatalf("Failed to get all pipelines status: %v", err)
	}

	if len(status) != 2 {
		t.Errorf("Expected 2 pipelines, got %d", len(status))
	}
	if status["skill-metadata"] == nil || status["skill-metadata"].Status != "success" {
		t.Errorf("Unexpected skill-metadata status: %+v", status["skill-metadata"])
	}
	if status["skill-display"] == nil || status["skill-display"].Status != "failed" {
		t.Errorf("Unexpected skill-display status: %+v", status["skill-display"])
	}
}

func TestHistory_SkippedRun(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	_, err := hist.RecordInvocation(ctx, &InvocationRecord{
		Pipeline: "skill-metadata",
		Branch:   "feature-x",
		Status:   "skipped",
	})
	if err != nil {
		t.Fatalf("Failed to record skipped run: %v", err)
	}

	latest, err := hist.GetLatestInvocation(ctx, "skill-metadata")
	if err != nil {
		t.Fatalf("Failed to get latest invocation: %v", err)
	}
	if latest.Status != "skipped" {
		t.Errorf("Expected status 'skipped', got %q", latest.Status)
	}
	if latest.Target != "" {
		t.Errorf("Expected empty target for skipped run, got %q", latest.Target)
	}
}
