package history

import "time"

// InvocationRecord represents a single remote invocation in the database.
// A skipped or rejected run produces one record with an empty target.
type InvocationRecord struct {
	ID              int64
	Pipeline        string
	Branch          string
	Target          string
	Status          string // success, failed, skipped, rejected
	ExitCode        int
	StartedAt       time.Time
	CompletedAt     *time.Time // nullable
	DurationSeconds *float64   // nullable
	ErrorMessage    *string    // nullable
}
