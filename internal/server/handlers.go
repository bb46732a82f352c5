package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"skillsync/internal/config"
	"skillsync/internal/history"
	"skillsync/internal/invoker"
	"skillsync/internal/security"

	"github.com/go-chi/chi/v5"
)

const (
	MaxPayloadBytes        = 1_000_000 // 1 MB
	RecentInvocationsLimit = 10        // Number of recent invocations to return in status endpoint
)

// pushEvent is the part of the GitHub push payload the gate cares about
type pushEvent struct {
	Ref   string `json:"ref"`
	After string `json:"after"`
}

// HandleWebhook handles GitHub webhook requests
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	pipelineName := chi.URLParam(r, "pipelineName")

	// Validate pipeline name for security
	if err := security.ValidatePipelineName(pipelineName); err != nil {
		s.Logger.Warn("Invalid pipeline name in webhook request", "pipeline", pipelineName, "error", err)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid pipeline name: %v", err)})
		return
	}

	// Check if pipeline exists
	pipeline, err := s.Registry.Get(pipelineName)
	if err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown pipeline"})
		return
	}

	// A pipeline without a secret can run from the CLI but never from the
	// open webhook endpoint
	if pipeline.Secret == "" {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Webhook secret not configured"})
		return
	}

	// Check payload size (ContentLength can be -1 if not set, so check for both > 0 and > max)
	if r.ContentLength > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return
	}

	// Check content type
	if r.Header.Get("Content-Type") != "application/json" {
		s.respondJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "Invalid content type"})
		return
	}

	// Check event type
	if r.Header.Get("X-GitHub-Event") != "push" {
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Ignoring non-push event"})
		return
	}

	// Read payload
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes))
	if err != nil {
		s.Logger.Error("Failed to read request body", "error", err, "pipeline", pipelineName)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read payload"})
		return
	}

	// Verify signature
	signature := r.Header.Get("X-Hub-Signature-256")
	if !VerifySignature(body, signature, pipeline.Secret) {
		s.respondJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid signature"})
		return
	}

	// Parse JSON payload
	var event pushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.Logger.Error("Failed to parse JSON payload", "error", err, "pipeline", pipelineName)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
		return
	}

	if event.Ref == "" {
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Missing ref, skipping"})
		return
	}

	// Evaluate the branch gate before acquiring the lock so non-trigger
	// branches get an immediate response
	branch := strings.TrimPrefix(event.Ref, "refs/heads/")
	if !pipeline.MatchesRef(event.Ref) {
		s.recordSkipped(r.Context(), pipeline, branch)
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Not trigger branch, skipping"})
		return
	}

	// Try to acquire run lock
	if !s.LockManager.TryLock(pipelineName) {
		s.Logger.Warn("Run already in progress, rejecting", "pipeline", pipelineName)

		// Record rejected run
		if !s.TestMode {
			if _, err := s.History.RecordInvocation(r.Context(), &history.InvocationRecord{
				Pipeline:     pipelineName,
				Branch:       branch,
				Status:       "rejected",
				ErrorMessage: stringPtr("Run already in progress"),
			}); err != nil {
				s.Logger.Error("Failed to record rejection in history", "error", err, "pipeline", pipelineName)
			}
		}

		s.respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Run already in progress"})
		return
	}

	// Respond immediately to GitHub to avoid timeout
	// GitHub webhooks have a 10-second timeout, so we acknowledge receipt
	// and invoke the load script asynchronously
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"message":  "Run accepted",
		"pipeline": pipelineName,
	})

	// Execute run asynchronously
	s.runWg.Add(1)
	go func() {
		defer s.runWg.Done()
		defer s.LockManager.Unlock(pipelineName)
		s.executeRun(context.Background(), pipeline, branch)
	}()
}

// executeRun invokes the load script on every target and records history
func (s *Server) executeRun(ctx context.Context, pipeline *config.Pipeline, branch string) {
	startTime := time.Now()

	inv := invoker.New(pipeline, s.Executor, s.Logger)
	report, err := inv.Run(ctx, branch)
	if err != nil {
		s.Logger.Error("run failed before reaching any target", "pipeline", pipeline.Name, "error", err)
		if !s.TestMode {
			errMsg := err.Error()
			if _, recErr := s.History.RecordInvocation(ctx, &history.InvocationRecord{
				Pipeline:     pipeline.Name,
				Branch:       branch,
				Status:       "failed",
				StartedAt:    startTime,
				ErrorMessage: &errMsg,
			}); recErr != nil {
				s.Logger.Error("Failed to record run in history", "error", recErr, "pipeline", pipeline.Name)
			}
		}
		return
	}

	// One history record per target
	if !s.TestMode {
		for _, tr := range report.Targets {
			record := &history.InvocationRecord{
				Pipeline:  pipeline.Name,
				Branch:    branch,
				Target:    tr.Target.String(),
				ExitCode:  tr.ExitCode,
				StartedAt: startTime,
			}

			duration := tr.Duration.Seconds()
			record.DurationSeconds = &duration

			if tr.OK() {
				record.Status = "success"
			} else {
				record.Status = "failed"
				if tr.Err != nil {
					errMsg := tr.Err.Error()
					record.ErrorMessage = &errMsg
				}
			}

			if _, err := s.History.RecordInvocation(ctx, record); err != nil {
				s.Logger.Error("Failed to record run in history", "error", err, "pipeline", pipeline.Name)
			}
		}
	}

	// Log final status (we already responded to GitHub)
	if report.Failed() {
		s.Logger.Error("run completed with failures",
			"pipeline", pipeline.Name, "exit_code", report.ExitCode)
	} else {
		s.Logger.Info("run completed", "pipeline", pipeline.Name, "status", "success")
	}
}

// recordSkipped logs a gated-out push in the history
func (s *Server) recordSkipped(ctx context.Context, pipeline *config.Pipeline, branch string) {
	if s.TestMode {
		return
	}

	if _, err := s.History.RecordInvocation(ctx, &history.InvocationRecord{
		Pipeline: pipeline.Name,
		Branch:   branch,
		Status:   "skipped",
	}); err != nil {
		s.Logger.Error("Failed to record skip in history", "error", err, "pipeline", pipeline.Name)
	}
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pipelineNames := s.Registry.List()

	response := map[string]interface{}{
		"status":         "ok",
		"pipelines":      pipelineNames,
		"pipeline_count": s.Registry.Count(),
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleStatus handles invocation status requests
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	pipelineName := chi.URLParam(r, "pipelineName")

	// Validate pipeline name for security
	if err := security.ValidatePipelineName(pipelineName); err != nil {
		s.Logger.Warn("Invalid pipeline name in status request", "pipeline", pipelineName, "error", err)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid pipeline name: %v", err)})
		return
	}

	// Check if pipeline exists
	_, err := s.Registry.Get(pipelineName)
	if err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown pipeline"})
		return
	}

	// Check if history is available
	if s.TestMode {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "History not available in test mode"})
		return
	}

	// Get latest invocation
	latest, err := s.History.GetLatestInvocation(r.Context(), pipelineName)
	if err != nil {
		s.Logger.Error("Failed to get latest invocation", "error", err, "pipeline", pipelineName)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch invocation status"})
		return
	}

	// Get recent invocations
	recent, err := s.History.GetInvocationHistory(r.Context(), pipelineName, RecentInvocationsLimit)
	if err != nil {
		s.Logger.Error("Failed to get invocation history", "error", err, "pipeline", pipelineName)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch invocation status"})
		return
	}

	response := map[string]interface{}{
		"pipeline":           pipelineName,
		"latest_invocation":  latest,
		"recent_invocations": recent,
	}

	s.respondJSON(w, http.StatusOK, response)
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}

func stringPtr(s string) *string {
	return &s
}
