// Package server implements the HTTP server for the skillsync webhook
// receiver.
//
// This package provides:
//   - GitHub webhook endpoint handling with HMAC signature verification
//   - Per-IP rate limiting to prevent abuse and DDoS attacks
//   - Health and status endpoints for monitoring
//   - Structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/config: Pipeline configuration and validation
//   - internal/invoker: Branch-gated remote invocation of the load script
//   - internal/history: SQLite-based invocation history tracking
//
// Security features:
//   - HMAC-SHA256 webhook signature verification
//   - Content-Type validation (application/json only)
//   - Payload size limits (1MB max)
//   - Rate limiting (global and per-webhook)
//   - Per-pipeline run locking (prevents concurrent runs)
package server
