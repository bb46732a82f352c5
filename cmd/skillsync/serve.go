package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"skillsync/internal/config"
	"skillsync/internal/history"
	"skillsync/internal/remote"
	"skillsync/internal/server"

	"github.com/spf13/cobra"
)

var (
	configFile     string
	logFile        string
	dbPath         string
	host           string
	port           int
	connectTimeout int
	commandTimeout int
	testMode       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server to receive GitHub webhook requests.

The server listens for push events and runs the load script on a
pipeline's targets when the pushed branch matches its trigger branch.`,
	RunE: runServe,
}

func init() {
	// Flags for serve command
	serveCmd.Flags().StringVarP(&configFile, "config", "c", getEnvOrDefault("SKILLSYNC_CONFIG_FILE", ""), "Path to pipelines.yaml configuration file")
	serveCmd.Flags().StringVar(&logFile, "log", getEnvOrDefault("SKILLSYNC_LOG_FILE", "./invocations.log"), "Path to log file")
	serveCmd.Flags().StringVar(&dbPath, "db", getEnvOrDefault("SKILLSYNC_DB_PATH", "./invocations.db"), "Path to SQLite database")
	serveCmd.Flags().StringVar(&host, "host", getEnvOrDefault("SKILLSYNC_HOST", "127.0.0.1"), "Host to bind to")
	serveCmd.Flags().IntVarP(&port, "port", "p", getEnvOrDefaultInt("SKILLSYNC_PORT", 5000), "Port to listen on")
	serveCmd.Flags().IntVar(&connectTimeout, "connect-timeout", getEnvOrDefaultInt("SKILLSYNC_CONNECT_TIMEOUT", config.DefaultConnectTimeout), "SSH connect timeout in seconds")
	serveCmd.Flags().IntVar(&commandTimeout, "command-timeout", getEnvOrDefaultInt("SKILLSYNC_COMMAND_TIMEOUT", 0), "Remote command timeout in seconds (0 means none)")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", os.Getenv("SKILLSYNC_TEST_MODE") == "1", "Enable test mode (no history, no rate limits)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, err := resolveConfigFile(configFile)
	if err != nil {
		return err
	}

	// Set up logging
	logger, logFileHandle, err := setupLogging(logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting skillsync")

	// Load configuration
	logger.Info("Loading configuration", "config", configFile)
	pipelines, err := config.Load(configFile)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info("Configuration validated successfully", "count", len(pipelines))

	// Warn if no pipelines are configured
	if len(pipelines) == 0 {
		logger.Warn("No pipelines configured in config file", "config", configFile)
		logger.Warn("The server will start but won't handle any runs until pipelines are added")
	}

	// The webhook endpoint refuses pipelines without a secret, flag them
	// early so the misconfiguration is visible at startup
	for name, pipeline := range pipelines {
		if pipeline.Secret == "" {
			logger.Warn("Pipeline has no webhook secret and can only run from the CLI", "pipeline", name)
		}
	}

	// Create pipeline registry
	registry := config.NewRegistry(pipelines)

	// Initialize history database
	var hist *history.History
	if !testMode {
		logger.Info("Initializing history database", "db", dbPath)
		hist, err = history.NewHistory(dbPath)
		if err != nil {
			logger.Error("Failed to initialize history database", "error", err)
			return fmt.Errorf("failed to initialize history database: %w", err)
		}
		defer hist.Close()
	}

	// Create and start server
	executor := remote.NewSSHExecutor(connectTimeout, commandTimeout)
	srv := server.NewServer(registry, hist, executor, logger, testMode)

	logger.Info("Starting HTTP server", "host", host, "port", port)
	if err := srv.Start(host, port); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	// Create log directory if needed
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file with secure permissions
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create multi-writer to log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	// Create JSON handler for structured logging
	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	logger := slog.New(handler)

	return logger, file, nil
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
