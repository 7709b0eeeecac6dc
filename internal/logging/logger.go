// Package logging provides categorized file-based logging for banter.
// Logs are written to <state>/logs/ with separate files per category.
// Nothing is written unless debug mode is enabled via Configure, so the
// production path stays silent and allocation-free.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config, wiring
	CategoryChat     Category = "chat"     // Message model, transcripts
	CategoryCommand  Category = "command"  // Bracket command interpreter
	CategoryLLM      Category = "llm"      // Completion API calls and streams
	CategoryBot      Category = "bot"      // Instances, registry, retries
	CategoryPlatform Category = "platform" // Adapter sends, reactions, fetches
	CategoryMedia    Category = "media"    // Content cache, transcoding
	CategoryStore    Category = "store"    // Archive and dataset stores
	CategoryServer   Category = "server"   // Admin HTTP API
	CategoryTools    Category = "tools"    // Structured tool execution
	CategoryAgents   Category = "agents"   // Retrieval/memory sub-agents
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options controls what gets logged. Zero value disables everything.
type Options struct {
	Debug      bool
	Level      string          // debug|info|warn|error (default info)
	Categories map[string]bool // nil = all categories enabled
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	opts      Options
	optsMu    sync.RWMutex
	logLevel  int
)

// Initialize sets the state directory logs are written under.
// Call once at startup before Configure.
func Initialize(stateDir string) error {
	if stateDir == "" {
		return fmt.Errorf("state directory required")
	}
	logsDir = filepath.Join(stateDir, "logs")
	return nil
}

// Configure applies logging options. Safe to call again at runtime
// (e.g. after a config reload); already-open files stay open.
func Configure(o Options) error {
	optsMu.Lock()
	opts = o
	switch o.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	optsMu.Unlock()

	if !o.Debug {
		return nil
	}
	if logsDir == "" {
		return fmt.Errorf("logging not initialized")
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	boot := Get(CategoryBoot)
	boot.Info("=== banter logging configured ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Level: %s", o.Level)
	return nil
}

// IsDebugMode reports whether debug logging is enabled.
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.Debug
}

// IsCategoryEnabled reports whether a category is enabled.
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	if !opts.Debug {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, ok := opts.Categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation a matter of deleting old files.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message (only if level <= info).
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message (only if level <= warn).
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message (always logged if the logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category.
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Chat logs to the chat category.
func Chat(format string, args ...interface{}) {
	Get(CategoryChat).Info(format, args...)
}

// ChatDebug logs debug to the chat category.
func ChatDebug(format string, args ...interface{}) {
	Get(CategoryChat).Debug(format, args...)
}

// Command logs to the command category.
func Command(format string, args ...interface{}) {
	Get(CategoryCommand).Info(format, args...)
}

// CommandDebug logs debug to the command category.
func CommandDebug(format string, args ...interface{}) {
	Get(CategoryCommand).Debug(format, args...)
}

// LLM logs to the llm category.
func LLM(format string, args ...interface{}) {
	Get(CategoryLLM).Info(format, args...)
}

// LLMDebug logs debug to the llm category.
func LLMDebug(format string, args ...interface{}) {
	Get(CategoryLLM).Debug(format, args...)
}

// Bot logs to the bot category.
func Bot(format string, args ...interface{}) {
	Get(CategoryBot).Info(format, args...)
}

// BotDebug logs debug to the bot category.
func BotDebug(format string, args ...interface{}) {
	Get(CategoryBot).Debug(format, args...)
}

// Platform logs to the platform category.
func Platform(format string, args ...interface{}) {
	Get(CategoryPlatform).Info(format, args...)
}

// PlatformDebug logs debug to the platform category.
func PlatformDebug(format string, args ...interface{}) {
	Get(CategoryPlatform).Debug(format, args...)
}

// Media logs to the media category.
func Media(format string, args ...interface{}) {
	Get(CategoryMedia).Info(format, args...)
}

// MediaDebug logs debug to the media category.
func MediaDebug(format string, args ...interface{}) {
	Get(CategoryMedia).Debug(format, args...)
}

// Store logs to the store category.
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// Server logs to the server category.
func Server(format string, args ...interface{}) {
	Get(CategoryServer).Info(format, args...)
}

// ServerDebug logs debug to the server category.
func ServerDebug(format string, args ...interface{}) {
	Get(CategoryServer).Debug(format, args...)
}

// Tools logs to the tools category.
func Tools(format string, args ...interface{}) {
	Get(CategoryTools).Info(format, args...)
}

// ToolsDebug logs debug to the tools category.
func ToolsDebug(format string, args ...interface{}) {
	Get(CategoryTools).Debug(format, args...)
}

// Agents logs to the agents category.
func Agents(format string, args ...interface{}) {
	Get(CategoryAgents).Info(format, args...)
}

// AgentsDebug logs debug to the agents category.
func AgentsDebug(format string, args ...interface{}) {
	Get(CategoryAgents).Debug(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer tracks the duration of an operation.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold warns if the operation exceeded the threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}

// RequestLogger correlates log lines for a single generation request.
type RequestLogger struct {
	category  Category
	requestID string
}

// NewRequestLogger creates a logger that prefixes lines with a request ID.
func NewRequestLogger(category Category, requestID string) *RequestLogger {
	return &RequestLogger{category: category, requestID: requestID}
}

// Info logs an info line tagged with the request ID.
func (r *RequestLogger) Info(format string, args ...interface{}) {
	Get(r.category).Info("[req=%s] %s", r.requestID, fmt.Sprintf(format, args...))
}

// Debug logs a debug line tagged with the request ID.
func (r *RequestLogger) Debug(format string, args ...interface{}) {
	Get(r.category).Debug("[req=%s] %s", r.requestID, fmt.Sprintf(format, args...))
}

// Warn logs a warning line tagged with the request ID.
func (r *RequestLogger) Warn(format string, args ...interface{}) {
	Get(r.category).Warn("[req=%s] %s", r.requestID, fmt.Sprintf(format, args...))
}

// Error logs an error line tagged with the request ID.
func (r *RequestLogger) Error(format string, args ...interface{}) {
	Get(r.category).Error("[req=%s] %s", r.requestID, fmt.Sprintf(format, args...))
}
