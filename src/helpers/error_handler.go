package helpers

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"market-metrics/src/logger"

	"github.com/lib/pq"
)

// -----------------------------------------------------------------------------
// Error Classes
// -----------------------------------------------------------------------------

// ErrorClass tells the caller whether retrying can help.
type ErrorClass string

const (
	Transient ErrorClass = "transient"
	Permanent ErrorClass = "permanent"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type PipelineError struct {
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As
type ConfigurationError struct{ PipelineError }
type ValidationError struct{ PipelineError }
type IngestError struct{ PipelineError }

// StoreError is a failed store operation with its retry class.
type StoreError struct {
	PipelineError
	Class ErrorClass
}

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{PipelineError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string) error {
	return &ValidationError{PipelineError{Message: msg}}
}

func NewIngestError(msg string, cause error) error {
	return &IngestError{PipelineError{Message: msg, Cause: cause}}
}

// NewStoreError wraps cause and classifies it.
func NewStoreError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var se *StoreError
	if errors.As(cause, &se) {
		return cause
	}
	return &StoreError{
		PipelineError: PipelineError{Message: op + " failed", Cause: cause},
		Class:         Classify(cause),
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return ClassOf(err) == Transient
}

// ClassOf returns the class recorded on a StoreError, or classifies err directly.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Class
	}
	return Classify(err)
}

// -----------------------------------------------------------------------------

// Classify separates connectivity and timeout failures, which may succeed on
// retry, from everything else.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return Permanent
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Transient
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case strings.HasPrefix(code, "08"), // connection exception
			strings.HasPrefix(code, "53"),  // insufficient resources
			strings.HasPrefix(code, "57P"), // operator intervention
			code == "40001", code == "40P01":
			return Transient
		}
		return Permanent
	}

	// sqlite reports a busy database with this text
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") {
		return Transient
	}

	return Permanent
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries+1 times, doubling the delay after
// each transient failure. Permanent errors and ctx cancellation stop at once.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == maxRetries {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries+1, operation, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler counts consecutive failures of the scheduled run loop.
type ErrorHandler struct {
	Logger                *logger.Logger
	MaxConsecutiveFailure int

	mu         sync.Mutex
	errorCount int
}

func NewErrorHandler(log *logger.Logger, maxConsecutive int) *ErrorHandler {
	if log == nil {
		log = logger.NewLogger(nil, "ErrorHandler")
	}
	if maxConsecutive <= 0 {
		maxConsecutive = 10
	}
	return &ErrorHandler{
		Logger:                log,
		MaxConsecutiveFailure: maxConsecutive,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errorCount = 0
}

func (e *ErrorHandler) ErrorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorCount
}

// -----------------------------------------------------------------------------

// Handle logs err and returns true once the consecutive failure limit is hit.
// A nil err decays the counter.
func (e *ErrorHandler) Handle(err error, context string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil {
		if e.errorCount > 0 {
			e.errorCount--
		}
		return false
	}

	e.errorCount++
	e.Logger.Error("Error in %s (%s, %d consecutive): %v", context, ClassOf(err), e.errorCount, err)
	return e.errorCount >= e.MaxConsecutiveFailure
}
