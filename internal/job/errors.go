package job

import (
	"context"
	"errors"
	"time"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrTooManyJobs    = errors.New("active job limit reached")
	ErrJobTerminal    = errors.New("job is in a terminal state")
	ErrJobNotTerminal = errors.New("job is still running")
	ErrNotRetryable   = errors.New("only failed jobs can be retried")
	ErrEmptyPayload   = errors.New("upload payload is empty")
	ErrInvalidUpload  = errors.New("upload rejected")
)

// severityFor maps an error type to its operational severity. Parsing and
// validation problems are expected noise in bulk input; quota and
// permission failures mean the whole job cannot make progress.
func severityFor(t domain.ErrorType) domain.ErrorSeverity {
	switch t {
	case domain.ErrParsing, domain.ErrValidation, domain.ErrTypeDetection:
		return domain.SeverityLow
	case domain.ErrEnrichment, domain.ErrTimeout, domain.ErrRateLimit:
		return domain.SeverityMedium
	case domain.ErrNetwork, domain.ErrProcessing:
		return domain.SeverityHigh
	case domain.ErrQuotaExceeded, domain.ErrPermission:
		return domain.SeverityCritical
	default:
		return domain.SeverityMedium
	}
}

// retryableFor reports whether failures of this type are worth retrying.
// Transient transport conditions are; malformed input never is.
func retryableFor(t domain.ErrorType) bool {
	switch t {
	case domain.ErrTimeout, domain.ErrRateLimit, domain.ErrNetwork, domain.ErrEnrichment:
		return true
	default:
		return false
	}
}

// newJobError builds one typed failure with its severity and retryability
// derived from the type.
func newJobError(t domain.ErrorType, msg string, rec *domain.RawRecord) domain.JobError {
	return domain.JobError{
		Type:      t,
		Message:   msg,
		Severity:  severityFor(t),
		Retryable: retryableFor(t),
		Record:    rec,
		Timestamp: time.Now().UTC(),
	}
}

// classifyErr maps a Go error from downstream calls onto the error
// taxonomy. Adapters that already classified the failure win; otherwise
// context timeouts are the common case on slow enrichers.
func classifyErr(err error) domain.ErrorType {
	var ce *domain.ClassifiedError
	switch {
	case errors.As(err, &ce):
		return ce.Type
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrTimeout
	case errors.Is(err, context.Canceled):
		return domain.ErrProcessing
	default:
		return domain.ErrProcessing
	}
}
