package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// TransientError marks a backend failure that is safe to retry.
type TransientError struct {
	Backend string
	Err     error
}

func (e *TransientError) Error() string {
	if e.Backend == "" {
		return e.Err.Error()
	}
	return e.Backend + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as retryable for the named backend.
func NewTransientError(backend string, err error) *TransientError {
	return &TransientError{Backend: backend, Err: err}
}

// transientPatterns match driver errors that only surface as text.
var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"i/o timeout",
	"connection pool timeout",
	"database is locked",
	"sqlite_busy",
	"loading redis is loading",
	"tryagain",
	"clusterdown",
}

// IsTransient reports whether err is worth retrying against an inventory
// backend: an explicit TransientError, a network timeout or reset, a
// retryable Postgres condition, or a busy SQLite/Redis server. Context
// cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && retryableSQLState(pgErr.Code) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// retryableSQLState covers connection exceptions (08), serialization and
// deadlock failures (40001, 40P01), insufficient resources (53) and
// cannot_connect_now (57P03).
func retryableSQLState(code string) bool {
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"):
		return true
	case code == "40001", code == "40P01", code == "57P03":
		return true
	default:
		return false
	}
}

// ClassifyError labels err as "transient" or "permanent" for reporting.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
