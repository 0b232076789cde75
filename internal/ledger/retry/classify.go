package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"ledgerindex/internal/storage"
)

// SQLSTATE classes worth another attempt: connection exceptions, transaction
// rollbacks (serialization failure, deadlock) and insufficient resources.
var retryableSQLStateClasses = map[string]bool{
	"08": true,
	"40": true,
	"53": true,
}

// Server shutting down or not yet accepting connections
var retryableSQLStates = map[string]bool{
	"57P01": true,
	"57P02": true,
	"57P03": true,
}

// IsRetryableCommitError reports whether resending the same batch can succeed.
// A duplicate version never can: the cursor is stale and has to be re-derived from
// the store instead.
func IsRetryableCommitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, storage.ErrDuplicateVersion) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.SQLState()
		return retryableSQLStates[code] || (len(code) == 5 && retryableSQLStateClasses[code[:2]])
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	// Dropped connections that reach us without a typed error
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"unexpected eof",
		"conn closed",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
