package storage

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"ledgerindex/internal/models"
)

// PageSize is the fixed number of rows returned per account page
const PageSize = 100

var (
	// ErrNotFound is returned when a requested version is not in the store
	ErrNotFound = errors.New("transaction not found")
	// ErrDuplicateVersion is returned when a batch would insert an existing version
	ErrDuplicateVersion = errors.New("duplicate transaction version")
)

// TimeRange bounds expiration_unixtime: From <= t < To
type TimeRange struct {
	From int64
	To   int64
}

// Contains reports whether t falls inside the range. A nil range contains everything.
func (r *TimeRange) Contains(t int64) bool {
	if r == nil {
		return true
	}
	return t >= r.From && t < r.To
}

// WindowRow is the subset of columns the statistics need
type WindowRow struct {
	Version uint64
	Type    string
	Src     string
	Dest    string
	Amount  uint64
}

// Repository defines the interface for all transaction storage operations.
// Exactly one writer may call InsertBatch and Reset; every other method is safe
// for concurrent readers.
type Repository interface {
	// Writes
	InsertBatch(ctx context.Context, txs []models.Transaction) error
	Reset(ctx context.Context) error

	// Point and range lookups
	LatestVersion(ctx context.Context) (uint64, bool, error)
	GetByVersion(ctx context.Context, version uint64) (*models.Transaction, error)
	ListByAccount(ctx context.Context, account string, page int) ([]models.Transaction, error)
	Count(ctx context.Context) (int64, error)

	// Aggregation support
	FirstVersion(ctx context.Context, window *TimeRange) (uint64, bool, error)
	ExpirationUnixtime(ctx context.Context, version uint64) (int64, bool, error)
	ScanWindow(ctx context.Context, window *TimeRange, fn func(WindowRow) error) error
	ScanAll(ctx context.Context, fn func(models.Transaction) error) error

	// Health & Maintenance
	Ping(ctx context.Context) error
	Close() error
}

// ParsePage converts user input to a zero-based page number. Anything that is not a
// non-negative integer becomes page 0.
func ParsePage(s string) int {
	page, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || page < 0 {
		return 0
	}
	return page
}

// MaxPage is the last page whose row offset fits in an int
const MaxPage = math.MaxInt / PageSize

// pageOffset returns the row offset of page. ok is false for pages past MaxPage,
// which can never hold rows.
func pageOffset(page int) (offset int, ok bool) {
	if page < 0 {
		return 0, true
	}
	if page > MaxPage {
		return 0, false
	}
	return page * PageSize, true
}
