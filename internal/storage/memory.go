package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"ledgerindex/internal/models"
)

// MemoryRepository keeps the transaction table in process memory. Rows are held in
// version order; a batch is validated before it is applied so it lands whole or not
// at all, and readers take a snapshot of the slice under a short read lock.
type MemoryRepository struct {
	mu       sync.RWMutex
	rows     []models.Transaction
	versions map[uint64]struct{}
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		versions: make(map[uint64]struct{}),
	}
}

// InsertBatch appends all rows or none of them
func (r *MemoryRepository) InsertBatch(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uint64]struct{}, len(txs))
	ordered := true
	last := r.maxVersionLocked()
	for i, t := range txs {
		if _, ok := r.versions[t.Version]; ok {
			return fmt.Errorf("%w: version %d already stored", ErrDuplicateVersion, t.Version)
		}
		if _, ok := seen[t.Version]; ok {
			return fmt.Errorf("%w: version %d repeated in batch", ErrDuplicateVersion, t.Version)
		}
		seen[t.Version] = struct{}{}
		if (len(r.rows) > 0 || i > 0) && t.Version <= last {
			ordered = false
		}
		last = t.Version
	}

	for _, t := range txs {
		r.versions[t.Version] = struct{}{}
	}

	if ordered {
		r.rows = append(r.rows, txs...)
		return nil
	}

	// Out-of-order versions get a fresh slice; readers may still hold the old one.
	merged := make([]models.Transaction, 0, len(r.rows)+len(txs))
	merged = append(merged, r.rows...)
	merged = append(merged, txs...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Version < merged[j].Version
	})
	r.rows = merged

	return nil
}

func (r *MemoryRepository) maxVersionLocked() uint64 {
	if len(r.rows) == 0 {
		return 0
	}
	return r.rows[len(r.rows)-1].Version
}

func (r *MemoryRepository) snapshot() []models.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rows[:len(r.rows):len(r.rows)]
}

// Reset drops every row
func (r *MemoryRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows = nil
	r.versions = make(map[uint64]struct{})
	return nil
}

// LatestVersion returns the highest stored version; ok is false when empty
func (r *MemoryRepository) LatestVersion(ctx context.Context) (uint64, bool, error) {
	rows := r.snapshot()
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[len(rows)-1].Version, true, nil
}

// GetByVersion retrieves a transaction by version, tolerating duplicate rows
func (r *MemoryRepository) GetByVersion(ctx context.Context, version uint64) (*models.Transaction, error) {
	rows := r.snapshot()

	i := sort.Search(len(rows), func(i int) bool { return rows[i].Version >= version })
	if i == len(rows) || rows[i].Version != version {
		return nil, fmt.Errorf("%w: version %d", ErrNotFound, version)
	}

	if i+1 < len(rows) && rows[i+1].Version == version {
		slog.Warn("Possible duplicates detected in store", "version", version)
	}

	t := rows[i]
	return &t, nil
}

// ListByAccount lists transactions sent or received by account, newest first
func (r *MemoryRepository) ListByAccount(ctx context.Context, account string, page int) ([]models.Transaction, error) {
	skip, ok := pageOffset(page)
	if !ok {
		return []models.Transaction{}, nil
	}
	rows := r.snapshot()

	txs := make([]models.Transaction, 0, PageSize)
	for i := len(rows) - 1; i >= 0 && len(txs) < PageSize; i-- {
		t := rows[i]
		if t.Src != account && t.Dest != account {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		txs = append(txs, t)
	}
	return txs, nil
}

// Count returns the number of stored rows
func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(r.snapshot())), nil
}

// FirstVersion returns the lowest non-genesis version inside the window
func (r *MemoryRepository) FirstVersion(ctx context.Context, window *TimeRange) (uint64, bool, error) {
	for _, t := range r.snapshot() {
		if t.Version > 0 && window.Contains(t.ExpirationUnixtime) {
			return t.Version, true, nil
		}
	}
	return 0, false, nil
}

// ExpirationUnixtime returns the expiration timestamp of one version
func (r *MemoryRepository) ExpirationUnixtime(ctx context.Context, version uint64) (int64, bool, error) {
	rows := r.snapshot()
	i := sort.Search(len(rows), func(i int) bool { return rows[i].Version >= version })
	if i == len(rows) || rows[i].Version != version {
		return 0, false, nil
	}
	return rows[i].ExpirationUnixtime, true, nil
}

// ScanWindow calls fn for every row inside the window
func (r *MemoryRepository) ScanWindow(ctx context.Context, window *TimeRange, fn func(WindowRow) error) error {
	for _, t := range r.snapshot() {
		if !window.Contains(t.ExpirationUnixtime) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(WindowRow{
			Version: t.Version,
			Type:    t.Type,
			Src:     t.Src,
			Dest:    t.Dest,
			Amount:  t.Amount,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ScanAll calls fn for every row in version order
func (r *MemoryRepository) ScanAll(ctx context.Context, fn func(models.Transaction) error) error {
	for _, t := range r.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}
