// Package archive rotates the transaction store: it writes every row to a compressed
// snapshot file and only then clears the store.
package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"ledgerindex/internal/amount"
	"ledgerindex/internal/metrics"
	"ledgerindex/internal/models"
	"ledgerindex/internal/storage"
)

// ErrSnapshot is returned when the snapshot could not be written; the store is untouched
var ErrSnapshot = errors.New("snapshot failed")

const (
	// Format identifies snapshot files
	Format = "ledgerindex-transactions"
	// SchemaVersion is bumped whenever the row layout changes
	SchemaVersion = 1
	// Extension is appended to every snapshot file name
	Extension = ".jsonl.zst"
	// TimestampLayout is the UTC timestamp embedded in snapshot file names
	TimestampLayout = "20060102T150405.000Z"
)

// Header is the first line of a snapshot file
type Header struct {
	Format        string    `json:"format"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	AmountScale   int64     `json:"amount_scale"`
	Columns       []string  `json:"columns"`
}

// Archiver snapshots and resets a Repository
type Archiver struct {
	repo     storage.Repository
	basePath string
	now      func() time.Time
}

// NewArchiver creates an Archiver writing snapshots next to basePath
func NewArchiver(repo storage.Repository, basePath string) *Archiver {
	return &Archiver{
		repo:     repo,
		basePath: basePath,
		now:      time.Now,
	}
}

// Rotate writes a snapshot of every row and then resets the store. When the snapshot
// fails the store is left as it was and the returned error wraps ErrSnapshot.
func (a *Archiver) Rotate(ctx context.Context) (string, error) {
	path, rows, err := a.Snapshot(ctx)
	if err != nil {
		metrics.RotationsTotal.WithLabelValues("snapshot_failed").Inc()
		return "", err
	}

	if err := a.repo.Reset(ctx); err != nil {
		metrics.RotationsTotal.WithLabelValues("reset_failed").Inc()
		return path, fmt.Errorf("failed to reset store after snapshot %s: %w", path, err)
	}

	metrics.RotationsTotal.WithLabelValues("ok").Inc()
	slog.Info("Store rotated", "snapshot", path, "rows", rows)
	return path, nil
}

// Snapshot writes every row to a new snapshot file and returns its path and row count
func (a *Archiver) Snapshot(ctx context.Context) (string, int64, error) {
	start := a.now()
	path := a.basePath + "-" + start.UTC().Format(TimestampLayout) + Extension

	rows, err := a.write(ctx, path, start)
	if err != nil {
		slog.Error("Failed to write snapshot", "path", path, "error", err)
		return "", 0, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}

	metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	return path, rows, nil
}

func (a *Archiver) write(ctx context.Context, path string, createdAt time.Time) (rows int64, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	bw := bufio.NewWriter(zw)
	enc := json.NewEncoder(bw)

	header := Header{
		Format:        Format,
		SchemaVersion: SchemaVersion,
		CreatedAt:     createdAt.UTC(),
		AmountScale:   amount.Scale,
		Columns:       models.Columns,
	}
	if err := enc.Encode(header); err != nil {
		zw.Close()
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	err = a.repo.ScanAll(ctx, func(tx models.Transaction) error {
		rows++
		return enc.Encode(tx)
	})
	if err != nil {
		zw.Close()
		return 0, fmt.Errorf("failed to write rows: %w", err)
	}

	// The reset that follows is destructive, so the file must hold every stored row
	stored, err := a.repo.Count(ctx)
	if err != nil {
		zw.Close()
		return 0, fmt.Errorf("failed to count stored rows: %w", err)
	}
	if stored != rows {
		zw.Close()
		return 0, fmt.Errorf("snapshot holds %d rows but the store has %d", rows, stored)
	}

	if err := bw.Flush(); err != nil {
		zw.Close()
		return 0, fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish compression: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	return rows, nil
}
