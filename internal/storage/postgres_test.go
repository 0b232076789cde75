package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"ledgerindex/internal/models"
)

// newTestPostgres connects to TEST_DATABASE_URL and starts from an empty table
func newTestPostgres(t *testing.T) *PostgresRepository {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	repo, err := NewPostgresRepository(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	if err := repo.Reset(ctx); err != nil {
		t.Fatalf("failed to reset schema: %v", err)
	}
	return repo
}

func TestPostgresRepository_RoundTrip(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()

	if _, ok, err := repo.LatestVersion(ctx); err != nil || ok {
		t.Fatalf("expected empty table, got ok=%v err=%v", ok, err)
	}

	want := makeTx(7, alice, bob)
	want.GasPrice = 1
	want.MaxGas = 1<<64 - 1
	want.CodeHex = "00000000  01 02  |..|\n"
	want.Program = `{"code":"0102"}`
	if err := repo.InsertBatch(ctx, []models.Transaction{want}); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	got, err := repo.GetByVersion(ctx, 7)
	if err != nil {
		t.Fatalf("GetByVersion failed: %v", err)
	}
	if *got != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *got, want)
	}

	if _, err := repo.GetByVersion(ctx, 8); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresRepository_BatchSemantics(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()

	if err := repo.InsertBatch(ctx, makeRange(1, 150)); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	err := repo.InsertBatch(ctx, append(makeRange(151, 160), makeTx(150, alice, bob)))
	if !errors.Is(err, ErrDuplicateVersion) {
		t.Fatalf("expected ErrDuplicateVersion, got %v", err)
	}
	if n, _ := repo.Count(ctx); n != 150 {
		t.Errorf("expected rejected batch to leave 150 rows, got %d", n)
	}

	latest, ok, err := repo.LatestVersion(ctx)
	if err != nil || !ok || latest != 150 {
		t.Errorf("LatestVersion = %d ok=%v err=%v", latest, ok, err)
	}

	page0, _ := repo.ListByAccount(ctx, alice, 0)
	page1, _ := repo.ListByAccount(ctx, alice, 1)
	if len(page0) != 100 || len(page1) != 50 {
		t.Fatalf("pages = %d/%d, expected 100/50", len(page0), len(page1))
	}
	if page0[0].Version != 150 || page1[0].Version != 50 || page1[49].Version != 1 {
		t.Errorf("pages not in descending order")
	}

	window := &TimeRange{From: 1_600_000_010, To: 1_600_000_020}
	first, ok, _ := repo.FirstVersion(ctx, window)
	if !ok || first != 10 {
		t.Errorf("FirstVersion = %d ok=%v, expected 10", first, ok)
	}

	rows := 0
	repo.ScanWindow(ctx, window, func(WindowRow) error { rows++; return nil })
	if rows != 10 {
		t.Errorf("ScanWindow yielded %d rows, expected 10", rows)
	}

	var last uint64
	repo.ScanAll(ctx, func(tx models.Transaction) error {
		if tx.Version != last+1 {
			return errors.New("out of order")
		}
		last = tx.Version
		return nil
	})
	if last != 150 {
		t.Errorf("ScanAll ended at %d, expected 150", last)
	}
}
