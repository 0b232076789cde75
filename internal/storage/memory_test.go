package storage

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"ledgerindex/internal/models"
)

const (
	alice = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	carol = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
)

func makeTx(version uint64, src, dest string) models.Transaction {
	return models.Transaction{
		Version:            version,
		Src:                src,
		Dest:               dest,
		Type:               models.TypePeerToPeer,
		Amount:             version * 1_000_000,
		ExpirationUnixtime: int64(1_600_000_000 + version),
	}
}

func makeRange(from, to uint64) []models.Transaction {
	var txs []models.Transaction
	for v := from; v <= to; v++ {
		txs = append(txs, makeTx(v, alice, bob))
	}
	return txs
}

func TestMemoryRepository_LatestVersionEmpty(t *testing.T) {
	repo := NewMemoryRepository()

	v, ok, err := repo.LatestVersion(context.Background())
	if err != nil {
		t.Fatalf("expected no error on empty store, got %v", err)
	}
	if ok || v != 0 {
		t.Errorf("expected absent latest version, got %d (ok=%v)", v, ok)
	}
}

func TestMemoryRepository_InsertBatchAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if err := repo.InsertBatch(ctx, makeRange(1, 10)); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}

	// 11..15 are new but 10 is already stored, so nothing may land
	batch := append(makeRange(11, 15), makeTx(10, alice, bob))
	err := repo.InsertBatch(ctx, batch)
	if !errors.Is(err, ErrDuplicateVersion) {
		t.Fatalf("expected ErrDuplicateVersion, got %v", err)
	}

	n, _ := repo.Count(ctx)
	if n != 10 {
		t.Errorf("expected 10 rows after rejected batch, got %d", n)
	}
	if _, err := repo.GetByVersion(ctx, 11); !errors.Is(err, ErrNotFound) {
		t.Errorf("version 11 should not exist after rejected batch, got %v", err)
	}

	// Duplicates inside one batch are rejected too
	err = repo.InsertBatch(ctx, []models.Transaction{makeTx(20, alice, bob), makeTx(20, alice, bob)})
	if !errors.Is(err, ErrDuplicateVersion) {
		t.Errorf("expected in-batch duplicate to be rejected, got %v", err)
	}

	latest, ok, err := repo.LatestVersion(ctx)
	if err != nil || !ok || latest != 10 {
		t.Errorf("expected latest 10, got %d ok=%v err=%v", latest, ok, err)
	}
}

func TestMemoryRepository_OutOfOrderBatchStaysSorted(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if err := repo.InsertBatch(ctx, makeRange(5, 6)); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertBatch(ctx, makeRange(1, 2)); err != nil {
		t.Fatal(err)
	}

	var got []uint64
	repo.ScanAll(ctx, func(tx models.Transaction) error {
		got = append(got, tx.Version)
		return nil
	})
	want := []uint64{1, 2, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMemoryRepository_GetByVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	repo.InsertBatch(ctx, makeRange(1, 3))

	tx, err := repo.GetByVersion(ctx, 2)
	if err != nil {
		t.Fatalf("expected version 2, got error %v", err)
	}
	if tx.Version != 2 || tx.Amount != 2_000_000 {
		t.Errorf("unexpected row: %+v", tx)
	}

	if _, err := repo.GetByVersion(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepository_DuplicateVersionTolerance(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	repo.InsertBatch(ctx, makeRange(1, 3))

	// Seed an anomaly that InsertBatch would never allow
	first := makeTx(4, alice, bob)
	second := makeTx(4, carol, bob)
	repo.rows = append(repo.rows, first, second)

	tx, err := repo.GetByVersion(ctx, 4)
	if err != nil {
		t.Fatalf("duplicate version must not fail, got %v", err)
	}
	if tx.Src != alice {
		t.Errorf("expected the first duplicate row (src %s), got src %s", alice, tx.Src)
	}
}

func TestMemoryRepository_ListByAccountPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	// 150 rows touching alice, interleaved with 50 unrelated rows
	var txs []models.Transaction
	for v := uint64(1); v <= 200; v++ {
		switch {
		case v%4 == 0:
			txs = append(txs, makeTx(v, bob, carol))
		case v%2 == 0:
			txs = append(txs, makeTx(v, bob, alice))
		default:
			txs = append(txs, makeTx(v, alice, carol))
		}
	}
	if err := repo.InsertBatch(ctx, txs); err != nil {
		t.Fatal(err)
	}

	page0, err := repo.ListByAccount(ctx, alice, 0)
	if err != nil {
		t.Fatal(err)
	}
	page1, err := repo.ListByAccount(ctx, alice, 1)
	if err != nil {
		t.Fatal(err)
	}
	page2, _ := repo.ListByAccount(ctx, alice, 2)

	if len(page0) != 100 {
		t.Errorf("expected 100 rows on page 0, got %d", len(page0))
	}
	if len(page1) != 50 {
		t.Errorf("expected 50 rows on page 1, got %d", len(page1))
	}
	if len(page2) != 0 {
		t.Errorf("expected empty page 2, got %d", len(page2))
	}

	seen := make(map[uint64]bool)
	all := append(append([]models.Transaction{}, page0...), page1...)
	for i, tx := range all {
		if tx.Src != alice && tx.Dest != alice {
			t.Fatalf("row %d does not involve the account", tx.Version)
		}
		if seen[tx.Version] {
			t.Fatalf("version %d appears on both pages", tx.Version)
		}
		seen[tx.Version] = true
		if i > 0 && all[i-1].Version <= tx.Version {
			t.Fatalf("rows not in descending version order at index %d", i)
		}
	}

	negative, _ := repo.ListByAccount(ctx, alice, -3)
	if len(negative) != 100 || negative[0].Version != page0[0].Version {
		t.Errorf("negative page should behave as page 0")
	}

	for _, page := range []int{MaxPage, MaxPage + 1, ParsePage("184467440737095517"), math.MaxInt} {
		rows, err := repo.ListByAccount(ctx, alice, page)
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if len(rows) != 0 {
			t.Errorf("page %d returned %d rows starting at version %d", page, len(rows), rows[0].Version)
		}
	}
}

func TestPageOffset(t *testing.T) {
	tests := []struct {
		page   int
		offset int
		ok     bool
	}{
		{-1, 0, true},
		{0, 0, true},
		{2, 200, true},
		{MaxPage, MaxPage * PageSize, true},
		{MaxPage + 1, 0, false},
		{math.MaxInt, 0, false},
	}

	for _, tt := range tests {
		offset, ok := pageOffset(tt.page)
		if offset != tt.offset || ok != tt.ok {
			t.Errorf("pageOffset(%d) = %d, %v; expected %d, %v", tt.page, offset, ok, tt.offset, tt.ok)
		}
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"0", 0},
		{"3", 3},
		{" 2 ", 2},
		{"-1", 0},
		{"abc", 0},
		{"1; DROP TABLE transactions", 0},
	}

	for _, tt := range tests {
		if got := ParsePage(tt.in); got != tt.want {
			t.Errorf("ParsePage(%q) = %d, expected %d", tt.in, got, tt.want)
		}
	}
}

func TestMemoryRepository_WindowQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	repo.InsertBatch(ctx, makeRange(0, 10)) // expirations 1_600_000_000 .. +10

	window := &TimeRange{From: 1_600_000_003, To: 1_600_000_008}

	first, ok, err := repo.FirstVersion(ctx, window)
	if err != nil || !ok || first != 3 {
		t.Errorf("expected first version 3 in window, got %d ok=%v err=%v", first, ok, err)
	}

	all, ok, _ := repo.FirstVersion(ctx, nil)
	if !ok || all != 1 {
		t.Errorf("expected first non-genesis version 1, got %d", all)
	}

	_, ok, _ = repo.FirstVersion(ctx, &TimeRange{From: 0, To: 10})
	if ok {
		t.Error("expected no version in an empty window")
	}

	var versions []string
	repo.ScanWindow(ctx, window, func(row WindowRow) error {
		versions = append(versions, strconv.FormatUint(row.Version, 10))
		return nil
	})
	if got := strings.Join(versions, ","); got != "3,4,5,6,7" {
		t.Errorf("unexpected window rows: %s", got)
	}

	ts, ok, _ := repo.ExpirationUnixtime(ctx, 5)
	if !ok || ts != 1_600_000_005 {
		t.Errorf("expected expiration of version 5, got %d ok=%v", ts, ok)
	}
}

func TestMemoryRepository_Reset(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	repo.InsertBatch(ctx, makeRange(1, 5))

	if err := repo.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := repo.Count(ctx); n != 0 {
		t.Errorf("expected empty store after reset, got %d rows", n)
	}
	if err := repo.InsertBatch(ctx, makeRange(1, 2)); err != nil {
		t.Errorf("versions must be insertable again after reset: %v", err)
	}
}
