package stats

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledgerindex/internal/models"
	"ledgerindex/internal/storage"
)

var testNow = time.Unix(1_700_000_000, 0)

// txAt builds version v with the 10/80/10 type mix: every tenth version is a mint and
// versions ending in 5 are some other kind.
func txAt(v uint64, expiration int64) models.Transaction {
	tx := models.Transaction{
		Version:            v,
		Src:                fmt.Sprintf("src%d", v%4),
		Dest:               fmt.Sprintf("dest%d", v%7),
		Type:               models.TypePeerToPeer,
		Amount:             2_000_000,
		ExpirationUnixtime: expiration,
	}
	switch v % 10 {
	case 0:
		tx.Type = models.TypeMint
		tx.Amount = 1_000_000
	case 5:
		tx.Type = "rotate_authentication_key_transaction"
		tx.Amount = 500_000
	}
	return tx
}

func newAggregator(t *testing.T, txs []models.Transaction) *Aggregator {
	t.Helper()
	repo := storage.NewMemoryRepository()
	if err := repo.InsertBatch(context.Background(), txs); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	a := NewAggregator(repo, 100*time.Second, 600*time.Second)
	a.now = func() time.Time { return testNow }
	return a
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalc_TypeMix(t *testing.T) {
	var txs []models.Transaction
	for v := uint64(1); v <= 100; v++ {
		txs = append(txs, txAt(v, testNow.Unix()-50))
	}
	a := newAggregator(t, txs)

	tests := []struct {
		name       string
		window     time.Duration
		dhms       [4]int64
		throughput float64
	}{
		{"all time", 0, [4]int64{0, 0, 0, 50}, 2},
		{"24h", 24 * time.Hour, [4]int64{1, 0, 0, 0}, 100.0 / 86400},
		{"1h", time.Hour, [4]int64{0, 1, 0, 0}, 100.0 / 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := a.Calc(context.Background(), tt.window)
			if err != nil {
				t.Fatalf("Calc failed: %v", err)
			}

			if r.BlocksDelta != 100 {
				t.Errorf("BlocksDelta = %d, expected 100", r.BlocksDelta)
			}
			if got := [4]int64{r.Days, r.Hours, r.Minutes, r.Seconds}; got != tt.dhms {
				t.Errorf("elapsed = %v, expected %v", got, tt.dhms)
			}
			if !almostEqual(r.Throughput, tt.throughput) {
				t.Errorf("Throughput = %v, expected %v", r.Throughput, tt.throughput)
			}
			if r.MintPercent != 10 || r.P2PPercent != 80 || r.OtherPercent != 11 {
				t.Errorf("percentages = %v/%v/%v, expected 10/80/11", r.MintPercent, r.P2PPercent, r.OtherPercent)
			}
			if !r.MintSum.Equal(decimal.NewFromInt(10)) {
				t.Errorf("MintSum = %s, expected 10", r.MintSum)
			}
			if !r.P2PSum.Equal(decimal.NewFromInt(160)) {
				t.Errorf("P2PSum = %s, expected 160", r.P2PSum)
			}
			if !r.OtherSum.Equal(decimal.NewFromInt(5)) {
				t.Errorf("OtherSum = %s, expected 5", r.OtherSum)
			}
			if r.DistinctDest != 7 || r.DistinctSrc != 4 {
				t.Errorf("distinct dest/src = %d/%d, expected 7/4", r.DistinctDest, r.DistinctSrc)
			}
		})
	}
}

func TestCalc_WindowExcludesOldRows(t *testing.T) {
	var txs []models.Transaction
	for v := uint64(1); v <= 100; v++ {
		exp := testNow.Unix() - 50
		if v <= 50 {
			exp = testNow.Add(-2 * time.Hour).Unix()
		}
		txs = append(txs, txAt(v, exp))
	}
	a := newAggregator(t, txs)

	r, err := a.Calc(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Calc failed: %v", err)
	}

	// Versions 51..100: five mints, five others, forty p2p; no genesis adjustment
	if r.BlocksDelta != 50 {
		t.Errorf("BlocksDelta = %d, expected 50", r.BlocksDelta)
	}
	if r.MintPercent != 10 || r.P2PPercent != 80 || r.OtherPercent != 10 {
		t.Errorf("percentages = %v/%v/%v, expected 10/80/10", r.MintPercent, r.P2PPercent, r.OtherPercent)
	}

	all, err := a.Calc(context.Background(), 0)
	if err != nil {
		t.Fatalf("Calc failed: %v", err)
	}
	if all.BlocksDelta != 100 || all.Hours != 2 {
		t.Errorf("all-time BlocksDelta=%d hours=%d, expected 100 and 2", all.BlocksDelta, all.Hours)
	}
}

func TestCalc_DistinctIgnoresGenesis(t *testing.T) {
	genesis := models.Transaction{
		Version:            0,
		Src:                "genesis-src",
		Dest:               "genesis-dest",
		Type:               "genesis",
		ExpirationUnixtime: testNow.Unix() - 50,
	}
	txs := []models.Transaction{genesis}
	for v := uint64(1); v <= 20; v++ {
		txs = append(txs, txAt(v, testNow.Unix()-50))
	}
	a := newAggregator(t, txs)

	r, err := a.Calc(context.Background(), 0)
	if err != nil {
		t.Fatalf("Calc failed: %v", err)
	}
	if r.DistinctSrc != 4 || r.DistinctDest != 7 {
		t.Errorf("distinct src/dest = %d/%d, expected 4/7", r.DistinctSrc, r.DistinctDest)
	}
	if r.BlocksDelta != 20 {
		t.Errorf("BlocksDelta = %d, expected 20", r.BlocksDelta)
	}
}

func TestCalc_EmptyStore(t *testing.T) {
	a := newAggregator(t, nil)

	for _, w := range Windows {
		r, err := a.Calc(context.Background(), w)
		if err != nil {
			t.Fatalf("Calc(%v) failed: %v", w, err)
		}
		if r.BlocksDelta != 0 || r.MintPercent != 0 || r.OtherPercent != 0 {
			t.Errorf("window %v: expected zeroed result, got %+v", w, r)
		}
	}
}

func TestOverviewAndFields(t *testing.T) {
	var txs []models.Transaction
	for v := uint64(1); v <= 10; v++ {
		txs = append(txs, txAt(v, testNow.Unix()-50))
	}
	a := newAggregator(t, txs)

	results, err := a.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(results))
	}
	for i, w := range []time.Duration{0, 24 * time.Hour, time.Hour} {
		if results[i].Window != w {
			t.Errorf("result %d window = %v, expected %v", i, results[i].Window, w)
		}
	}

	fields := results[0].Fields()
	if len(fields) != 14 {
		t.Fatalf("expected 14 fields, got %d", len(fields))
	}
	if fields[0] != int64(10) {
		t.Errorf("first field should be BlocksDelta, got %v", fields[0])
	}
	if fields[13] != results[0].DistinctSrc {
		t.Errorf("last field should be DistinctSrc, got %v", fields[13])
	}
}

func TestSplitDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want [4]int64
	}{
		{0, [4]int64{0, 0, 0, 0}},
		{90061 * time.Second, [4]int64{1, 1, 1, 1}},
		{1500 * time.Millisecond, [4]int64{0, 0, 0, 1}},
		{-time.Second, [4]int64{-1, 23, 59, 59}},
	}

	for _, tt := range tests {
		d, h, m, s := splitDuration(tt.in)
		if got := [4]int64{d, h, m, s}; got != tt.want {
			t.Errorf("splitDuration(%v) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}
