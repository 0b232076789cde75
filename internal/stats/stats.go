// Package stats computes windowed ledger statistics from the local store.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"ledgerindex/internal/amount"
	"ledgerindex/internal/models"
	"ledgerindex/internal/storage"
)

// Windows are the periods reported by Overview; zero means all time
var Windows = []time.Duration{0, 24 * time.Hour, time.Hour}

// Result holds the statistics of one window. Field order is part of the output contract,
// see Fields.
type Result struct {
	Window       time.Duration
	BlocksDelta  int64
	Days         int64
	Hours        int64
	Minutes      int64
	Seconds      int64
	Throughput   float64
	MintPercent  float64
	P2PPercent   float64
	OtherPercent float64
	MintSum      decimal.Decimal
	P2PSum       decimal.Decimal
	OtherSum     decimal.Decimal
	DistinctDest int64
	DistinctSrc  int64
}

// Fields returns the statistics positionally, in the fixed output order
func (r *Result) Fields() []interface{} {
	return []interface{}{
		r.BlocksDelta,
		r.Days, r.Hours, r.Minutes, r.Seconds,
		r.Throughput,
		r.MintPercent, r.P2PPercent, r.OtherPercent,
		r.MintSum, r.P2PSum, r.OtherSum,
		r.DistinctDest, r.DistinctSrc,
	}
}

// Aggregator reads the store and never writes to it
type Aggregator struct {
	repo       storage.Repository
	startSlack time.Duration
	endSlack   time.Duration
	now        func() time.Time
}

// NewAggregator creates an Aggregator. The window [now-window+startSlack, now+endSlack)
// is matched against transaction expiration times.
func NewAggregator(repo storage.Repository, startSlack, endSlack time.Duration) *Aggregator {
	return &Aggregator{
		repo:       repo,
		startSlack: startSlack,
		endSlack:   endSlack,
		now:        time.Now,
	}
}

// Overview computes all-time, 24h and 1h statistics in that order
func (a *Aggregator) Overview(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, 0, len(Windows))
	for _, w := range Windows {
		r, err := a.Calc(ctx, w)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Calc computes the statistics of one window; window 0 covers the whole store
func (a *Aggregator) Calc(ctx context.Context, window time.Duration) (*Result, error) {
	now := a.now()
	ts := now.Unix()

	var tr *storage.TimeRange
	if window > 0 {
		tr = &storage.TimeRange{
			From: ts - int64(window/time.Second) + int64(a.startSlack/time.Second),
			To:   ts + int64(a.endSlack/time.Second),
		}
	}

	first, ok, err := a.repo.FirstVersion(ctx, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to get first version: %w", err)
	}
	if !ok {
		first = 1
	}

	last, _, err := a.repo.LatestVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}

	elapsed := window
	if window == 0 {
		firstTs, ok, err := a.repo.ExpirationUnixtime(ctx, first)
		if err != nil {
			return nil, fmt.Errorf("failed to get first block time: %w", err)
		}
		if ok {
			elapsed = now.Sub(time.Unix(firstTs, 0))
		}
	}

	res := &Result{
		Window:      window,
		BlocksDelta: int64(last) - int64(first) + 1,
	}
	res.Days, res.Hours, res.Minutes, res.Seconds = splitDuration(elapsed)

	var mint, p2p, other int64
	var mintSum, p2pSum, otherSum amount.Total
	dests := make(map[string]struct{})
	srcs := make(map[string]struct{})

	err = a.repo.ScanWindow(ctx, tr, func(row storage.WindowRow) error {
		switch models.ClassOf(row.Type) {
		case models.ClassMint:
			mint++
			mintSum.Add(row.Amount)
		case models.ClassPeerToPeer:
			p2p++
			p2pSum.Add(row.Amount)
		default:
			other++
			otherSum.Add(row.Amount)
		}

		if row.Version != 0 {
			dests[row.Dest] = struct{}{}
			srcs[row.Src] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan window: %w", err)
	}

	// Genesis is not stored as a regular transaction
	if first == 1 {
		other++
	}

	res.MintSum = mintSum.Decimal()
	res.P2PSum = p2pSum.Decimal()
	res.OtherSum = otherSum.Decimal()
	res.DistinctDest = int64(len(dests))
	res.DistinctSrc = int64(len(srcs))
	res.Throughput = ratio(float64(res.BlocksDelta), elapsed.Seconds())
	res.MintPercent = ratio(100*float64(mint), float64(res.BlocksDelta))
	res.P2PPercent = ratio(100*float64(p2p), float64(res.BlocksDelta))
	res.OtherPercent = ratio(100*float64(other), float64(res.BlocksDelta))

	slog.Debug("Stats calculated",
		"window", window,
		"first_version", first,
		"last_version", last,
		"blocks_delta", res.BlocksDelta,
		"mint", mint,
		"p2p", p2p,
		"other", other)

	return res, nil
}

// splitDuration breaks d into whole days, hours, minutes and seconds. Negative
// durations floor to a negative day count with non-negative remainders.
func splitDuration(d time.Duration) (days, hours, minutes, seconds int64) {
	total := int64(d / time.Second)
	if d < 0 && d%time.Second != 0 {
		total--
	}

	days = total / 86400
	rem := total % 86400
	if rem < 0 {
		days--
		rem += 86400
	}
	return days, rem / 3600, (rem / 60) % 60, rem % 60
}

// ratio returns 0 instead of dividing by zero
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
