package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"ledgerindex/internal/ledger/retry"
	"ledgerindex/internal/metrics"
	"ledgerindex/internal/models"
	"ledgerindex/internal/storage"
)

// State is the sync engine's current activity
type State string

const (
	StateInitializing State = "initializing"
	StateCatchingUp   State = "catching_up"
	StateSteady       State = "steady"
	StateRotating     State = "rotating"
	StateErrorBackoff State = "error_backoff"
)

var states = []State{StateInitializing, StateCatchingUp, StateSteady, StateRotating, StateErrorBackoff}

// ErrNotConnected is returned by AccountState before the ledger connection is up
var ErrNotConnected = errors.New("ledger client not connected")

// Rotator archives and clears the store when the local copy runs ahead of the remote
type Rotator interface {
	Rotate(ctx context.Context) (string, error)
}

// DialFunc opens a ledger connection
type DialFunc func(ctx context.Context) (Client, error)

// Config holds the sync loop tuning
type Config struct {
	MaxBatch          uint64
	DivergeTolerance  uint64
	OriginVersion     uint64
	ConnectInterval   time.Duration
	ConnectMaxRetries int
	HeadRetryDelay    time.Duration
	LagDelay          time.Duration
	EmptyBatchDelay   time.Duration
	RestartDelay      time.Duration
	RatePerRecord     time.Duration
}

// DefaultConfig returns the stock tuning
func DefaultConfig() Config {
	return Config{
		MaxBatch:          1000,
		DivergeTolerance:  50,
		OriginVersion:     1,
		ConnectInterval:   10 * time.Second,
		ConnectMaxRetries: -1,
		HeadRetryDelay:    time.Second,
		LagDelay:          time.Second,
		EmptyBatchDelay:   5 * time.Second,
		RestartDelay:      2 * time.Second,
		RatePerRecord:     time.Millisecond,
	}
}

// Engine pulls committed transactions from the remote ledger into the store. It is the
// store's only writer; the cursor (next version to fetch) only moves after a commit.
type Engine struct {
	cfg     Config
	dial    DialFunc
	repo    storage.Repository
	rotator Rotator
	commit  retry.Strategy
	connect retry.Strategy
	sleep   func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	client Client
	codec  *Codec
	state  State

	curVer uint64
}

// NewEngine creates a new Engine instance
func NewEngine(cfg Config, dial DialFunc, repo storage.Repository, rotator Rotator, commit retry.Strategy) *Engine {
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = 1
	}
	if commit == nil {
		commit = retry.NewNoRetryStrategy(0)
	}

	e := &Engine{
		cfg:     cfg,
		dial:    dial,
		repo:    repo,
		rotator: rotator,
		commit:  commit,
		connect: retry.NewFixedIntervalStrategy(cfg.ConnectMaxRetries, cfg.ConnectInterval),
		sleep:   sleepContext,
	}
	e.setState(StateInitializing)
	return e
}

// State returns the current engine state
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	changed := e.state != s
	e.state = s
	e.mu.Unlock()

	if changed {
		for _, st := range states {
			v := 0.0
			if st == s {
				v = 1
			}
			metrics.EngineState.WithLabelValues(string(st)).Set(v)
		}
		slog.Debug("Engine state changed", "state", s)
	}
}

// AccountState looks an account up on the remote ledger through the engine's connection
func (e *Engine) AccountState(ctx context.Context, address string) (*models.AccountState, error) {
	e.mu.RLock()
	c := e.client
	e.mu.RUnlock()

	if c == nil {
		return nil, ErrNotConnected
	}
	return c.AccountState(ctx, address)
}

// Run connects and then syncs until ctx is cancelled. It returns an error only when the
// connection could not be established within the configured attempts.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("Starting sync engine",
		"origin_version", e.cfg.OriginVersion,
		"max_batch", e.cfg.MaxBatch,
		"diverge_tolerance", e.cfg.DivergeTolerance)

	if err := e.initialize(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer e.close()

	for {
		if ctx.Err() != nil {
			slog.Info("Context cancelled, stopping sync engine")
			return nil
		}

		delay, err := e.safeStep(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("Sync iteration failed, restarting", "error", err, "restart_in", e.cfg.RestartDelay)
			metrics.ErrorsTotal.WithLabelValues("iteration").Inc()
			e.setState(StateErrorBackoff)

			if e.sleep(ctx, e.cfg.RestartDelay) != nil {
				return nil
			}
			if err := e.loadCursor(ctx); err != nil {
				slog.Error("Failed to reload cursor", "error", err)
			}
			continue
		}

		if e.sleep(ctx, delay) != nil {
			return nil
		}
	}
}

func (e *Engine) initialize(ctx context.Context) error {
	e.setState(StateInitializing)

	err := e.connect.Execute(ctx, func(ctx context.Context) error {
		c, err := e.dial(ctx)
		if err != nil {
			metrics.ErrorsTotal.WithLabelValues("connect").Inc()
			return err
		}
		if err := e.loadCursor(ctx); err != nil {
			c.Close()
			return err
		}

		e.mu.Lock()
		e.client = c
		e.codec = NewCodec(c.MintAccount())
		e.mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sync engine: %w", err)
	}

	e.setState(StateCatchingUp)
	slog.Info("Sync engine initialized", "cursor", e.curVer)
	return nil
}

func (e *Engine) close() {
	e.mu.Lock()
	c := e.client
	e.client = nil
	e.mu.Unlock()

	if c != nil {
		if err := c.Close(); err != nil {
			slog.Warn("Failed to close ledger client", "error", err)
		}
	}
}

// loadCursor re-derives the cursor from the store
func (e *Engine) loadCursor(ctx context.Context) error {
	latest, ok, err := e.repo.LatestVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cursor: %w", err)
	}

	if !ok {
		e.curVer = e.cfg.OriginVersion
		metrics.LocalHead.Set(0)
		return nil
	}

	e.curVer = latest + 1
	metrics.LocalHead.Set(float64(latest))
	return nil
}

func (e *Engine) safeStep(ctx context.Context) (delay time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic in sync iteration", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic in sync iteration: %v", r)
		}
	}()
	return e.step(ctx)
}

// step runs one iteration and returns how long to wait before the next one
func (e *Engine) step(ctx context.Context) (time.Duration, error) {
	bver, err := e.client.LatestVersion(ctx)
	if err != nil {
		return e.transportBackoff(err, "head")
	}
	metrics.RemoteHead.Set(float64(bver))

	if e.curVer > bver+e.cfg.DivergeTolerance {
		return e.rotate(ctx, bver)
	}
	if e.curVer > bver {
		metrics.Lag.Set(0)
		e.setState(StateSteady)
		return e.cfg.LagDelay, nil
	}

	lag := bver - e.curVer + 1
	metrics.Lag.Set(float64(lag))
	batchSize := min(e.cfg.MaxBatch, lag)

	start := time.Now()
	page, err := e.client.FetchRange(ctx, e.curVer, batchSize)
	if err != nil {
		return e.transportBackoff(err, "fetch")
	}
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	txs, err := e.codec.DecodePage(page, e.curVer)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("decode").Inc()
	}
	if len(txs) == 0 {
		slog.Debug("No decodable transactions in batch", "cursor", e.curVer, "requested", batchSize)
		return e.cfg.EmptyBatchDelay, nil
	}

	if err := e.commitBatch(ctx, txs); err != nil {
		if !errors.Is(err, storage.ErrDuplicateVersion) {
			return 0, err
		}
		slog.Warn("Duplicate version rejected by store, resyncing cursor", "cursor", e.curVer, "error", err)
		metrics.AnomaliesTotal.WithLabelValues("duplicate_version").Inc()
		if err := e.loadCursor(ctx); err != nil {
			return 0, err
		}
		return 0, nil
	}

	last := txs[len(txs)-1].Version
	e.curVer = last + 1
	metrics.LocalHead.Set(float64(last))
	metrics.Lag.Set(float64(bver - last))

	if batchSize == e.cfg.MaxBatch {
		e.setState(StateCatchingUp)
	} else {
		e.setState(StateSteady)
	}

	if last%10000 < uint64(len(txs)) {
		slog.Info("Sync progress", "version", last, "remote_version", bver, "batch", len(txs))
	} else {
		slog.Debug("Batch committed", "first", txs[0].Version, "last", last, "remote_version", bver)
	}

	return e.cfg.RatePerRecord * time.Duration(batchSize), nil
}

func (e *Engine) transportBackoff(err error, op string) (time.Duration, error) {
	if !errors.Is(err, ErrTransport) {
		return 0, err
	}
	slog.Warn("Ledger call failed, backing off", "op", op, "cursor", e.curVer, "error", err)
	metrics.ErrorsTotal.WithLabelValues("transport").Inc()
	e.setState(StateErrorBackoff)
	return e.cfg.HeadRetryDelay, nil
}

// commitBatch stores txs atomically; it finishes even when ctx is cancelled mid-way
func (e *Engine) commitBatch(ctx context.Context, txs []models.Transaction) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	err := e.commit.Execute(ctx, func(ctx context.Context) error {
		return e.repo.InsertBatch(ctx, txs)
	})
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("store").Inc()
		return fmt.Errorf("failed to commit batch at version %d: %w", txs[0].Version, err)
	}

	metrics.CommitDuration.Observe(time.Since(start).Seconds())
	metrics.BatchSize.Observe(float64(len(txs)))
	metrics.BatchesCommitted.Inc()
	metrics.VersionsCommitted.Add(float64(len(txs)))
	for i := range txs {
		metrics.TransactionsByType.WithLabelValues(classLabel(txs[i].Class())).Inc()
	}
	return nil
}

func (e *Engine) rotate(ctx context.Context, bver uint64) (time.Duration, error) {
	e.setState(StateRotating)
	slog.Warn("Local store is ahead of the remote ledger, rotating",
		"cursor", e.curVer,
		"remote_version", bver,
		"tolerance", e.cfg.DivergeTolerance)

	path, err := e.rotator.Rotate(context.WithoutCancel(ctx))
	if err != nil {
		slog.Error("Rotation failed, keeping store", "error", err, "snapshot", path)
		metrics.ErrorsTotal.WithLabelValues("rotation").Inc()
		e.setState(StateErrorBackoff)
		if err := e.loadCursor(ctx); err != nil {
			return 0, err
		}
		return e.cfg.RestartDelay, nil
	}

	e.curVer = e.cfg.OriginVersion
	metrics.LocalHead.Set(0)
	e.setState(StateCatchingUp)
	slog.Info("Rotation complete, resyncing from origin", "snapshot", path, "origin_version", e.curVer)
	return 0, nil
}

func classLabel(c models.TxClass) string {
	switch c {
	case models.ClassMint:
		return "mint"
	case models.ClassPeerToPeer:
		return "p2p"
	default:
		return "other"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
