package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledgerindex/internal/amount"
	"ledgerindex/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE for a primary key conflict
const uniqueViolation = "23505"

// PostgresRepository implements the Repository interface using PostgreSQL.
// Readers rely on MVCC: a query never observes a batch that has not committed,
// and never waits on the writer's transaction.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository and ensures the schema exists
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}
	if err := r.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// InsertBatch writes all rows in one transaction using COPY. Any failing row aborts
// the whole batch.
func (r *PostgresRepository) InsertBatch(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"transactions"},
		models.Columns,
		pgx.CopyFromSlice(len(txs), func(i int) ([]any, error) {
			return rowValues(&txs[i]), nil
		}),
	)
	if err != nil {
		return classifyWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyWriteError(err)
	}

	return nil
}

func classifyWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateVersion, pgErr.Detail)
	}
	return fmt.Errorf("failed to insert batch: %w", err)
}

func rowValues(t *models.Transaction) []any {
	return []any{
		int64(t.Version),
		t.ExpirationDate,
		t.Src,
		t.Dest,
		t.Type,
		amount.Encode(t.Amount),
		amount.Encode(t.GasPrice),
		amount.Encode(t.MaxGas),
		int64(t.SqNum),
		t.PubKey,
		t.ExpirationUnixtime,
		amount.Encode(t.GasUsed),
		t.SenderSig,
		t.SignedTxHash,
		t.StateRootHash,
		t.EventRootHash,
		t.CodeHex,
		t.Program,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (models.Transaction, error) {
	var (
		t                              models.Transaction
		version, sqNum                 int64
		amt, gasPrice, maxGas, gasUsed []byte
	)

	err := row.Scan(
		&version,
		&t.ExpirationDate,
		&t.Src,
		&t.Dest,
		&t.Type,
		&amt,
		&gasPrice,
		&maxGas,
		&sqNum,
		&t.PubKey,
		&t.ExpirationUnixtime,
		&gasUsed,
		&t.SenderSig,
		&t.SignedTxHash,
		&t.StateRootHash,
		&t.EventRootHash,
		&t.CodeHex,
		&t.Program,
	)
	if err != nil {
		return t, err
	}

	t.Version = uint64(version)
	t.SqNum = uint64(sqNum)

	fields := []struct {
		dst *uint64
		src []byte
		col string
	}{
		{&t.Amount, amt, "amount"},
		{&t.GasPrice, gasPrice, "gas_price"},
		{&t.MaxGas, maxGas, "max_gas"},
		{&t.GasUsed, gasUsed, "gas_used"},
	}
	for _, f := range fields {
		v, err := amount.Decode(f.src)
		if err != nil {
			return t, fmt.Errorf("failed to decode %s of version %d: %w", f.col, t.Version, err)
		}
		*f.dst = v
	}

	return t, nil
}

// LatestVersion returns the highest stored version; ok is false for an empty table
func (r *PostgresRepository) LatestVersion(ctx context.Context) (uint64, bool, error) {
	var v pgtype.Int8
	if err := r.pool.QueryRow(ctx, `SELECT MAX(version) FROM transactions`).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("failed to get latest version: %w", err)
	}
	if !v.Valid {
		return 0, false, nil
	}
	return uint64(v.Int64), true, nil
}

// GetByVersion retrieves a transaction by version. If more than one row carries the
// version the first is returned and the anomaly is logged.
func (r *PostgresRepository) GetByVersion(ctx context.Context, version uint64) (*models.Transaction, error) {
	query := `SELECT` + selectColumns + ` FROM transactions WHERE version = $1`

	rows, err := r.pool.Query(ctx, query, int64(version))
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get transaction: %w", err)
		}
		return nil, fmt.Errorf("%w: version %d", ErrNotFound, version)
	}

	t, err := scanTransaction(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if rows.Next() {
		slog.Warn("Possible duplicates detected in store", "version", version)
	}

	return &t, nil
}

// ListByAccount lists transactions sent or received by account, newest first
func (r *PostgresRepository) ListByAccount(ctx context.Context, account string, page int) ([]models.Transaction, error) {
	offset, ok := pageOffset(page)
	if !ok {
		return []models.Transaction{}, nil
	}

	query := `SELECT` + selectColumns + `
		FROM transactions
		WHERE src = $1 OR dest = $1
		ORDER BY version DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, account, PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list account transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]models.Transaction, 0, PageSize)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}

// Count returns the number of stored transactions
func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

func windowClause(window *TimeRange, args []any) (string, []any) {
	if window == nil {
		return "", args
	}
	n := len(args)
	clause := fmt.Sprintf(" AND expiration_unixtime >= $%d AND expiration_unixtime < $%d", n+1, n+2)
	return clause, append(args, window.From, window.To)
}

// FirstVersion returns the lowest non-genesis version inside the window
func (r *PostgresRepository) FirstVersion(ctx context.Context, window *TimeRange) (uint64, bool, error) {
	clause, args := windowClause(window, nil)
	query := `SELECT MIN(version) FROM transactions WHERE version > 0` + clause

	var v pgtype.Int8
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("failed to get first version: %w", err)
	}
	if !v.Valid {
		return 0, false, nil
	}
	return uint64(v.Int64), true, nil
}

// ExpirationUnixtime returns the expiration timestamp of one version
func (r *PostgresRepository) ExpirationUnixtime(ctx context.Context, version uint64) (int64, bool, error) {
	var ts int64
	err := r.pool.QueryRow(ctx,
		`SELECT expiration_unixtime FROM transactions WHERE version = $1 LIMIT 1`,
		int64(version),
	).Scan(&ts)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get expiration: %w", err)
	}
	return ts, true, nil
}

// ScanWindow streams the aggregation columns of every row inside the window
func (r *PostgresRepository) ScanWindow(ctx context.Context, window *TimeRange, fn func(WindowRow) error) error {
	clause, args := windowClause(window, nil)
	query := `SELECT version, type, src, dest, amount FROM transactions WHERE TRUE` + clause

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to scan window: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row     WindowRow
			version int64
			amt     []byte
		)
		if err := rows.Scan(&version, &row.Type, &row.Src, &row.Dest, &amt); err != nil {
			return fmt.Errorf("failed to scan window row: %w", err)
		}
		row.Version = uint64(version)
		if row.Amount, err = amount.Decode(amt); err != nil {
			return fmt.Errorf("failed to decode amount of version %d: %w", row.Version, err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating window: %w", err)
	}
	return nil
}

// ScanAll streams every row in version order from a single repeatable-read snapshot
func (r *PostgresRepository) ScanAll(ctx context.Context, fn func(models.Transaction) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT`+selectColumns+` FROM transactions ORDER BY version ASC`)
	if err != nil {
		return fmt.Errorf("failed to read transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return fmt.Errorf("failed to scan transaction: %w", err)
		}
		if err := fn(t); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating transactions: %w", err)
	}
	return nil
}

// Reset drops and recreates the schema in one transaction
func (r *PostgresRepository) Reset(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, dropStatement); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to recreate schema: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
