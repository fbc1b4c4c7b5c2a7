package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pump-signals/internal/domain"
	"pump-signals/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL. Monetary
// fields are persisted as exact decimal strings and the outcome as embedded
// JSONB. Read-modify-write sequences run inside row-locking transactions.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `
	id, subject_token, token_name, token_symbol, creator_address,
	trigger_tx_signature, signal_time, entry_progress_pct,
	entry_liquidity, entry_market_cap, entry_price, simulated_buy,
	status, outcome, created_at, updated_at`

const upsertSignalSQL = `
	INSERT INTO signals (
		id, subject_token, token_name, token_symbol, creator_address,
		trigger_tx_signature, signal_time, entry_progress_pct,
		entry_liquidity, entry_market_cap, entry_price, simulated_buy,
		status, outcome, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
	)
	ON CONFLICT (id) DO UPDATE SET
		subject_token        = EXCLUDED.subject_token,
		token_name           = EXCLUDED.token_name,
		token_symbol         = EXCLUDED.token_symbol,
		creator_address      = EXCLUDED.creator_address,
		trigger_tx_signature = EXCLUDED.trigger_tx_signature,
		signal_time          = EXCLUDED.signal_time,
		entry_progress_pct   = EXCLUDED.entry_progress_pct,
		entry_liquidity      = EXCLUDED.entry_liquidity,
		entry_market_cap     = EXCLUDED.entry_market_cap,
		entry_price          = EXCLUDED.entry_price,
		simulated_buy        = EXCLUDED.simulated_buy,
		status               = EXCLUDED.status,
		outcome              = EXCLUDED.outcome,
		created_at           = EXCLUDED.created_at,
		updated_at           = EXCLUDED.updated_at`

// Save upserts a signal by id.
func (s *SignalStore) Save(ctx context.Context, sig *domain.Signal) error {
	if sig == nil || sig.ID == "" {
		return storage.ErrInvalidInput
	}

	args, err := signalArgs(sig)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, upsertSignalSQL, args...); err != nil {
		return fmt.Errorf("upsert signal: %w", err)
	}
	return nil
}

// GetByID retrieves a signal by its id. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, id string) (*domain.Signal, error) {
	query := `SELECT` + signalColumns + ` FROM signals WHERE id = $1`

	sig, err := scanSignal(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by id: %w", err)
	}
	return sig, nil
}

// GetByToken retrieves all signals for a token, ordered by signal_time DESC.
func (s *SignalStore) GetByToken(ctx context.Context, token string) ([]*domain.Signal, error) {
	query := `SELECT` + signalColumns + `
		FROM signals
		WHERE subject_token = $1
		ORDER BY signal_time DESC, id`

	rows, err := s.pool.Query(ctx, query, token)
	if err != nil {
		return nil, fmt.Errorf("get signals by token: %w", err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

// GetByStatus retrieves up to limit signals in status, signal_time ASC.
func (s *SignalStore) GetByStatus(ctx context.Context, status domain.SignalStatus, limit int) ([]*domain.Signal, error) {
	query := `SELECT` + signalColumns + `
		FROM signals
		WHERE status = $1
		ORDER BY signal_time, id`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get signals by status: %w", err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

// GetRecent retrieves up to limit signals with signal_time >= since.
func (s *SignalStore) GetRecent(ctx context.Context, since time.Time, limit int) ([]*domain.Signal, error) {
	query := `SELECT` + signalColumns + `
		FROM signals
		WHERE signal_time >= $1
		ORDER BY signal_time DESC, id`
	args := []any{since}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recent signals: %w", err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

// Update applies fn to the stored signal inside a row-locking transaction.
func (s *SignalStore) Update(ctx context.Context, id string, fn func(*domain.Signal) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT` + signalColumns + ` FROM signals WHERE id = $1 FOR UPDATE`
		sig, err := scanSignal(tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("lock signal: %w", err)
		}

		if err := fn(sig); err != nil {
			return err
		}
		return upsertInTx(ctx, tx, sig)
	})
}

// UpdateLatestPending applies fn to the newest pending signal for token.
func (s *SignalStore) UpdateLatestPending(ctx context.Context, token string, fn func(*domain.Signal) error) (*domain.Signal, error) {
	var updated *domain.Signal
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT` + signalColumns + `
			FROM signals
			WHERE subject_token = $1 AND status = $2
			ORDER BY signal_time DESC, created_at DESC, id DESC
			LIMIT 1
			FOR UPDATE`

		sig, err := scanSignal(tx.QueryRow(ctx, query, token, string(domain.StatusPending)))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("lock latest pending signal: %w", err)
		}

		if err := fn(sig); err != nil {
			return err
		}
		if err := upsertInTx(ctx, tx, sig); err != nil {
			return err
		}
		updated = sig
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateAllPending applies fn to every pending signal for token.
func (s *SignalStore) UpdateAllPending(ctx context.Context, token string, fn func(*domain.Signal) error) ([]*domain.Signal, error) {
	var updated []*domain.Signal
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT` + signalColumns + `
			FROM signals
			WHERE subject_token = $1 AND status = $2
			ORDER BY signal_time DESC, id
			FOR UPDATE`

		rows, err := tx.Query(ctx, query, token, string(domain.StatusPending))
		if err != nil {
			return fmt.Errorf("lock pending signals: %w", err)
		}
		signals, err := collectSignals(rows)
		if err != nil {
			return err
		}

		for _, sig := range signals {
			if err := fn(sig); err != nil {
				return err
			}
			if err := upsertInTx(ctx, tx, sig); err != nil {
				return err
			}
			updated = append(updated, sig)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

const statusCountsSQL = `SELECT status, COUNT(*) FROM signals GROUP BY status`

const pnlSummarySQL = `
	SELECT
		COUNT(*),
		AVG((outcome->>'simulated_pnl_pct')::double precision),
		MIN((outcome->>'simulated_pnl_pct')::double precision),
		MAX((outcome->>'simulated_pnl_pct')::double precision),
		COUNT(*) FILTER (WHERE (outcome->>'simulated_pnl_pct')::double precision > 0),
		COUNT(*) FILTER (WHERE (outcome->>'simulated_pnl_pct')::double precision <= 0)
	FROM signals
	WHERE status = $1
	  AND outcome->>'simulated_pnl_pct' IS NOT NULL`

// Stats returns counts by status and the migrated-only PnL summary.
func (s *SignalStore) Stats(ctx context.Context) (*domain.SignalStats, error) {
	stats := &domain.SignalStats{
		ByStatus: make(map[domain.SignalStatus]int),
	}

	rows, err := s.pool.Query(ctx, statusCountsSQL)
	if err != nil {
		return nil, fmt.Errorf("count signals by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[domain.SignalStatus(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	var completed, winners, losers int
	var mean, minPct, maxPct sql.NullFloat64
	err = s.pool.QueryRow(ctx, pnlSummarySQL, string(domain.StatusMigrated)).
		Scan(&completed, &mean, &minPct, &maxPct, &winners, &losers)
	if err != nil {
		return nil, fmt.Errorf("aggregate pnl summary: %w", err)
	}

	stats.PnL.Completed = completed
	stats.PnL.Winners = winners
	stats.PnL.Losers = losers
	if completed > 0 {
		winRate := float64(winners) / float64(completed) * 100
		stats.PnL.WinRatePct = &winRate
	}
	if mean.Valid {
		stats.PnL.MeanPct = &mean.Float64
	}
	if minPct.Valid {
		stats.PnL.MinPct = &minPct.Float64
	}
	if maxPct.Valid {
		stats.PnL.MaxPct = &maxPct.Float64
	}

	return stats, nil
}

func (s *SignalStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func upsertInTx(ctx context.Context, tx pgx.Tx, sig *domain.Signal) error {
	args, err := signalArgs(sig)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, upsertSignalSQL, args...); err != nil {
		return fmt.Errorf("upsert signal in tx: %w", err)
	}
	return nil
}

func signalArgs(sig *domain.Signal) ([]any, error) {
	outcome, err := json.Marshal(sig.Outcome)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome: %w", err)
	}

	return []any{
		sig.ID,
		sig.SubjectToken,
		nullString(sig.TokenName),
		nullString(sig.TokenSymbol),
		nullString(sig.CreatorAddress),
		sig.TriggerTxSignature,
		sig.SignalTime,
		sig.EntryProgressPct,
		sig.EntryLiquidity.String(),
		nullDecimal(sig.EntryMarketCap),
		nullDecimal(sig.EntryPrice),
		sig.SimulatedBuyAmount.String(),
		string(sig.Status),
		outcome,
		sig.CreatedAt,
		sig.UpdatedAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (*domain.Signal, error) {
	var (
		sig                             domain.Signal
		tokenName, tokenSymbol, creator sql.NullString
		entryLiquidity, simulatedBuy    string
		entryMarketCap, entryPrice      sql.NullString
		status                          string
		outcome                         []byte
	)

	err := row.Scan(
		&sig.ID,
		&sig.SubjectToken,
		&tokenName,
		&tokenSymbol,
		&creator,
		&sig.TriggerTxSignature,
		&sig.SignalTime,
		&sig.EntryProgressPct,
		&entryLiquidity,
		&entryMarketCap,
		&entryPrice,
		&simulatedBuy,
		&status,
		&outcome,
		&sig.CreatedAt,
		&sig.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sig.TokenName = tokenName.String
	sig.TokenSymbol = tokenSymbol.String
	sig.CreatorAddress = creator.String
	sig.Status = domain.SignalStatus(status)

	if sig.EntryLiquidity, err = decimal.NewFromString(entryLiquidity); err != nil {
		return nil, fmt.Errorf("parse entry_liquidity: %w", err)
	}
	if sig.SimulatedBuyAmount, err = decimal.NewFromString(simulatedBuy); err != nil {
		return nil, fmt.Errorf("parse simulated_buy: %w", err)
	}
	if sig.EntryMarketCap, err = parseNullDecimal(entryMarketCap); err != nil {
		return nil, fmt.Errorf("parse entry_market_cap: %w", err)
	}
	if sig.EntryPrice, err = parseNullDecimal(entryPrice); err != nil {
		return nil, fmt.Errorf("parse entry_price: %w", err)
	}

	if len(outcome) > 0 {
		if err := json.Unmarshal(outcome, &sig.Outcome); err != nil {
			return nil, fmt.Errorf("unmarshal outcome: %w", err)
		}
	}

	return &sig, nil
}

func collectSignals(rows pgx.Rows) ([]*domain.Signal, error) {
	defer rows.Close()

	var result []*domain.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		result = append(result, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return result, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullDecimal stores the decimal zero value as NULL, preserving the
// "unknown" meaning of unset prices across a round trip.
func nullDecimal(d decimal.Decimal) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func parseNullDecimal(ns sql.NullString) (decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return decimal.Decimal{}, nil
	}
	return decimal.NewFromString(ns.String)
}
