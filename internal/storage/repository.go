package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pool-block-alerts/internal/state"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	getStateSQL = `SELECT value FROM poolwatch_state WHERE key = $1;`

	putStateSQL = `INSERT INTO poolwatch_state (key, value, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value,
        updated_at = EXCLUDED.updated_at;`

	upsertBlockSQL = `INSERT INTO block_notifications (
        height,
        tier,
        luck,
        reward,
        runtime_seconds,
        found_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (height) DO UPDATE
    SET
        tier            = EXCLUDED.tier,
        luck            = EXCLUDED.luck,
        reward          = EXCLUDED.reward,
        runtime_seconds = EXCLUDED.runtime_seconds,
        found_at        = EXCLUDED.found_at,
        notified_at     = now();`

	blockColumns = `height, tier, luck, reward, runtime_seconds, found_at, notified_at`

	listRecentBlocksSQL = `SELECT ` + blockColumns + `
    FROM block_notifications
    ORDER BY height DESC
    LIMIT $1;`

	listBlocksBetweenSQL = `SELECT ` + blockColumns + `
    FROM block_notifications
    WHERE found_at >= $1
      AND found_at < $2
    ORDER BY found_at;`

	upsertPayoutSQL = `INSERT INTO payout_notifications (
        height,
        profit,
        payout_date
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (height) DO UPDATE
    SET profit      = EXCLUDED.profit,
        payout_date = EXCLUDED.payout_date,
        notified_at = now();`

	listRecentPayoutsSQL = `SELECT height, profit, payout_date, notified_at
    FROM payout_notifications
    ORDER BY height DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// HistoryStore records delivered notifications for show/export.
type HistoryStore interface {
	RecordBlock(ctx context.Context, rec BlockRecord) error
	RecordPayout(ctx context.Context, rec PayoutRecord) error
	ListRecentBlocks(ctx context.Context, limit int) ([]BlockRecord, error)
	ListRecentPayouts(ctx context.Context, limit int) ([]PayoutRecord, error)
	ListBlocksBetween(ctx context.Context, from, to time.Time) ([]BlockRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates state, history and locking on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// the session lock is dropped with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// GetString implements state.Store.
func (s *Store) GetString(ctx context.Context, key, def string) (string, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", err
	}
	var value string
	if scanErr := pool.QueryRow(ctx, getStateSQL, key).Scan(&value); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return def, nil
		}
		return "", fmt.Errorf("get state %s: %w", key, scanErr)
	}
	return value, nil
}

// PutString implements state.Store.
func (s *Store) PutString(ctx context.Context, key, value string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, putStateSQL, key, value); execErr != nil {
		return fmt.Errorf("put state %s: %w", key, execErr)
	}
	return nil
}

// GetInt implements state.Store.
func (s *Store) GetInt(ctx context.Context, key string, def int64) (int64, error) {
	raw, err := s.GetString(ctx, key, "")
	if err != nil {
		return 0, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, convErr := strconv.ParseInt(raw, 10, 64)
	if convErr != nil {
		return 0, fmt.Errorf("%w: key %s: %q", state.ErrCorrupt, key, raw)
	}
	return n, nil
}

// PutInt implements state.Store.
func (s *Store) PutInt(ctx context.Context, key string, value int64) error {
	return s.PutString(ctx, key, strconv.FormatInt(value, 10))
}

// RecordBlock persists a delivered block notification.
func (s *Store) RecordBlock(ctx context.Context, rec BlockRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var luck interface{}
	if rec.Luck.Valid {
		luck = rec.Luck.Decimal.String()
	}

	if _, execErr := pool.Exec(ctx, upsertBlockSQL,
		rec.Height,
		rec.Tier,
		luck,
		rec.Reward.String(),
		rec.Runtime,
		rec.FoundAt,
	); execErr != nil {
		return fmt.Errorf("record block: %w", execErr)
	}
	return nil
}

// RecordPayout persists a delivered payout notification.
func (s *Store) RecordPayout(ctx context.Context, rec PayoutRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertPayoutSQL, rec.Height, rec.Profit.String(), rec.Date); execErr != nil {
		return fmt.Errorf("record payout: %w", execErr)
	}
	return nil
}

// ListRecentBlocks lists the highest recorded blocks first.
func (s *Store) ListRecentBlocks(ctx context.Context, limit int) ([]BlockRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentBlocksSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent blocks: %w", queryErr)
	}
	return collectBlocks(rows, limit)
}

// ListBlocksBetween lists blocks found within [from, to).
func (s *Store) ListBlocksBetween(ctx context.Context, from, to time.Time) ([]BlockRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listBlocksBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list blocks between: %w", queryErr)
	}
	return collectBlocks(rows, 0)
}

// ListRecentPayouts lists the highest recorded payouts first.
func (s *Store) ListRecentPayouts(ctx context.Context, limit int) ([]PayoutRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentPayoutsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent payouts: %w", queryErr)
	}
	defer rows.Close()

	payouts := make([]PayoutRecord, 0, limit)
	for rows.Next() {
		var (
			rec       PayoutRecord
			profitStr string
		)
		if err := rows.Scan(&rec.Height, &profitStr, &rec.Date, &rec.NotifiedAt); err != nil {
			return nil, err
		}
		profit, convErr := decimal.NewFromString(profitStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse profit: %w", convErr)
		}
		rec.Profit = profit
		payouts = append(payouts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return payouts, nil
}

func collectBlocks(rows pgx.Rows, capacity int) ([]BlockRecord, error) {
	defer rows.Close()

	blocks := make([]BlockRecord, 0, capacity)
	for rows.Next() {
		rec, scanErr := scanBlock(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		blocks = append(blocks, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}

func scanBlock(rows pgx.Rows) (BlockRecord, error) {
	var (
		rec       BlockRecord
		luckStr   sql.NullString
		rewardStr string
	)

	if err := rows.Scan(
		&rec.Height,
		&rec.Tier,
		&luckStr,
		&rewardStr,
		&rec.Runtime,
		&rec.FoundAt,
		&rec.NotifiedAt,
	); err != nil {
		return BlockRecord{}, err
	}

	reward, err := decimal.NewFromString(rewardStr)
	if err != nil {
		return BlockRecord{}, fmt.Errorf("parse reward: %w", err)
	}
	rec.Reward = reward

	if luckStr.Valid {
		luck, err := decimal.NewFromString(luckStr.String)
		if err != nil {
			return BlockRecord{}, fmt.Errorf("parse luck: %w", err)
		}
		rec.Luck = decimal.NewNullDecimal(luck)
	}
	return rec, nil
}

var (
	_ state.Store    = (*Store)(nil)
	_ HistoryStore   = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
