// Package postgres stores pools and accounts in PostgreSQL for fleets where
// several worker hosts rotate the same pools.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/bnema/accountpool/internal/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	selectPool = `SELECT id, name, provider, mode, max_concurrent, next_switch_time, version, updated_at FROM account_pools`

	selectAccount = `SELECT id, pool_id, name, weight, status, disabled_at, generations, secret_ref, created_at FROM pool_accounts`

	insertPool = `INSERT INTO account_pools (id, name, provider, mode, max_concurrent, next_switch_time, updated_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
ON CONFLICT (id) DO NOTHING`

	updatePool = `UPDATE account_pools
SET name = $2, provider = $3, mode = $4, max_concurrent = $5, next_switch_time = $6, updated_at = $7, version = version + 1
WHERE id = $1 AND version = $8`

	deletePool = `DELETE FROM account_pools WHERE id = $1 AND version = $2`

	deleteAccounts = `DELETE FROM pool_accounts WHERE pool_id = $1 AND id = ANY($2)`

	upsertAccount = `INSERT INTO pool_accounts (id, pool_id, name, weight, status, disabled_at, generations, secret_ref, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    pool_id = EXCLUDED.pool_id,
    name = EXCLUDED.name,
    weight = EXCLUDED.weight,
    status = EXCLUDED.status,
    disabled_at = EXCLUDED.disabled_at,
    generations = EXCLUDED.generations,
    secret_ref = EXCLUDED.secret_ref`
)

type PoolRepository struct {
	db DB
}

var _ ports.PoolRepository = (*PoolRepository)(nil)

func NewPoolRepository(db DB) *PoolRepository {
	return &PoolRepository{db: db}
}

// Connect opens a connection pool and pings the server.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate creates the tables when they do not exist yet.
func (r *PoolRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply pool schema: %w", err)
	}
	return nil
}

func (r *PoolRepository) GetPool(ctx context.Context, id domain.PoolID) (domain.Pool, error) {
	pool, err := scanPool(r.db.QueryRow(ctx, selectPool+` WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pool{}, domain.ErrPoolNotFound
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("get pool %s: %w", id, err)
	}
	return pool, nil
}

func (r *PoolRepository) ListPools(ctx context.Context) ([]domain.Pool, error) {
	rows, err := r.db.Query(ctx, selectPool+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	pools := make([]domain.Pool, 0)
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}

	return pools, nil
}

func (r *PoolRepository) GetAccount(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	account, err := scanAccount(r.db.QueryRow(ctx, selectAccount+` WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	return account, nil
}

func (r *PoolRepository) ListAccounts(ctx context.Context, poolID domain.PoolID) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, selectAccount+` WHERE pool_id = $1 ORDER BY created_at, id`, string(poolID))
	if err != nil {
		return nil, fmt.Errorf("list accounts of pool %s: %w", poolID, err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts of pool %s: %w", poolID, err)
	}

	return accounts, nil
}

// Commit applies the transition in one transaction. The pool row is written
// first with a version predicate; zero affected rows means another writer
// got there first.
func (r *PoolRepository) Commit(ctx context.Context, t domain.PoolTransition) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin pool transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := writePool(ctx, tx, t); err != nil {
		return err
	}

	if !t.Release {
		if len(t.Removed) > 0 {
			ids := make([]string, 0, len(t.Removed))
			for _, id := range t.Removed {
				ids = append(ids, string(id))
			}
			if _, err := tx.Exec(ctx, deleteAccounts, string(t.Pool.ID), ids); err != nil {
				return fmt.Errorf("delete accounts of pool %s: %w", t.Pool.ID, err)
			}
		}

		for _, account := range t.Accounts {
			_, err := tx.Exec(ctx, upsertAccount,
				string(account.ID), string(account.PoolID), account.Name, account.Weight,
				string(account.Status), account.DisabledAt, account.Generations, account.SecretRef, account.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("save account %s: %w", account.ID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit pool transition: %w", err)
	}
	return nil
}

func writePool(ctx context.Context, tx pgx.Tx, t domain.PoolTransition) error {
	pool := t.Pool

	var (
		tag pgconn.CommandTag
		err error
	)
	switch {
	case t.Release:
		tag, err = tx.Exec(ctx, deletePool, string(pool.ID), pool.Version)
	case pool.Version == 0:
		tag, err = tx.Exec(ctx, insertPool,
			string(pool.ID), pool.Name, string(pool.Provider), string(pool.Mode),
			pool.MaxConcurrent, pool.NextSwitchTime, pool.UpdatedAt,
		)
	default:
		tag, err = tx.Exec(ctx, updatePool,
			string(pool.ID), pool.Name, string(pool.Provider), string(pool.Mode),
			pool.MaxConcurrent, pool.NextSwitchTime, pool.UpdatedAt, pool.Version,
		)
	}
	if err != nil {
		return fmt.Errorf("write pool %s: %w", pool.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("write pool %s at version %d: %w", pool.ID, pool.Version, domain.ErrPoolConflict)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPool(row rowScanner) (domain.Pool, error) {
	var (
		id, name, provider, mode string
		maxConcurrent            int
		nextSwitch               *time.Time
		version                  int64
		updatedAt                time.Time
	)
	if err := row.Scan(&id, &name, &provider, &mode, &maxConcurrent, &nextSwitch, &version, &updatedAt); err != nil {
		return domain.Pool{}, err
	}

	return domain.Pool{
		ID:             domain.PoolID(id),
		Name:           name,
		Provider:       domain.Provider(provider),
		Mode:           domain.PoolMode(mode),
		MaxConcurrent:  maxConcurrent,
		NextSwitchTime: nextSwitch,
		Version:        version,
		UpdatedAt:      updatedAt,
	}, nil
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		id, poolID, name, status, secretRef string
		weight, generations                 int
		disabledAt                          *time.Time
		createdAt                           time.Time
	)
	if err := row.Scan(&id, &poolID, &name, &weight, &status, &disabledAt, &generations, &secretRef, &createdAt); err != nil {
		return domain.Account{}, err
	}

	parsed, err := domain.ParseAccountStatus(status)
	if err != nil {
		return domain.Account{}, err
	}

	return domain.Account{
		ID:          domain.AccountID(id),
		PoolID:      domain.PoolID(poolID),
		Name:        name,
		Weight:      weight,
		Status:      parsed,
		DisabledAt:  disabledAt,
		Generations: generations,
		SecretRef:   secretRef,
		CreatedAt:   createdAt,
	}, nil
}
