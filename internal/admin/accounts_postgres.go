package admin

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type pgAccounts struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// NewPostgresAccounts constructs the postgres-backed account provider.
func NewPostgresAccounts(pool *pgxpool.Pool, log *zap.SugaredLogger) AccountProvider {
	return &pgAccounts{pool: pool, log: log}
}

// EnsureSchema creates the console tables if absent. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS admin_accounts (
  id uuid PRIMARY KEY,
  username text UNIQUE NOT NULL,
  name text NOT NULL DEFAULT '',
  password_hash text NOT NULL,
  roles text[] NOT NULL DEFAULT '{}',
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS admin_entities (
  entity_type text NOT NULL,
  id uuid NOT NULL,
  payload jsonb NOT NULL DEFAULT '{}'::jsonb,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (entity_type, id)
);
`)
	return err
}

// SeedAccountsFromEnv upserts accounts from the same JSON shape the memory
// provider accepts. Empty seed is a no-op.
func SeedAccountsFromEnv(ctx context.Context, pool *pgxpool.Pool, seed string) error {
	if seed == "" {
		return nil
	}
	var entries []struct {
		ID           string   `json:"id"`
		Username     string   `json:"username"`
		Name         string   `json:"name"`
		Password     string   `json:"password"`
		PasswordHash string   `json:"password_hash"`
		Roles        []string `json:"roles"`
	}
	if err := json.Unmarshal([]byte(seed), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		if e.Username == "" {
			continue
		}
		hash := e.PasswordHash
		if hash == "" && e.Password != "" {
			h, err := HashPassword(e.Password)
			if err != nil {
				return err
			}
			hash = h
		}
		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO admin_accounts (id, username, name, password_hash, roles)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (username) DO UPDATE SET
			  name=EXCLUDED.name,
			  password_hash=EXCLUDED.password_hash,
			  roles=EXCLUDED.roles
		`, id, e.Username, e.Name, hash, e.Roles); err != nil {
			return err
		}
	}
	return nil
}

func (p *pgAccounts) FindByUsername(ctx context.Context, username string) (Account, error) {
	return p.scanOne(ctx, `SELECT id, username, name, password_hash, roles FROM admin_accounts WHERE username=$1`, username)
}

func (p *pgAccounts) FindByID(ctx context.Context, id string) (Account, error) {
	return p.scanOne(ctx, `SELECT id, username, name, password_hash, roles FROM admin_accounts WHERE id=$1`, id)
}

func (p *pgAccounts) scanOne(ctx context.Context, q string, arg any) (Account, error) {
	var a Account
	row := p.pool.QueryRow(ctx, q, arg)
	if err := row.Scan(&a.ID, &a.Username, &a.Name, &a.PasswordHash, &a.Roles); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}
