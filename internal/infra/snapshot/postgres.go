package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore хранит снимок одной строкой в таблице bot_state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт пул и таблицу под снимок.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("разбор DSN: %w", err)
	}
	cfg.MaxConns = 5
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("подключение к БД: %w", err)
	}
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bot_state (
    id smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    payload bytea NOT NULL,
    updated_at timestamptz NOT NULL DEFAULT now()
)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("создание таблицы состояния: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Save перезаписывает единственную строку снимка.
func (p *PostgresStore) Save(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.pool.Exec(ctx, `
INSERT INTO bot_state (id, payload, updated_at)
VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`, data)
	return err
}

// Load читает снимок; (nil, nil), если строки ещё нет.
func (p *PostgresStore) Load(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var payload []byte
	err := p.pool.QueryRow(ctx, `SELECT payload FROM bot_state WHERE id = 1`).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payload, nil
}

// Close закрывает пул подключений.
func (p *PostgresStore) Close() {
	p.pool.Close()
}
