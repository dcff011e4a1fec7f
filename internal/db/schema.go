package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema – таблицы и ограничения, на которых держатся инварианты выбора.
// Идентификаторы текстовые: сообщения используют ULID, остальное UUID.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id          TEXT PRIMARY KEY,
		email       TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL DEFAULT '',
		role        TEXT NOT NULL CHECK (role IN ('empresa', 'transportista', 'sendix')),
		telegram_id BIGINT UNIQUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS loads (
		id           TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL REFERENCES users(id),
		origin       TEXT NOT NULL,
		destination  TEXT NOT NULL,
		cargo_type   TEXT NOT NULL,
		quantity     DOUBLE PRECISION,
		unit         TEXT NOT NULL DEFAULT '',
		dimensions   TEXT NOT NULL DEFAULT '',
		weight       DOUBLE PRECISION,
		volume       DOUBLE PRECISION,
		scheduled_at TIMESTAMPTZ,
		description  TEXT NOT NULL DEFAULT '',
		attachments  JSONB,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS proposals (
		id          TEXT PRIMARY KEY,
		load_id     TEXT NOT NULL REFERENCES loads(id),
		carrier_id  TEXT NOT NULL REFERENCES users(id),
		vehicle     TEXT NOT NULL,
		price       BIGINT NOT NULL CHECK (price >= 0),
		status      TEXT NOT NULL CHECK (status IN ('pending', 'filtered', 'approved', 'rejected')),
		ship_status TEXT NOT NULL DEFAULT 'pending'
			CHECK (ship_status IN ('pending', 'loading', 'in_transit', 'delivered')),
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS proposals_load_idx ON proposals (load_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS proposals_one_approved_per_load
		ON proposals (load_id) WHERE status = 'approved'`,
	`CREATE TABLE IF NOT EXISTS commissions (
		id          TEXT PRIMARY KEY,
		proposal_id TEXT NOT NULL UNIQUE REFERENCES proposals(id),
		rate        DOUBLE PRECISION NOT NULL,
		amount      BIGINT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('pending', 'invoiced')),
		created_at  TIMESTAMPTZ NOT NULL,
		invoice_at  TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS threads (
		id          TEXT PRIMARY KEY,
		load_id     TEXT NOT NULL REFERENCES loads(id),
		carrier_id  TEXT NOT NULL REFERENCES users(id),
		proposal_id TEXT REFERENCES proposals(id),
		created_at  TIMESTAMPTZ NOT NULL,
		UNIQUE (load_id, carrier_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id           TEXT PRIMARY KEY,
		thread_id    TEXT NOT NULL REFERENCES threads(id),
		from_user_id TEXT NOT NULL REFERENCES users(id),
		text         TEXT NOT NULL,
		reply_to_id  TEXT REFERENCES messages(id),
		attachments  JSONB NOT NULL DEFAULT '[]',
		system       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_thread_idx ON messages (thread_id, created_at, id)`,
	`CREATE TABLE IF NOT EXISTS reads (
		thread_id    TEXT NOT NULL REFERENCES threads(id),
		user_id      TEXT NOT NULL REFERENCES users(id),
		last_read_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (thread_id, user_id)
	)`,
}

// Migrate создает недостающие таблицы и индексы
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ошибка при применении схемы: %w", err)
		}
	}
	log.Println("✅ Схема базы данных актуальна")
	return nil
}
