package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Database struct {
	Conn *sql.DB
}

func NewDatabase(dsn string) (*Database, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn}, nil
}

func (d *Database) AutoMigrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            username VARCHAR(50) UNIQUE NOT NULL,
            password VARCHAR(255) NOT NULL,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            sender_name VARCHAR(50) NOT NULL,
            receiver_name VARCHAR(50) NOT NULL,
            body TEXT NOT NULL,
            status VARCHAR(10) NOT NULL
                CHECK (status IN ('MESSAGE', 'RECEIVED', 'READ')),
            created_at TIMESTAMPTZ NOT NULL
        )`,

		// Serves both directions of FindHistory.
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation
            ON messages (sender_name, receiver_name, created_at)`,

		// Serves the unread-count query.
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver_status
            ON messages (receiver_name, status)`,

		`CREATE TABLE IF NOT EXISTS scheduled_messages (
            id UUID PRIMARY KEY,
            sender_name VARCHAR(50) NOT NULL,
            receiver_name VARCHAR(50) NOT NULL,
            body TEXT NOT NULL,
            scheduled_at BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            is_sent BOOLEAN NOT NULL DEFAULT FALSE,
            kind VARCHAR(20) NOT NULL
                CHECK (kind IN ('ONE_SHOT', 'RECURRING_REMINDER', 'BIRTHDAY', 'ANNIVERSARY')),
            title VARCHAR(255) NOT NULL DEFAULT '',
            description TEXT NOT NULL DEFAULT '',
            contact_name VARCHAR(50) NOT NULL DEFAULT '',
            event_date VARCHAR(5) NOT NULL DEFAULT ''
        )`,

		// Serves the due-entry scan on every tick.
		`CREATE INDEX IF NOT EXISTS idx_scheduled_due
            ON scheduled_messages (scheduled_at) WHERE is_sent = FALSE`,

		`CREATE INDEX IF NOT EXISTS idx_scheduled_sender
            ON scheduled_messages (sender_name)`,
	}

	for _, query := range queries {
		_, err := d.Conn.Exec(query)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
