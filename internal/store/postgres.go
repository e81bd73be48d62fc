package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// applies the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.RunMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// RunMigrations creates tables if they don't exist.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at);
	`)
	return err
}

// SaveMessage inserts msg.
func (s *PostgresStore) SaveMessage(ctx context.Context, msg *domain.Message) error {
	prepareMessage(msg)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.CreatedAt)
	return err
}

// Conversation selects both directions of the pair.
func (s *PostgresStore) Conversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, text, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id COLLATE "C" ASC
	`, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// UpsertUser inserts or updates a user row.
func (s *PostgresStore) UpsertUser(ctx context.Context, user domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, avatar)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			avatar = EXCLUDED.avatar,
			updated_at = NOW()
	`, user.ID, user.Name, user.Avatar)
	return err
}

// ListUsers returns all users except excludeID.
func (s *PostgresStore) ListUsers(ctx context.Context, excludeID string) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, avatar FROM users
		WHERE id <> $1
		ORDER BY name COLLATE "C" ASC, id COLLATE "C" ASC
	`, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Avatar); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
