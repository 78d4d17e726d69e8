package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pingline/pingline-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	online        BOOLEAN NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id   INTEGER NOT NULL,
	receiver_id INTEGER NOT NULL,
	body        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (sender_id) REFERENCES users(id),
	FOREIGN KEY (receiver_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_pair
	ON messages(sender_id, receiver_id, created_at);
`

// New creates a new SQLite store and bootstraps the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply an alternative schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, online, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, online, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Online,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ListUsersExcept lists all users except the given one, ordered by username.
func (s *SQLiteStore) ListUsersExcept(ctx context.Context, id int64) ([]*store.User, error) {
	query := `
		SELECT id, username, password_hash, online, created_at
		FROM users
		WHERE id != ?
		ORDER BY username
	`
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		var user store.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.Online,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// SetOnline updates the stored last-known online flag.
func (s *SQLiteStore) SetOnline(ctx context.Context, id int64, online bool) error {
	query := `
		UPDATE users SET online = ? WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, online, id)
	if err != nil {
		return fmt.Errorf("update online flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}

	return nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and fills in its generated ID and timestamp.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (sender_id, receiver_id, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.SenderID, msg.ReceiverID, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id

	return nil
}

// ListConversation retrieves all messages between two users in either
// direction, ordered by creation time ascending.
func (s *SQLiteStore) ListConversation(ctx context.Context, userA, userB int64) ([]*store.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, body, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userA, userB, userB, userA)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}
