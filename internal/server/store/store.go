package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/teamline-chat/teamline/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite database backing the dev server
type Store struct {
	db *sql.DB
}

// New opens the database and initializes the schema
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT,
		email TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		avatar_url TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token_hash TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS participants (
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		PRIMARY KEY (conversation_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES conversations(id),
		sender_id TEXT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		mentions TEXT,
		reply_to TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_id, timestamp, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateUser inserts a new user
func (s *Store) CreateUser(u *models.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (id, username, display_name, email, password_hash, avatar_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), u.Username, u.DisplayName, u.Email, u.PasswordHash, u.AvatarURL, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up a user by email
func (s *Store) GetUserByEmail(email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, display_name, email, password_hash, avatar_url, created_at
		 FROM users WHERE email = ?`, email))
}

// GetUserByID looks up a user by id
func (s *Store) GetUserByID(id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, display_name, email, password_hash, avatar_url, created_at
		 FROM users WHERE id = ?`, id.String()))
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var id string
	var displayName, email, avatar sql.NullString
	err := row.Scan(&id, &u.Username, &displayName, &email, &u.PasswordHash, &avatar, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	u.DisplayName = displayName.String
	u.Email = email.String
	u.AvatarURL = avatar.String
	return &u, nil
}

// ListDirectory returns every user as a mention candidate
func (s *Store) ListDirectory() ([]models.MentionCandidate, error) {
	rows, err := s.db.Query(`SELECT id, username, display_name, avatar_url FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []models.MentionCandidate
	for rows.Next() {
		var id string
		var username string
		var displayName, avatar sql.NullString
		if err := rows.Scan(&id, &username, &displayName, &avatar); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		uid, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid user id: %w", err)
		}
		name := displayName.String
		if name == "" {
			name = username
		}
		out = append(out, models.MentionCandidate{ID: uid, DisplayName: name, AvatarURL: avatar.String})
	}
	return out, rows.Err()
}

// CreateSession stores a hashed token for a user
func (s *Store) CreateSession(tokenHash string, userID uuid.UUID) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sessions (token_hash, user_id, created_at) VALUES (?, ?, ?)`,
		tokenHash, userID.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSessionUser resolves a hashed token to its user id
func (s *Store) GetSessionUser(tokenHash string) (uuid.UUID, error) {
	var id string
	err := s.db.QueryRow(`SELECT user_id FROM sessions WHERE token_hash = ?`, tokenHash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to look up session: %w", err)
	}
	return uuid.Parse(id)
}

// CreateConversation inserts a conversation and its participant rows
func (s *Store) CreateConversation(c *models.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO conversations (id, kind, name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID.String(), string(c.Kind), c.Name, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	for _, p := range c.ParticipantIDs {
		if _, err := tx.Exec(
			`INSERT INTO participants (conversation_id, user_id) VALUES (?, ?)`,
			c.ID.String(), p.String(),
		); err != nil {
			return fmt.Errorf("failed to add participant: %w", err)
		}
	}
	return tx.Commit()
}

// GetConversation looks up one conversation with its participants
func (s *Store) GetConversation(id uuid.UUID) (*models.Conversation, error) {
	var c models.Conversation
	var cid, kind string
	var name sql.NullString
	err := s.db.QueryRow(
		`SELECT id, kind, name, created_at FROM conversations WHERE id = ?`, id.String(),
	).Scan(&cid, &kind, &name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	c.ID, _ = uuid.Parse(cid)
	c.Kind = models.ConversationKind(kind)
	c.Name = name.String

	rows, err := s.db.Query(`SELECT user_id FROM participants WHERE conversation_id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		parsed, err := uuid.Parse(uid)
		if err != nil {
			return nil, fmt.Errorf("invalid participant id: %w", err)
		}
		c.ParticipantIDs = append(c.ParticipantIDs, parsed)
	}
	return &c, rows.Err()
}

// ListConversationsForUser returns every conversation the user participates
// in
func (s *Store) ListConversationsForUser(userID uuid.UUID) ([]*models.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT conversation_id FROM participants WHERE user_id = ?`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan conversation id: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("invalid conversation id: %w", err)
		}
		ids = append(ids, parsed)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*models.Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetConversation(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CreateMessage inserts a message
func (s *Store) CreateMessage(m *models.Message) error {
	mentions, err := json.Marshal(m.Mentions)
	if err != nil {
		return fmt.Errorf("failed to marshal mentions: %w", err)
	}
	var replyTo interface{}
	if m.ReplyTo != nil {
		replyTo = m.ReplyTo.String()
	}
	_, err = s.db.Exec(
		`INSERT INTO messages (id, chat_id, sender_id, content, mentions, reply_to, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.ChatID.String(), m.SenderID.String(), m.Content, string(mentions), replyTo, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetMessage looks up a single message by id
func (s *Store) GetMessage(id uuid.UUID) (*models.Message, error) {
	row := s.db.QueryRow(
		`SELECT id, chat_id, sender_id, content, mentions, reply_to, timestamp
		 FROM messages WHERE id = ?`, id.String())
	return scanMessage(row.Scan)
}

// ListMessages returns up to limit messages for a conversation, ascending by
// (timestamp, id). A non-nil cursor restricts the page to messages strictly
// older than the cursor message (keyset pagination); nil means the most
// recent page.
func (s *Store) ListMessages(chatID uuid.UUID, limit int, cursor *uuid.UUID) ([]*models.Message, error) {
	var rows *sql.Rows
	var err error

	if cursor != nil {
		anchor, aerr := s.GetMessage(*cursor)
		if aerr != nil {
			return nil, aerr
		}
		rows, err = s.db.Query(
			`SELECT id, chat_id, sender_id, content, mentions, reply_to, timestamp
			 FROM messages
			 WHERE chat_id = ? AND (timestamp < ? OR (timestamp = ? AND id < ?))
			 ORDER BY timestamp DESC, id DESC LIMIT ?`,
			chatID.String(), anchor.Timestamp, anchor.Timestamp, anchor.ID.String(), limit)
	} else {
		rows, err = s.db.Query(
			`SELECT id, chat_id, sender_id, content, mentions, reply_to, timestamp
			 FROM messages WHERE chat_id = ?
			 ORDER BY timestamp DESC, id DESC LIMIT ?`,
			chatID.String(), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows come back newest-first; callers want ascending order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanMessage(scan func(dest ...interface{}) error) (*models.Message, error) {
	var m models.Message
	var id, chatID, senderID string
	var mentions, replyTo sql.NullString
	err := scan(&id, &chatID, &senderID, &m.Content, &mentions, &replyTo, &m.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	if m.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid message id: %w", err)
	}
	if m.ChatID, err = uuid.Parse(chatID); err != nil {
		return nil, fmt.Errorf("invalid chat id: %w", err)
	}
	if m.SenderID, err = uuid.Parse(senderID); err != nil {
		return nil, fmt.Errorf("invalid sender id: %w", err)
	}
	if mentions.Valid && mentions.String != "" && mentions.String != "null" {
		if err := json.Unmarshal([]byte(mentions.String), &m.Mentions); err != nil {
			return nil, fmt.Errorf("invalid mentions: %w", err)
		}
	}
	if replyTo.Valid && replyTo.String != "" {
		parsed, err := uuid.Parse(replyTo.String)
		if err != nil {
			return nil, fmt.Errorf("invalid reply reference: %w", err)
		}
		m.ReplyTo = &parsed
	}
	return &m, nil
}
