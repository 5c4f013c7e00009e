package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/morrisonlaw/clara/pkg/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface on an embedded SQLite
// database, for deployments that need sessions to survive a restart.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	caller_info   TEXT NOT NULL,
	tools_invoked TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role         TEXT NOT NULL,
	content      TEXT NOT NULL DEFAULT '',
	tool_calls   TEXT,
	tool_results TEXT,
	created_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session
	ON messages(session_id, created_at);
`

// NewSQLiteStore opens (or creates) the database at path and applies
// the schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, id string) (*models.Session, error) {
	if id != "" {
		session, err := s.Get(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	}

	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	session := &models.Session{
		ID:         id,
		CallerInfo: models.DefaultCallerInfo(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	callerInfo, err := json.Marshal(session.CallerInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal caller info: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, caller_info, tools_invoked, created_at, updated_at)
		VALUES (?, ?, '[]', ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, session.ID, string(callerInfo), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// A concurrent creator may have won the insert; read back the row.
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, caller_info, tools_invoked, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

func (s *SQLiteStore) Update(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}

	callerInfo, err := json.Marshal(session.CallerInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal caller info: %w", err)
	}
	tools, err := json.Marshal(session.ToolsInvoked)
	if err != nil {
		return fmt.Errorf("failed to marshal tools invoked: %w", err)
	}
	if session.ToolsInvoked == nil {
		tools = []byte("[]")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET caller_info = ?, tools_invoked = ?, updated_at = ?
		WHERE id = ?
	`, string(callerInfo), string(tools), time.Now(), session.ID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*models.Session, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, caller_info, tools_invoked, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}

	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var toolCalls, toolResults sql.NullString
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		toolCalls = sql.NullString{String: string(data), Valid: true}
	}
	if len(msg.ToolResults) > 0 {
		data, err := json.Marshal(msg.ToolResults)
		if err != nil {
			return fmt.Errorf("failed to marshal tool results: %w", err)
		}
		toolResults = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, tool_calls, tool_results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, sessionID, string(msg.Role), msg.Content, toolCalls, toolResults, createdAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = -1
	}

	// Most recent turns, then reversed into chronological order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, tool_calls, tool_results, created_at
		FROM (
			SELECT id, session_id, role, content, tool_calls, tool_results, created_at
			FROM messages
			WHERE session_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var (
			msg                    models.Message
			role                   string
			toolCalls, toolResults sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content,
			&toolCalls, &toolResults, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = models.Role(role)
		if toolCalls.Valid {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
			}
		}
		if toolResults.Valid {
			if err := json.Unmarshal([]byte(toolResults.String), &msg.ToolResults); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool results: %w", err)
			}
		}
		out = append(out, &msg)
	}
	if out == nil {
		out = []*models.Message{}
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session    models.Session
		callerInfo string
		toolsJSON  string
	)
	err := row.Scan(&session.ID, &callerInfo, &toolsJSON, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	if err := json.Unmarshal([]byte(callerInfo), &session.CallerInfo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal caller info: %w", err)
	}
	if err := json.Unmarshal([]byte(toolsJSON), &session.ToolsInvoked); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tools invoked: %w", err)
	}
	return &session, nil
}
