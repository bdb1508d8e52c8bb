package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Memory represents a stored memory record.
type Memory struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Category    string            `json:"category"`
	Content     string            `json:"content"`
	ContentHash string            `json:"content_hash"`
	Decay       int               `json:"decay"`
	Importance  float64           `json:"importance"`
	Immutable   bool              `json:"immutable,omitempty"`
	TokenCount  int               `json:"token_count"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	UseCount    int               `json:"use_count"`
	LastUsedAt  *int64            `json:"last_used_at,omitempty"`
	CreatedAt   int64             `json:"created_at"`
	UpdatedAt   int64             `json:"updated_at"`
}

// NewID returns a fresh ULID. Monotonic entropy keeps ids lexicographically
// ordered by creation time even within the same millisecond, so iterating
// memories by id is iterating them oldest-first.
func NewID() string {
	return ulid.Make().String()
}

// CreateMemory inserts a new memory record. Assigns an ID if none is set.
func (db *DB) CreateMemory(m *Memory) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	now := time.Now().UnixMilli()

	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	immutable := 0
	if m.Immutable {
		immutable = 1
	}

	_, err = db.Exec(`
		INSERT INTO memories (id, user_id, category, content, content_hash,
			decay, importance, immutable, token_count, metadata,
			use_count, last_used_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.Category, m.Content, m.ContentHash,
		m.Decay, m.Importance, immutable, m.TokenCount, meta,
		m.UseCount, m.LastUsedAt, now, now)
	if err != nil {
		return fmt.Errorf("create memory: %w", err)
	}

	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

const memoryColumns = `id, user_id, category, content, content_hash,
	decay, importance, immutable, token_count, metadata,
	use_count, last_used_at, created_at, updated_at`

// GetMemory returns a memory by id, or nil if not found.
func (db *DB) GetMemory(id string) (*Memory, error) {
	row := db.QueryRow(`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// FindByUser returns all memories for a user, optionally filtered by category,
// ordered by id (creation order).
func (db *DB) FindByUser(userID, category string) ([]Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE user_id = ?`
	args := []any{userID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY id`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find by user: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// AllMemories returns every stored memory across users, ordered by id.
func (db *DB) AllMemories() ([]Memory, error) {
	rows, err := db.Query(`SELECT ` + memoryColumns + ` FROM memories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// FindByHash returns the non-expired (decay > 0) memory for a user with the
// given content hash, or nil if none exists.
func (db *DB) FindByHash(userID, hash string) (*Memory, error) {
	row := db.QueryRow(`
		SELECT `+memoryColumns+` FROM memories
		WHERE user_id = ? AND content_hash = ? AND decay > 0
		ORDER BY id LIMIT 1
	`, userID, hash)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return m, nil
}

// UpdateMemory persists content, hash, token count, decay, importance and
// metadata for an existing record, refreshing updated_at.
func (db *DB) UpdateMemory(m *Memory) error {
	now := time.Now().UnixMilli()

	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	res, err := db.Exec(`
		UPDATE memories SET content = ?, content_hash = ?, token_count = ?,
			decay = ?, importance = ?, metadata = ?,
			use_count = ?, last_used_at = ?, updated_at = ?
		WHERE id = ?
	`, m.Content, m.ContentHash, m.TokenCount,
		m.Decay, m.Importance, meta,
		m.UseCount, m.LastUsedAt, now, m.ID)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	m.UpdatedAt = now
	return nil
}

// UpdateDecay persists only a new decay value. The lifecycle pass uses this so
// a decay write never clobbers concurrent content edits.
func (db *DB) UpdateDecay(id string, decay int) error {
	res, err := db.Exec(`UPDATE memories SET decay = ? WHERE id = ?`, decay, id)
	if err != nil {
		return fmt.Errorf("update decay: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TouchMemory records a use: bumps use_count and last_used_at.
func (db *DB) TouchMemory(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE memories SET use_count = use_count + 1, last_used_at = ?
		WHERE id = ?
	`, now, id)
	if err != nil {
		return fmt.Errorf("touch memory: %w", err)
	}
	return nil
}

// DeleteMemory removes a memory and its vector.
func (db *DB) DeleteMemory(id string) error {
	if err := db.DeleteVector(id); err != nil {
		return fmt.Errorf("delete vector for memory %s: %w", id, err)
	}
	_, err := db.Exec("DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	return nil
}

// AllContents returns the content of every stored memory. Used to build the
// TF-IDF fallback embedder's vocabulary.
func (db *DB) AllContents() ([]string, error) {
	rows, err := db.Query(`SELECT content FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("all contents: %w", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

func encodeMetadata(meta map[string]string) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var immutable int
	var lastUsed sql.NullInt64
	var meta sql.NullString
	err := row.Scan(&m.ID, &m.UserID, &m.Category, &m.Content, &m.ContentHash,
		&m.Decay, &m.Importance, &immutable, &m.TokenCount, &meta,
		&m.UseCount, &lastUsed, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Immutable = immutable != 0
	if lastUsed.Valid {
		m.LastUsedAt = &lastUsed.Int64
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var memories []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}
