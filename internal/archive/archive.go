// Package archive keeps finished call transcripts in SQLite.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/koscakluka/ema-transcript/core/items"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrNotFound = errors.New("transcript not found")

const schema = `CREATE TABLE IF NOT EXISTS transcripts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	status TEXT NOT NULL,
	ended_at INTEGER NOT NULL,
	item_count INTEGER NOT NULL,
	items TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_ended_at ON transcripts(ended_at);`

// Record is an archived transcript.
type Record struct {
	ID        int64        `json:"id"`
	SessionID string       `json:"session_id"`
	Status    string       `json:"status"`
	EndedAt   time.Time    `json:"ended_at"`
	Items     []items.Item `json:"items,omitempty"`
}

// Summary describes an archived transcript without its items.
type Summary struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	EndedAt   time.Time `json:"ended_at"`
	ItemCount int       `json:"item_count"`
}

type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive database at path.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Save stores a transcript and returns its archive id.
func (a *Archive) Save(ctx context.Context, record Record) (int64, error) {
	ctx, span := tracer.Start(ctx, "archive transcript")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", record.SessionID),
		attribute.Int("items.count", len(record.Items)),
	)

	entries := record.Items
	if entries == nil {
		entries = []items.Item{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return 0, fmt.Errorf("marshal items: %w", err)
	}

	result, err := a.db.ExecContext(ctx,
		`INSERT INTO transcripts (session_id, status, ended_at, item_count, items) VALUES (?, ?, ?, ?, ?)`,
		record.SessionID, record.Status, record.EndedAt.UnixMilli(), len(entries), string(data))
	if err != nil {
		err = fmt.Errorf("insert transcript: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read transcript id: %w", err)
	}
	logger.InfoContext(ctx, "Transcript archived", "id", id, "session_id", record.SessionID, "items", len(entries))
	return id, nil
}

// List returns the most recently ended transcripts first.
func (a *Archive) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, session_id, status, ended_at, item_count FROM transcripts ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var summary Summary
		var endedAt int64
		if err := rows.Scan(&summary.ID, &summary.SessionID, &summary.Status, &endedAt, &summary.ItemCount); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		summary.EndedAt = time.UnixMilli(endedAt).UTC()
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (a *Archive) Get(ctx context.Context, id int64) (Record, error) {
	var record Record
	var endedAt int64
	var data string
	err := a.db.QueryRowContext(ctx,
		`SELECT id, session_id, status, ended_at, items FROM transcripts WHERE id = ?`, id).
		Scan(&record.ID, &record.SessionID, &record.Status, &endedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get transcript: %w", err)
	}

	record.EndedAt = time.UnixMilli(endedAt).UTC()
	if err := json.Unmarshal([]byte(data), &record.Items); err != nil {
		return Record{}, fmt.Errorf("unmarshal items: %w", err)
	}
	return record, nil
}
