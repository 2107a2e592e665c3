package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// HistoryEntry is one committed batch edit. Changes holds the edit
// manager's serialized before/after payload; the store treats it as opaque.
type HistoryEntry struct {
	Seq         int64
	TxID        string
	CreatedAt   time.Time
	Description string
	Changes     []byte
}

// Applied reports whether the entry is at or below the cursor, i.e. its
// changes are present in the library.
func (e HistoryEntry) Applied(cursor int64) bool { return e.Seq <= cursor }

// AppendHistory records a new edit transaction: entries above the cursor
// (the redo tail) are discarded, the entry is appended, the cursor moves to
// it, and the oldest entries beyond depth are pruned.
func (t *Tx) AppendHistory(ctx context.Context, entry HistoryEntry, depth int) (int64, error) {
	cursor, err := t.Cursor(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM edit_history WHERE seq > ?", cursor); err != nil {
		return 0, fmt.Errorf("truncate redo tail: %w", err)
	}

	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO edit_history (tx_id, created_at, description, changes) VALUES (?, ?, ?, ?)",
		entry.TxID,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.Description,
		string(entry.Changes),
	)
	if err != nil {
		return 0, fmt.Errorf("insert history entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history entry seq: %w", err)
	}

	if depth > 0 {
		if _, err := t.tx.ExecContext(ctx,
			`DELETE FROM edit_history WHERE seq <= (
                SELECT seq FROM edit_history ORDER BY seq DESC LIMIT 1 OFFSET ?
            )`, depth); err != nil {
			return 0, fmt.Errorf("prune history: %w", err)
		}
	}

	if err := t.SetCursor(ctx, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// Cursor returns the seq of the newest applied entry, 0 when none are.
func (t *Tx) Cursor(ctx context.Context) (int64, error) {
	return readCursor(ctx, t.tx)
}

// Cursor returns the history cursor outside a transaction.
func (s *Store) Cursor(ctx context.Context) (int64, error) {
	return readCursor(ctx, s.db)
}

func readCursor(ctx context.Context, q querier) (int64, error) {
	var position int64
	err := q.QueryRowContext(ctx, "SELECT position FROM edit_cursor WHERE id = 1").Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read edit cursor: %w", err)
	}
	return position, nil
}

// SetCursor moves the history cursor.
func (t *Tx) SetCursor(ctx context.Context, position int64) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO edit_cursor (id, position) VALUES (1, ?)
         ON CONFLICT(id) DO UPDATE SET position = excluded.position`, position); err != nil {
		return fmt.Errorf("set edit cursor: %w", err)
	}
	return nil
}

// UndoableEntry returns the newest applied entry, or nil when the cursor is
// at the bottom of the history.
func (t *Tx) UndoableEntry(ctx context.Context) (*HistoryEntry, error) {
	cursor, err := t.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	return t.entryWhere(ctx, "seq <= ? ORDER BY seq DESC", cursor)
}

// RedoableEntry returns the oldest undone entry, or nil when nothing was
// undone.
func (t *Tx) RedoableEntry(ctx context.Context) (*HistoryEntry, error) {
	cursor, err := t.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	return t.entryWhere(ctx, "seq > ? ORDER BY seq ASC", cursor)
}

// PreviousSeq returns the seq directly below the given one, 0 when none.
func (t *Tx) PreviousSeq(ctx context.Context, seq int64) (int64, error) {
	var previous sql.NullInt64
	err := t.tx.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM edit_history WHERE seq < ?", seq).Scan(&previous)
	if err != nil {
		return 0, fmt.Errorf("previous history seq: %w", err)
	}
	return previous.Int64, nil
}

func (t *Tx) entryWhere(ctx context.Context, clause string, cursor int64) (*HistoryEntry, error) {
	row := t.tx.QueryRowContext(ctx,
		"SELECT seq, tx_id, created_at, description, changes FROM edit_history WHERE "+clause+" LIMIT 1",
		cursor)
	entry, err := scanHistoryEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// History lists entries newest first.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := "SELECT seq, tx_id, created_at, description, changes FROM edit_history ORDER BY seq DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

func scanHistoryEntry(scanner interface{ Scan(dest ...any) error }) (*HistoryEntry, error) {
	var (
		entry      HistoryEntry
		createdRaw string
		changes    string
	)
	if err := scanner.Scan(&entry.Seq, &entry.TxID, &createdRaw, &entry.Description, &changes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan history entry: %w", err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		entry.CreatedAt = created
	}
	entry.Changes = []byte(changes)
	return &entry, nil
}
