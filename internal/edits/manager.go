package edits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"matport/internal/config"
	"matport/internal/logging"
	"matport/internal/material"
	"matport/internal/store"
)

var (
	// ErrNothingToUndo indicates the history cursor is at the bottom.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo indicates no edit has been undone.
	ErrNothingToRedo = errors.New("nothing to redo")
	// ErrNoChanges indicates the mutation matched none of the selected
	// records; nothing was committed.
	ErrNoChanges = errors.New("mutation changed no records")
)

// Rejection names a selected record the mutation did not change and why.
type Rejection struct {
	ID     string
	Reason string
}

// ApplyResult reports a committed batch edit.
type ApplyResult struct {
	TxID     string
	Changed  []string
	Rejected []Rejection
}

// StepResult reports a committed undo or redo.
type StepResult struct {
	TxID        string
	Description string
	Records     []string
}

// Entry is one history listing row.
type Entry struct {
	TxID        string
	CreatedAt   time.Time
	Description string
	Records     int
	Applied     bool
}

// change is the persisted before/after image of one record. Records encode
// as definition XML so history survives process restarts losslessly.
type change struct {
	ID          string             `json:"id"`
	Before      string             `json:"before"`
	BeforeState material.EditState `json:"before_state"`
	After       string             `json:"after"`
	AfterState  material.EditState `json:"after_state"`
}

// Manager runs batch edits against one library.
type Manager struct {
	store  *store.Store
	depth  int
	logger *slog.Logger
}

// New constructs a manager bound to an open read-write store.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Manager, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("edit manager requires config and store")
	}
	return &Manager{
		store:  st,
		depth:  cfg.Edits.UndoDepth,
		logger: logging.NewComponentLogger(logger, "edits"),
	}, nil
}

// Apply rewrites sampler paths on the selected records in one transaction.
// Records the mutation does not touch are reported as rejections, not
// errors; a missing identifier or a store failure rolls the whole batch
// back. Committing an edit discards any redo tail.
func (m *Manager) Apply(ctx context.Context, ids []string, mutation Mutation) (*ApplyResult, error) {
	if len(ids) == 0 {
		return nil, errors.New("no records selected")
	}
	rw, err := newRewriter(mutation)
	if err != nil {
		return nil, err
	}

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result := &ApplyResult{TxID: uuid.New().String()}
	var changes []change
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		record, err := tx.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("select records: %w", err)
			}
			return nil, err
		}

		before := record.Clone()
		if !rw.apply(record) {
			result.Rejected = append(result.Rejected, Rejection{ID: id, Reason: "no sampler path matched"})
			continue
		}
		record.EditState = material.EditStateEdited
		if err := tx.Upsert(ctx, record); err != nil {
			return nil, err
		}

		result.Changed = append(result.Changed, id)
		changes = append(changes, change{
			ID:          id,
			Before:      string(material.Encode(before)),
			BeforeState: before.EditState,
			After:       string(material.Encode(record)),
			AfterState:  record.EditState,
		})
	}

	if len(changes) == 0 {
		return result, ErrNoChanges
	}

	payload, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("encode history changes: %w", err)
	}
	if _, err := tx.AppendHistory(ctx, store.HistoryEntry{
		TxID:        result.TxID,
		CreatedAt:   time.Now().UTC(),
		Description: mutation.Description(),
		Changes:     payload,
	}, m.depth); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	m.logger.Info("batch edit committed",
		logging.String("tx_id", result.TxID),
		logging.String("mutation", mutation.Description()),
		logging.Int("changed", len(result.Changed)),
		logging.Int("rejected", len(result.Rejected)))
	return result, nil
}

// Undo reverts the newest applied edit in one transaction.
func (m *Manager) Undo(ctx context.Context) (*StepResult, error) {
	return m.step(ctx, true)
}

// Redo reapplies the most recently undone edit in one transaction.
func (m *Manager) Redo(ctx context.Context) (*StepResult, error) {
	return m.step(ctx, false)
}

func (m *Manager) step(ctx context.Context, undo bool) (*StepResult, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var entry *store.HistoryEntry
	if undo {
		entry, err = tx.UndoableEntry(ctx)
	} else {
		entry, err = tx.RedoableEntry(ctx)
	}
	if err != nil {
		return nil, err
	}
	if entry == nil {
		if undo {
			return nil, ErrNothingToUndo
		}
		return nil, ErrNothingToRedo
	}

	var changes []change
	if err := json.Unmarshal(entry.Changes, &changes); err != nil {
		return nil, fmt.Errorf("decode history changes: %w", err)
	}

	result := &StepResult{TxID: entry.TxID, Description: entry.Description}
	for _, ch := range changes {
		body, state := ch.Before, ch.BeforeState
		if !undo {
			body, state = ch.After, ch.AfterState
		}
		record, err := material.Parse([]byte(body), "", ch.ID+".xml")
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", ch.ID, err)
		}
		// The stored image carries no archive; keep the library's.
		current, err := tx.Get(ctx, ch.ID)
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", ch.ID, err)
		}
		record.Archive = current.Archive
		record.ImportedAt = current.ImportedAt
		record.EditState = state
		if err := tx.Upsert(ctx, record); err != nil {
			return nil, err
		}
		result.Records = append(result.Records, ch.ID)
	}

	cursor := entry.Seq
	if undo {
		cursor, err = tx.PreviousSeq(ctx, entry.Seq)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.SetCursor(ctx, cursor); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	m.logger.Info("history step committed",
		logging.String("tx_id", result.TxID),
		logging.Bool("undo", undo),
		logging.Int("records", len(result.Records)))
	return result, nil
}

// History lists edit transactions newest first.
func (m *Manager) History(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := m.store.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	cursor, err := m.store.Cursor(ctx)
	if err != nil {
		return nil, err
	}

	listing := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		var changes []change
		if err := json.Unmarshal(entry.Changes, &changes); err != nil {
			return nil, fmt.Errorf("decode history changes: %w", err)
		}
		listing = append(listing, Entry{
			TxID:        entry.TxID,
			CreatedAt:   entry.CreatedAt,
			Description: entry.Description,
			Records:     len(changes),
			Applied:     entry.Applied(cursor),
		})
	}
	return listing, nil
}
