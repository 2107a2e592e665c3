package store

import (
	"context"
	"fmt"

	"matport/internal/material"
)

// Stats summarizes a library for status output.
type Stats struct {
	Records     int
	Archives    int
	ByEditState map[material.EditState]int
}

// Stats gathers record, archive, and edit-state counts in one pass.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByEditState: make(map[material.EditState]int)}

	rows, err := s.db.QueryContext(ctx,
		"SELECT edit_state, COUNT(1) FROM materials GROUP BY edit_state")
	if err != nil {
		return Stats{}, fmt.Errorf("query edit state counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return Stats{}, fmt.Errorf("scan edit state count: %w", err)
		}
		stats.ByEditState[material.EditState(state)] = count
		stats.Records += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterate edit state counts: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT archive) FROM materials").Scan(&stats.Archives); err != nil {
		return Stats{}, fmt.Errorf("count archives: %w", err)
	}
	return stats, nil
}

// Archives lists the distinct source archives in the library with their
// record counts.
func (s *Store) Archives(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT archive, COUNT(1) FROM materials GROUP BY archive ORDER BY archive")
	if err != nil {
		return nil, fmt.Errorf("query archives: %w", err)
	}
	defer rows.Close()

	archives := make(map[string]int)
	for rows.Next() {
		var archive string
		var count int
		if err := rows.Scan(&archive, &count); err != nil {
			return nil, fmt.Errorf("scan archive count: %w", err)
		}
		archives[archive] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archives: %w", err)
	}
	return archives, nil
}
