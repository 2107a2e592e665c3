package testsupport

import (
	"context"
	"testing"

	"matport/internal/config"
	"matport/internal/material"
	"matport/internal/store"
)

// MustOpenStore opens a library store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, library string) *store.Store {
	t.Helper()

	st, err := store.Open(cfg.LibraryPath(library))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustUpsert commits one record in its own transaction.
func MustUpsert(t testing.TB, st *store.Store, record *material.Record) {
	t.Helper()

	ctx := context.Background()
	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("store.Begin: %v", err)
	}
	if err := tx.Upsert(ctx, record); err != nil {
		_ = tx.Rollback()
		t.Fatalf("tx.Upsert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("tx.Commit: %v", err)
	}
}
