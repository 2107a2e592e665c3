package edits_test

import (
	"context"
	"errors"
	"testing"

	"matport/internal/config"
	"matport/internal/edits"
	"matport/internal/logging"
	"matport/internal/material"
	"matport/internal/store"
	"matport/internal/testsupport"
)

func newManager(t *testing.T, cfg *config.Config, st *store.Store) *edits.Manager {
	t.Helper()
	manager, err := edits.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("edits.New: %v", err)
	}
	return manager
}

func seedLibrary(t *testing.T, st *store.Store) {
	t.Helper()
	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/floor.matbin",
		testsupport.WithSampler("C_AlbedoMap", `map\tex\old\floor_a.tif`),
		testsupport.WithSampler("C_NormalMap", `map\tex\old\floor_n.tif`),
	))
	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/wall.matbin",
		testsupport.WithSampler("C_AlbedoMap", `map\tex\old\wall_a.tif`),
	))
	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/glow.matbin",
		testsupport.WithSampler("C_EmissiveMap", `map\tex\glow_e.tif`),
	))
}

func samplerPath(t *testing.T, st *store.Store, id, slot string) string {
	t.Helper()
	record, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get %s: %v", id, err)
	}
	for _, sampler := range record.Samplers {
		if sampler.Slot == slot {
			return sampler.PathValue()
		}
	}
	t.Fatalf("slot %s missing on %s", slot, id)
	return ""
}

func TestApplyLiteralReplace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	seedLibrary(t, st)
	manager := newManager(t, cfg, st)
	ctx := context.Background()

	result, err := manager.Apply(ctx,
		[]string{"material/floor.matbin", "material/wall.matbin", "material/glow.matbin"},
		edits.Mutation{Find: `tex\old`, Replace: `tex\new`})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(result.Changed) != 2 {
		t.Errorf("changed = %v, want floor and wall", result.Changed)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].ID != "material/glow.matbin" {
		t.Errorf("rejected = %+v", result.Rejected)
	}
	if result.TxID == "" {
		t.Error("missing transaction id")
	}

	if got := samplerPath(t, st, "material/floor.matbin", "C_AlbedoMap"); got != `map\tex\new\floor_a.tif` {
		t.Errorf("floor albedo = %q", got)
	}
	record, err := st.Get(ctx, "material/floor.matbin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.EditState != material.EditStateEdited {
		t.Errorf("edit state = %q, want edited", record.EditState)
	}

	untouched, err := st.Get(ctx, "material/glow.matbin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if untouched.EditState != material.EditStateUnmodified {
		t.Errorf("rejected record should stay unmodified, got %q", untouched.EditState)
	}
}

func TestApplyPatternWithSamplerTypeFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	seedLibrary(t, st)
	manager := newManager(t, cfg, st)

	result, err := manager.Apply(context.Background(),
		[]string{"material/floor.matbin"},
		edits.Mutation{
			Find:        `old\\(\w+)_a\.tif$`,
			Replace:     `hd\${1}_a.tif`,
			Pattern:     true,
			SamplerType: "AlbedoMap",
		})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(result.Changed) != 1 {
		t.Fatalf("changed = %v", result.Changed)
	}

	if got := samplerPath(t, st, "material/floor.matbin", "C_AlbedoMap"); got != `map\tex\hd\floor_a.tif` {
		t.Errorf("albedo = %q", got)
	}
	if got := samplerPath(t, st, "material/floor.matbin", "C_NormalMap"); got != `map\tex\old\floor_n.tif` {
		t.Errorf("normal map should be untouched, got %q", got)
	}
}

func TestApplyRollsBackOnMissingRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	seedLibrary(t, st)
	manager := newManager(t, cfg, st)
	ctx := context.Background()

	_, err := manager.Apply(ctx,
		[]string{"material/floor.matbin", "material/missing.matbin"},
		edits.Mutation{Find: `tex\old`, Replace: `tex\new`})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// First record of the batch must not have been committed.
	if got := samplerPath(t, st, "material/floor.matbin", "C_AlbedoMap"); got != `map\tex\old\floor_a.tif` {
		t.Errorf("batch was not rolled back: %q", got)
	}
	history, err := manager.History(ctx, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("failed apply should leave no history, got %d entries", len(history))
	}
}

func TestApplyNoChanges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	seedLibrary(t, st)
	manager := newManager(t, cfg, st)

	result, err := manager.Apply(context.Background(),
		[]string{"material/glow.matbin"},
		edits.Mutation{Find: "does-not-occur", Replace: "x"})
	if !errors.Is(err, edits.ErrNoChanges) {
		t.Fatalf("expected ErrNoChanges, got %v", err)
	}
	if len(result.Rejected) != 1 {
		t.Errorf("rejected = %+v", result.Rejected)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	seedLibrary(t, st)
	manager := newManager(t, cfg, st)
	ctx := context.Background()

	original, err := st.Get(ctx, "material/floor.matbin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if _, err := manager.Apply(ctx, []string{"material/floor.matbin"},
		edits.Mutation{Find: `tex\old`, Replace: `tex\new`}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	edited, err := st.Get(ctx, "material/floor.matbin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	undone, err := manager.Undo(ctx)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if len(undone.Records) != 1 || undone.Records[0] != "material/floor.matbin" {
		t.Errorf("undo records = %v", undone.Records)
	}
	restored, err := st.Get(ctx, "material/floor.matbin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if restored.EditState != material.EditStateUnmodified {
		t.Errorf("undo should restore edit state, got %q", restored.EditState)
	}
	if samplerPath(t, st, "material/floor.matbin", "C_AlbedoMap") != `map\tex\old\floor_a.tif` {
		t.Error("undo did not restore the sampler path")
	}
	if restored.Archive != original.Archive {
		t.Errorf("archive changed across undo: %q vs %q", restored.Archive, original.Archive)
	}

	if _, err := manager.Undo(ctx); !errors.Is(err, edits.ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}

	if _, err := manager.Redo(ctx); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	redone, err := st.Get(ctx, "material/floor.matbin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if redone.EditState != material.EditStateEdited {
		t.Errorf("redo should mark edited, got %q", redone.EditState)
	}
	if samplerPath(t, st, "material/floor.matbin", "C_AlbedoMap") != edited.Samplers[0].PathValue() {
		t.Error("redo did not reapply the edit")
	}

	if _, err := manager.Redo(ctx); !errors.Is(err, edits.ErrNothingToRedo) {
		t.Fatalf("expected ErrNothingToRedo, got %v", err)
	}
}

func TestApplyTruncatesRedoTail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	seedLibrary(t, st)
	manager := newManager(t, cfg, st)
	ctx := context.Background()

	if _, err := manager.Apply(ctx, []string{"material/floor.matbin"},
		edits.Mutation{Find: "old", Replace: "v1"}); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if _, err := manager.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if _, err := manager.Apply(ctx, []string{"material/wall.matbin"},
		edits.Mutation{Find: "old", Replace: "v2"}); err != nil {
		t.Fatalf("second Apply: %v", err)
	}

	if _, err := manager.Redo(ctx); !errors.Is(err, edits.ErrNothingToRedo) {
		t.Fatalf("redo tail should be gone, got %v", err)
	}
	history, err := manager.History(ctx, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	if !history[0].Applied {
		t.Error("surviving entry should be applied")
	}
}

func TestHistoryDepthEvictsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Edits.UndoDepth = 3
	st := testsupport.MustOpenStore(t, cfg, "main")
	seedLibrary(t, st)
	manager := newManager(t, cfg, st)
	ctx := context.Background()

	finds := []string{"tex", "v1", "v2", "v3"}
	replaces := []string{"v1", "v2", "v3", "v4"}
	for i := range finds {
		if _, err := manager.Apply(ctx, []string{"material/floor.matbin"},
			edits.Mutation{Find: finds[i], Replace: replaces[i]}); err != nil {
			t.Fatalf("Apply %d: %v", i, err)
		}
	}

	history, err := manager.History(ctx, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries after eviction, got %d", len(history))
	}

	// Only the retained entries can be undone.
	for i := 0; i < 3; i++ {
		if _, err := manager.Undo(ctx); err != nil {
			t.Fatalf("Undo %d: %v", i, err)
		}
	}
	if _, err := manager.Undo(ctx); !errors.Is(err, edits.ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo after depth exhausted, got %v", err)
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg.LibraryPath("main"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	seedLibrary(t, st)
	manager := newManager(t, cfg, st)
	ctx := context.Background()

	if _, err := manager.Apply(ctx, []string{"material/floor.matbin"},
		edits.Mutation{Find: `tex\old`, Replace: `tex\new`}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := store.Open(cfg.LibraryPath("main"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	manager = newManager(t, cfg, reopened)

	if _, err := manager.Undo(ctx); err != nil {
		t.Fatalf("Undo after reopen: %v", err)
	}
	if got := samplerPath(t, reopened, "material/floor.matbin", "C_AlbedoMap"); got != `map\tex\old\floor_a.tif` {
		t.Errorf("undo after reopen did not restore: %q", got)
	}
}
