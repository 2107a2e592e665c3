package store_test

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"matport/internal/material"
	"matport/internal/store"
	"matport/internal/testsupport"
)

func TestUpsertGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	ctx := context.Background()

	record := testsupport.NewRecord("material/m10_floor.matbin",
		testsupport.WithFloatParam("g_Specular", 0.25),
		testsupport.WithSampler("C_AlbedoMap", `map\tex\floor_a.tif`),
		testsupport.WithSampler("C_NormalMap", ""),
	)
	record.Params = append(record.Params,
		material.Param{Name: "g_BlendMode", Key: "1", Value: material.IntValue(2)},
		material.Param{Name: "g_EnableFade", Key: "2", Value: material.BoolValue(true)},
		material.Param{Name: "g_TintColor", Key: "3", Value: material.VectorValue{1, 0.5, 0.25}},
		material.Param{Name: "g_Mystery", Key: "4", Value: material.OpaqueValue{Declared: "Blob", Raw: "<Packed>aGVsbG8=</Packed>"}},
	)
	testsupport.MustUpsert(t, st, record)

	got, err := st.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ImportedAt.IsZero() {
		t.Errorf("ImportedAt should be stamped on commit")
	}
	got.ImportedAt = record.ImportedAt
	if !reflect.DeepEqual(got, record) {
		t.Errorf("round trip diverged:\ngot:  %#v\nwant: %#v", got, record)
	}
}

func TestUpsertOverwritesExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	ctx := context.Background()

	original := testsupport.NewRecord("material/m10_wall.matbin",
		testsupport.WithFloatParam("g_Specular", 0.1),
		testsupport.WithSampler("C_AlbedoMap", "a.tif"),
	)
	testsupport.MustUpsert(t, st, original)

	replacement := testsupport.NewRecord("material/m10_wall.matbin",
		testsupport.WithArchive("m11.matbinbnd"),
		testsupport.WithFloatParam("g_Glossiness", 0.9),
		testsupport.WithEditState(material.EditStateImported),
	)
	testsupport.MustUpsert(t, st, replacement)

	got, err := st.Get(ctx, original.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Archive != "m11.matbinbnd" || got.EditState != material.EditStateImported {
		t.Errorf("unexpected record after overwrite: %+v", got)
	}
	if len(got.Params) != 1 || got.Params[0].Name != "g_Glossiness" {
		t.Errorf("old params should be gone, got %+v", got.Params)
	}
	if len(got.Samplers) != 0 {
		t.Errorf("old samplers should be gone, got %+v", got.Samplers)
	}

	count, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record, got %d", count)
	}
}

func TestUpsertRejectsInvariantViolations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	ctx := context.Background()

	record := testsupport.NewRecord("material/bad.matbin",
		testsupport.WithSampler("C_AlbedoMap", "a.tif"),
		testsupport.WithSampler("C_AlbedoMap", "b.tif"),
	)
	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback()

	var violation *material.InvariantViolationError
	if err := tx.Upsert(ctx, record); !errors.As(err, &violation) {
		t.Fatalf("expected InvariantViolationError, got %v", err)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	ctx := context.Background()

	record := testsupport.NewRecord("material/m10_floor.matbin")
	testsupport.MustUpsert(t, st, record)

	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Delete(ctx, record.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := st.Get(ctx, record.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	ctx := context.Background()

	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/m10_floor.matbin",
		testsupport.WithShader(`N:\mtd\map\M_Floor.spx`),
		testsupport.WithSampler("C_AlbedoMap", "floor_a.tif"),
		testsupport.WithFloatParam("g_Specular", 0.2),
	))
	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/m10_wall.matbin",
		testsupport.WithShader(`N:\mtd\map\M_Wall.spx`),
		testsupport.WithSampler("C_NormalMap", "wall_n.tif"),
		testsupport.WithEditState(material.EditStateEdited),
	))
	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/chr_armor.matbin",
		testsupport.WithShader(`N:\mtd\chr\M_Armor.spx`),
		testsupport.WithArchive("chr.matbinbnd"),
		testsupport.WithSampler("C_AlbedoMap_2", "armor_a.tif"),
	))

	cases := []struct {
		name    string
		filter  store.Filter
		wantIDs []string
	}{
		{"shader substring", store.Filter{ShaderContains: `mtd\map`},
			[]string{"material/m10_floor.matbin", "material/m10_wall.matbin"}},
		{"shader pattern", store.Filter{ShaderPattern: `M_(Floor|Armor)\.spx$`},
			[]string{"material/chr_armor.matbin", "material/m10_floor.matbin"}},
		{"sampler type", store.Filter{SamplerType: "AlbedoMap"},
			[]string{"material/chr_armor.matbin", "material/m10_floor.matbin"}},
		{"has param", store.Filter{HasParam: "g_Specular"},
			[]string{"material/m10_floor.matbin"}},
		{"edit state", store.Filter{EditState: material.EditStateEdited},
			[]string{"material/m10_wall.matbin"}},
		{"archive", store.Filter{Archive: "chr.matbinbnd"},
			[]string{"material/chr_armor.matbin"}},
		{"combined", store.Filter{ShaderContains: "mtd", SamplerType: "AlbedoMap", Archive: "test.matbinbnd"},
			[]string{"material/m10_floor.matbin"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records, total, err := st.Query(ctx, tc.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if total != len(tc.wantIDs) {
				t.Errorf("total = %d, want %d", total, len(tc.wantIDs))
			}
			ids := make([]string, len(records))
			for i, record := range records {
				ids[i] = record.ID
			}
			if !reflect.DeepEqual(ids, tc.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tc.wantIDs)
			}
		})
	}
}

func TestQueryPagination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		testsupport.MustUpsert(t, st, testsupport.NewRecord("material/"+id+".matbin"))
	}

	records, total, err := st.Query(ctx, store.Filter{Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(records) != 2 || records[0].ID != "material/c.matbin" || records[1].ID != "material/d.matbin" {
		t.Errorf("unexpected page: %+v", records)
	}

	if _, total, err = st.Query(ctx, store.Filter{Offset: 10}); err != nil || total != 5 {
		t.Errorf("offset beyond end: total=%d err=%v", total, err)
	}
}

func TestEditStates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	ctx := context.Background()

	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/a.matbin"))
	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/b.matbin",
		testsupport.WithEditState(material.EditStateEdited)))

	states, err := st.EditStates(ctx, []string{"material/a.matbin", "material/b.matbin", "material/missing.matbin"})
	if err != nil {
		t.Fatalf("EditStates: %v", err)
	}
	want := map[string]material.EditState{
		"material/a.matbin": material.EditStateUnmodified,
		"material/b.matbin": material.EditStateEdited,
	}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestStatsAndArchives(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	ctx := context.Background()

	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/a.matbin"))
	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/b.matbin",
		testsupport.WithArchive("other.matbinbnd"),
		testsupport.WithEditState(material.EditStateEdited)))

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Records != 2 || stats.Archives != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.ByEditState[material.EditStateEdited] != 1 {
		t.Errorf("expected 1 edited record, got %d", stats.ByEditState[material.EditStateEdited])
	}

	archives, err := st.Archives(ctx)
	if err != nil {
		t.Fatalf("Archives: %v", err)
	}
	if archives["test.matbinbnd"] != 1 || archives["other.matbinbnd"] != 1 {
		t.Errorf("unexpected archives: %v", archives)
	}
}

func TestSecondWriterGetsLibraryBusy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	_ = st

	if _, err := store.Open(cfg.LibraryPath("main")); !errors.Is(err, store.ErrLibraryBusy) {
		t.Fatalf("expected ErrLibraryBusy, got %v", err)
	}
}

func TestReadOnlyAlongsideWriter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	ctx := context.Background()

	testsupport.MustUpsert(t, st, testsupport.NewRecord("material/a.matbin"))

	ro, err := store.OpenReadOnly(cfg.LibraryPath("main"))
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer ro.Close()

	if _, err := ro.Get(ctx, "material/a.matbin"); err != nil {
		t.Errorf("read-only Get: %v", err)
	}
	if _, err := ro.Begin(ctx); err == nil {
		t.Errorf("read-only Begin should fail")
	}
}

func TestRollbackDiscardsChanges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg, "main")
	ctx := context.Background()

	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Upsert(ctx, testsupport.NewRecord("material/a.matbin")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if _, err := st.Get(ctx, "material/a.matbin"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after rollback, got %v", err)
	}
}

func TestUnknownFutureSchemaFailsClosed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := cfg.LibraryPath("main")

	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A database written by a newer build carries a migration this build
	// does not know about.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES ('9999_from_the_future')"); err != nil {
		t.Fatalf("insert future version: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	if _, err := store.Open(path); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Errorf("Open should fail closed, got %v", err)
	}
	if _, err := store.OpenReadOnly(path); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Errorf("OpenReadOnly should fail closed, got %v", err)
	}
}
