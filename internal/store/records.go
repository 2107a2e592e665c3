package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"matport/internal/material"
)

// ErrNotFound indicates the requested record is not in the library.
var ErrNotFound = errors.New("record not found")

const materialColumns = "id, name, archive, shader_path, source_path, compression, key, edit_state, imported_at"

// Upsert inserts or replaces a record and its params and samplers.
func (t *Tx) Upsert(ctx context.Context, record *material.Record) error {
	return upsertRecord(ctx, t.tx, record)
}

// Get fetches a record with its params and samplers. Returns ErrNotFound
// when the identifier is unknown.
func (s *Store) Get(ctx context.Context, id string) (*material.Record, error) {
	return getRecord(ctx, s.db, id)
}

// Get fetches a record inside the transaction.
func (t *Tx) Get(ctx context.Context, id string) (*material.Record, error) {
	return getRecord(ctx, t.tx, id)
}

// Delete removes a record. Params and samplers cascade.
func (t *Tx) Delete(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM materials WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// EditStates returns the edit state of each listed identifier that exists.
func (s *Store) EditStates(ctx context.Context, ids []string) (map[string]material.EditState, error) {
	return editStates(ctx, s.db, ids)
}

// EditStates returns edit states inside the transaction.
func (t *Tx) EditStates(ctx context.Context, ids []string) (map[string]material.EditState, error) {
	return editStates(ctx, t.tx, ids)
}

// SetEditState updates only the edit state of an existing record.
func (t *Tx) SetEditState(ctx context.Context, id string, state material.EditState) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE materials SET edit_state = ? WHERE id = ?", string(state), id)
	if err != nil {
		return fmt.Errorf("set edit state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set edit state: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Count returns the number of records in the library.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM materials").Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Filter narrows a Query. Zero fields are ignored. ShaderPattern is a Go
// regular expression applied after the SQL filters.
type Filter struct {
	ShaderContains string
	ShaderPattern  string
	SamplerType    string
	HasParam       string
	Archive        string
	EditState      material.EditState
	Offset         int
	Limit          int
}

// Query returns the page of records selected by the filter together with
// the total match count before pagination. Results order by identifier so
// pages are stable.
func (s *Store) Query(ctx context.Context, filter Filter) ([]*material.Record, int, error) {
	where := make([]string, 0, 5)
	args := make([]any, 0, 5)
	if filter.ShaderContains != "" {
		where = append(where, "shader_path LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(filter.ShaderContains)+"%")
	}
	if filter.Archive != "" {
		where = append(where, "archive = ?")
		args = append(args, filter.Archive)
	}
	if filter.EditState != "" {
		where = append(where, "edit_state = ?")
		args = append(args, string(filter.EditState))
	}
	if filter.SamplerType != "" {
		where = append(where, "EXISTS (SELECT 1 FROM samplers WHERE samplers.material_id = materials.id AND samplers.sampler_type = ?)")
		args = append(args, filter.SamplerType)
	}
	if filter.HasParam != "" {
		where = append(where, "EXISTS (SELECT 1 FROM params WHERE params.material_id = materials.id AND params.name = ?)")
		args = append(args, filter.HasParam)
	}

	query := "SELECT id, shader_path FROM materials"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var shaderRe *regexp.Regexp
	if filter.ShaderPattern != "" {
		shaderRe, err = regexp.Compile(filter.ShaderPattern)
		if err != nil {
			return nil, 0, fmt.Errorf("compile shader pattern: %w", err)
		}
	}

	var ids []string
	for rows.Next() {
		var id, shaderPath string
		if err := rows.Scan(&id, &shaderPath); err != nil {
			return nil, 0, fmt.Errorf("scan record id: %w", err)
		}
		if shaderRe != nil && !shaderRe.MatchString(shaderPath) {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate record ids: %w", err)
	}

	total := len(ids)
	ids = paginate(ids, filter.Offset, filter.Limit)

	records := make([]*material.Record, 0, len(ids))
	for _, id := range ids {
		record, err := getRecord(ctx, s.db, id)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	return records, total, nil
}

// All streams every record in the library, ordered by identifier. The
// matcher loads its candidate corpus through this.
func (s *Store) All(ctx context.Context) ([]*material.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+materialColumns+" FROM materials ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*material.Record)
	var records []*material.Record
	for rows.Next() {
		record, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		byID[record.ID] = record
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materials: %w", err)
	}

	if err := s.loadAllParams(ctx, byID); err != nil {
		return nil, err
	}
	if err := s.loadAllSamplers(ctx, byID); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) loadAllParams(ctx context.Context, byID map[string]*material.Record) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT material_id, name, key, type, value FROM params ORDER BY material_id, sort_order")
	if err != nil {
		return fmt.Errorf("query params: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var materialID, name, key, declared, value string
		if err := rows.Scan(&materialID, &name, &key, &declared, &value); err != nil {
			return fmt.Errorf("scan param: %w", err)
		}
		record, ok := byID[materialID]
		if !ok {
			continue
		}
		parsed, err := material.ParseValue(declared, value)
		if err != nil {
			return fmt.Errorf("decode param %s of %s: %w", name, materialID, err)
		}
		record.Params = append(record.Params, material.Param{Name: name, Key: key, Value: parsed})
	}
	return rows.Err()
}

func (s *Store) loadAllSamplers(ctx context.Context, byID map[string]*material.Record) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT material_id, slot, path, key, extra_x, extra_y FROM samplers ORDER BY material_id, sort_order")
	if err != nil {
		return fmt.Errorf("query samplers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			materialID, slot, key string
			path                  sql.NullString
			extraX, extraY        int
		)
		if err := rows.Scan(&materialID, &slot, &path, &key, &extraX, &extraY); err != nil {
			return fmt.Errorf("scan sampler: %w", err)
		}
		record, ok := byID[materialID]
		if !ok {
			continue
		}
		record.Samplers = append(record.Samplers, material.Sampler{
			Slot:   slot,
			Path:   nullableToPtr(path),
			Key:    key,
			ExtraX: extraX,
			ExtraY: extraY,
		})
	}
	return rows.Err()
}

func upsertRecord(ctx context.Context, q querier, record *material.Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	importedAt := record.ImportedAt
	if importedAt.IsZero() {
		importedAt = time.Now().UTC()
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO materials (`+materialColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             name = excluded.name, archive = excluded.archive,
             shader_path = excluded.shader_path, source_path = excluded.source_path,
             compression = excluded.compression, key = excluded.key,
             edit_state = excluded.edit_state, imported_at = excluded.imported_at`,
		record.ID,
		record.Name,
		record.Archive,
		record.ShaderPath,
		record.SourcePath,
		record.Compression,
		record.Key,
		string(record.EditState),
		importedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("upsert material: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM params WHERE material_id = ?", record.ID); err != nil {
		return fmt.Errorf("clear params: %w", err)
	}
	for i, param := range record.Params {
		value := param.Value.String()
		if opaque, ok := param.Value.(material.OpaqueValue); ok {
			value = opaque.Raw
		}
		if _, err := q.ExecContext(ctx,
			"INSERT INTO params (material_id, sort_order, name, key, type, value) VALUES (?, ?, ?, ?, ?, ?)",
			record.ID, i, param.Name, param.Key, param.Value.TypeName(), value,
		); err != nil {
			return fmt.Errorf("insert param %s: %w", param.Name, err)
		}
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM samplers WHERE material_id = ?", record.ID); err != nil {
		return fmt.Errorf("clear samplers: %w", err)
	}
	for i, sampler := range record.Samplers {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO samplers (material_id, sort_order, slot, sampler_type, path, key, extra_x, extra_y) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			record.ID, i, sampler.Slot, sampler.Type(), ptrToNullable(sampler.Path), sampler.Key, sampler.ExtraX, sampler.ExtraY,
		); err != nil {
			return fmt.Errorf("insert sampler %s: %w", sampler.Slot, err)
		}
	}
	return nil
}

func getRecord(ctx context.Context, q querier, id string) (*material.Record, error) {
	row := q.QueryRowContext(ctx, "SELECT "+materialColumns+" FROM materials WHERE id = ?", id)
	record, err := scanMaterial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		"SELECT name, key, type, value FROM params WHERE material_id = ? ORDER BY sort_order", id)
	if err != nil {
		return nil, fmt.Errorf("query params: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, key, declared, value string
		if err := rows.Scan(&name, &key, &declared, &value); err != nil {
			return nil, fmt.Errorf("scan param: %w", err)
		}
		parsed, err := material.ParseValue(declared, value)
		if err != nil {
			return nil, fmt.Errorf("decode param %s of %s: %w", name, id, err)
		}
		record.Params = append(record.Params, material.Param{Name: name, Key: key, Value: parsed})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate params: %w", err)
	}

	samplerRows, err := q.QueryContext(ctx,
		"SELECT slot, path, key, extra_x, extra_y FROM samplers WHERE material_id = ? ORDER BY sort_order", id)
	if err != nil {
		return nil, fmt.Errorf("query samplers: %w", err)
	}
	defer samplerRows.Close()
	for samplerRows.Next() {
		var (
			slot, key      string
			path           sql.NullString
			extraX, extraY int
		)
		if err := samplerRows.Scan(&slot, &path, &key, &extraX, &extraY); err != nil {
			return nil, fmt.Errorf("scan sampler: %w", err)
		}
		record.Samplers = append(record.Samplers, material.Sampler{
			Slot:   slot,
			Path:   nullableToPtr(path),
			Key:    key,
			ExtraX: extraX,
			ExtraY: extraY,
		})
	}
	if err := samplerRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samplers: %w", err)
	}
	return record, nil
}

func editStates(ctx context.Context, q querier, ids []string) (map[string]material.EditState, error) {
	states := make(map[string]material.EditState, len(ids))
	if len(ids) == 0 {
		return states, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		"SELECT id, edit_state FROM materials WHERE id IN ("+makePlaceholders(len(ids))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("query edit states: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, state string
		if err := rows.Scan(&id, &state); err != nil {
			return nil, fmt.Errorf("scan edit state: %w", err)
		}
		states[id] = material.EditState(state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edit states: %w", err)
	}
	return states, nil
}

func scanMaterial(scanner interface{ Scan(dest ...any) error }) (*material.Record, error) {
	var (
		record      material.Record
		editState   string
		importedRaw string
	)
	if err := scanner.Scan(
		&record.ID,
		&record.Name,
		&record.Archive,
		&record.ShaderPath,
		&record.SourcePath,
		&record.Compression,
		&record.Key,
		&editState,
		&importedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan material: %w", err)
	}
	record.EditState = material.EditState(editState)
	if imported, err := time.Parse(time.RFC3339Nano, importedRaw); err == nil {
		record.ImportedAt = imported
	}
	return &record, nil
}

func nullableToPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func ptrToNullable(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return replacer.Replace(value)
}

func paginate(ids []string, offset, limit int) []string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) {
		return nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
