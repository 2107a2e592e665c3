package testsupport

import (
	"fmt"

	"matport/internal/material"
)

// NewRecord builds a small valid record for tests. The identifier doubles
// as the name source.
func NewRecord(id string, opts ...RecordOption) *material.Record {
	record := &material.Record{
		ID:         id,
		Name:       id,
		Archive:    "test.matbinbnd",
		ShaderPath: `N:\GR\data\Material\mtd\map\M_Test.spx`,
		Key:        "1",
		EditState:  material.EditStateUnmodified,
	}
	for _, opt := range opts {
		opt(record)
	}
	return record
}

// RecordOption mutates a test record under construction.
type RecordOption func(*material.Record)

// WithArchive sets the source archive.
func WithArchive(archive string) RecordOption {
	return func(r *material.Record) {
		r.Archive = archive
	}
}

// WithShader sets the shader path.
func WithShader(shaderPath string) RecordOption {
	return func(r *material.Record) {
		r.ShaderPath = shaderPath
	}
}

// WithFloatParam appends a scalar float parameter.
func WithFloatParam(name string, value float64) RecordOption {
	return func(r *material.Record) {
		r.Params = append(r.Params, material.Param{
			Name:  name,
			Key:   fmt.Sprintf("%d", len(r.Params)),
			Value: material.FloatValue(value),
		})
	}
}

// WithSampler appends a bound sampler slot.
func WithSampler(slot, path string) RecordOption {
	return func(r *material.Record) {
		sampler := material.Sampler{Slot: slot, Key: fmt.Sprintf("%d", len(r.Samplers))}
		if path != "" {
			sampler.Path = &path
		}
		r.Samplers = append(r.Samplers, sampler)
	}
}

// WithEditState sets the edit state.
func WithEditState(state material.EditState) RecordOption {
	return func(r *material.Record) {
		r.EditState = state
	}
}

// Definition renders a record as a definition file body, for extraction and
// import tests that need real files on disk.
func Definition(r *material.Record) []byte {
	return material.Encode(r)
}
