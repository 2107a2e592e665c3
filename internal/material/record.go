package material

import (
	"fmt"
	"strings"
	"time"
)

// EditState tracks how a persisted record relates to its imported source.
type EditState string

const (
	// EditStateUnmodified marks a record untouched since its first import.
	EditStateUnmodified EditState = "unmodified"
	// EditStateImported marks a record that has been overwritten by a
	// later import of the same identifier.
	EditStateImported EditState = "imported"
	// EditStateEdited marks a record changed by a batch edit. Edited
	// records survive re-imports; the incoming copy is reported as a
	// conflict instead.
	EditStateEdited EditState = "edited"
)

var editStateSet = map[EditState]struct{}{
	EditStateUnmodified: {},
	EditStateImported:   {},
	EditStateEdited:     {},
}

// ParseEditState converts a string into a known EditState.
func ParseEditState(value string) (EditState, bool) {
	normalized := EditState(strings.ToLower(strings.TrimSpace(value)))
	_, ok := editStateSet[normalized]
	return normalized, ok
}

// Sampler is one named texture input point on a material.
type Sampler struct {
	// Slot is the full slot name from the definition, unique per record.
	Slot string
	// Path is the bound texture path; nil when the slot is unbound.
	Path *string
	// Key is an opaque field carried for lossless export.
	Key string
	// ExtraX and ExtraY carry the definition's auxiliary pair untouched.
	ExtraX int
	ExtraY int
}

// Type returns the sampler type: the final underscore-separated segment of
// the slot name (AlbedoMap in C_AlbedoMap_2 falls back to the trailing
// non-numeric segment).
func (s Sampler) Type() string {
	parts := strings.Split(s.Slot, "_")
	for i := len(parts) - 1; i >= 0; i-- {
		segment := strings.TrimSpace(parts[i])
		if segment == "" || isDigits(segment) {
			continue
		}
		return segment
	}
	return s.Slot
}

// PathValue returns the texture path or "" for unbound slots.
func (s Sampler) PathValue() string {
	if s.Path == nil {
		return ""
	}
	return *s.Path
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Record is the normalized representation of one material definition.
type Record struct {
	// ID is the archive-relative definition path, unique within a library
	// and stable across re-imports.
	ID          string
	Name        string
	Archive     string
	ShaderPath  string
	SourcePath  string
	Compression string
	Key         string
	Params      []Param
	Samplers    []Sampler
	ImportedAt  time.Time
	EditState   EditState
}

// InvariantViolationError reports a record that breaks a structural
// invariant (duplicate identifier, slot name, or parameter name).
type InvariantViolationError struct {
	ID     string
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("record %s: invariant violation: %s", e.ID, e.Detail)
}

// Validate checks per-record invariants: unique slot names and unique
// parameter names.
func (r *Record) Validate() error {
	slots := make(map[string]struct{}, len(r.Samplers))
	for _, sampler := range r.Samplers {
		if _, ok := slots[sampler.Slot]; ok {
			return &InvariantViolationError{ID: r.ID, Detail: fmt.Sprintf("duplicate sampler slot %q", sampler.Slot)}
		}
		slots[sampler.Slot] = struct{}{}
	}
	names := make(map[string]struct{}, len(r.Params))
	for _, param := range r.Params {
		if _, ok := names[param.Name]; ok {
			return &InvariantViolationError{ID: r.ID, Detail: fmt.Sprintf("duplicate parameter %q", param.Name)}
		}
		names[param.Name] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy, safe to mutate independently.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Params = make([]Param, len(r.Params))
	for i, param := range r.Params {
		cp.Params[i] = param.clone()
	}
	cp.Samplers = make([]Sampler, len(r.Samplers))
	for i, sampler := range r.Samplers {
		cp.Samplers[i] = sampler
		if sampler.Path != nil {
			path := *sampler.Path
			cp.Samplers[i].Path = &path
		}
	}
	return &cp
}

// SlotSet returns the set of sampler slot names.
func (r *Record) SlotSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Samplers))
	for _, sampler := range r.Samplers {
		set[sampler.Slot] = struct{}{}
	}
	return set
}

// ParamByName returns the named parameter, if present.
func (r *Record) ParamByName(name string) (Param, bool) {
	for _, param := range r.Params {
		if param.Name == name {
			return param, true
		}
	}
	return Param{}, false
}

// RecordID derives the stable identifier for a definition file from its
// archive-relative path: separators normalized to forward slashes and the
// trailing .xml suffix dropped.
func RecordID(relPath string) string {
	id := strings.ReplaceAll(relPath, "\\", "/")
	id = strings.TrimPrefix(id, "/")
	return strings.TrimSuffix(id, ".xml")
}
