package edits

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"matport/internal/material"
)

// Mutation describes a texture-path rewrite. Find is a literal substring
// unless Pattern is set, in which case it is a Go regular expression and
// Replace may reference capture groups. Use the braced form ${1} when the
// reference is followed by a word character: $1_a reads as the group named
// "1_a", not group 1 then "_a". SamplerType, when set, restricts the rewrite
// to slots of that type.
type Mutation struct {
	Find        string
	Replace     string
	Pattern     bool
	SamplerType string
}

// Description renders the mutation for history listings.
func (m Mutation) Description() string {
	kind := "replace"
	if m.Pattern {
		kind = "replace-pattern"
	}
	desc := fmt.Sprintf("%s %q -> %q", kind, m.Find, m.Replace)
	if m.SamplerType != "" {
		desc += " (sampler type " + m.SamplerType + ")"
	}
	return desc
}

type rewriter struct {
	mutation Mutation
	re       *regexp.Regexp
}

func newRewriter(mutation Mutation) (*rewriter, error) {
	if mutation.Find == "" {
		return nil, errors.New("mutation requires a find expression")
	}
	rw := &rewriter{mutation: mutation}
	if mutation.Pattern {
		re, err := regexp.Compile(mutation.Find)
		if err != nil {
			return nil, fmt.Errorf("compile pattern: %w", err)
		}
		rw.re = re
	}
	return rw, nil
}

// apply rewrites the record's sampler paths in place and reports whether
// anything changed.
func (rw *rewriter) apply(record *material.Record) bool {
	changed := false
	for i := range record.Samplers {
		sampler := &record.Samplers[i]
		if sampler.Path == nil {
			continue
		}
		if rw.mutation.SamplerType != "" && sampler.Type() != rw.mutation.SamplerType {
			continue
		}
		updated := rw.rewrite(*sampler.Path)
		if updated != *sampler.Path {
			*sampler.Path = updated
			changed = true
		}
	}
	return changed
}

func (rw *rewriter) rewrite(path string) string {
	if rw.re != nil {
		return rw.re.ReplaceAllString(path, rw.mutation.Replace)
	}
	return strings.ReplaceAll(path, rw.mutation.Find, rw.mutation.Replace)
}
