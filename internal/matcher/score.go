package matcher

import (
	"math"

	"matport/internal/material"
	"matport/internal/textutil"
)

// Weights holds the relative importance of each similarity component.
// They need not sum to one; scores normalize by the total.
type Weights struct {
	SamplerSlots float64
	Parameters   float64
	ShaderPath   float64
	NameTokens   float64
}

func (w Weights) total() float64 {
	return w.SamplerSlots + w.Parameters + w.ShaderPath + w.NameTokens
}

// Breakdown carries the unweighted component similarities of one match.
type Breakdown struct {
	SamplerSlots float64
	Parameters   float64
	ShaderPath   float64
	NameTokens   float64
}

// Match pairs a candidate record with its score against the query.
type Match struct {
	Record    *material.Record
	Score     float64
	Breakdown Breakdown
}

// score computes the weighted similarity of candidate against the query.
func score(query, candidate *material.Record, weights Weights, tolerance float64) Match {
	breakdown := Breakdown{
		SamplerSlots: textutil.Jaccard(query.SlotSet(), candidate.SlotSet()),
		Parameters:   paramSimilarity(query, candidate, tolerance),
		ShaderPath:   textutil.LevenshteinSimilarity(query.ShaderPath, candidate.ShaderPath),
		NameTokens:   textutil.Jaccard(textutil.TokenSet(query.Name), textutil.TokenSet(candidate.Name)),
	}
	total := weights.total()
	weighted := weights.SamplerSlots*breakdown.SamplerSlots +
		weights.Parameters*breakdown.Parameters +
		weights.ShaderPath*breakdown.ShaderPath +
		weights.NameTokens*breakdown.NameTokens
	return Match{Record: candidate, Score: weighted / total, Breakdown: breakdown}
}

// paramSimilarity is the fraction of parameter names, over the union of
// both records' names, present in both with values agreeing within the
// relative tolerance. Two records without parameters count as identical.
func paramSimilarity(query, candidate *material.Record, tolerance float64) float64 {
	if len(query.Params) == 0 && len(candidate.Params) == 0 {
		return 1
	}
	union := make(map[string]struct{}, len(query.Params)+len(candidate.Params))
	for _, param := range query.Params {
		union[param.Name] = struct{}{}
	}
	for _, param := range candidate.Params {
		union[param.Name] = struct{}{}
	}

	matching := 0
	for _, param := range query.Params {
		other, ok := candidate.ParamByName(param.Name)
		if !ok {
			continue
		}
		if valuesMatch(param.Value, other.Value, tolerance) {
			matching++
		}
	}
	return float64(matching) / float64(len(union))
}

func valuesMatch(a, b material.Value, tolerance float64) bool {
	if na, okA := material.Numeric(a); okA {
		nb, okB := material.Numeric(b)
		return okB && withinTolerance(na, nb, tolerance)
	}
	if va, okA := material.Vector(a); okA {
		vb, okB := material.Vector(b)
		if !okB || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !withinTolerance(va[i], vb[i], tolerance) {
				return false
			}
		}
		return true
	}
	opaqueA, okA := a.(material.OpaqueValue)
	opaqueB, okB := b.(material.OpaqueValue)
	return okA && okB && opaqueA == opaqueB
}

// withinTolerance compares relative to the larger magnitude, with an
// absolute fallback around zero so 0 and 1e-9 still match.
func withinTolerance(a, b, tolerance float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		scale = 1
	}
	return diff <= tolerance*scale
}
