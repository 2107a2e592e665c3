package matcher

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"matport/internal/config"
	"matport/internal/logging"
	"matport/internal/material"
)

// Matcher ranks library records by similarity to a query material.
type Matcher struct {
	weights   Weights
	tolerance float64
	workers   int
	topK      int
	fastMode  bool
	logger    *slog.Logger
}

// Option overrides matcher settings taken from the config.
type Option func(*Matcher)

// WithWeights replaces the component weights.
func WithWeights(weights Weights) Option {
	return func(m *Matcher) {
		m.weights = weights
	}
}

// WithTopK bounds how many matches Rank returns. Zero or negative keeps all.
func WithTopK(topK int) Option {
	return func(m *Matcher) {
		m.topK = topK
	}
}

// WithFastMode toggles the candidate prefilter.
func WithFastMode(enabled bool) Option {
	return func(m *Matcher) {
		m.fastMode = enabled
	}
}

// New constructs a matcher from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Matcher, error) {
	if cfg == nil {
		return nil, errors.New("matcher requires config")
	}
	workers := cfg.Matcher.Workers
	if workers < 1 {
		workers = 1
	}
	m := &Matcher{
		weights: Weights{
			SamplerSlots: cfg.Matcher.WeightSamplerSlots,
			Parameters:   cfg.Matcher.WeightParameters,
			ShaderPath:   cfg.Matcher.WeightShaderPath,
			NameTokens:   cfg.Matcher.WeightNameTokens,
		},
		tolerance: cfg.Matcher.ParamTolerance,
		workers:   workers,
		topK:      cfg.Matcher.TopK,
		fastMode:  cfg.Matcher.FastMode,
		logger:    logging.NewComponentLogger(logger, "matcher"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.weights.total() <= 0 {
		return nil, errors.New("matcher weights must not all be zero")
	}
	return m, nil
}

// Rank scores every candidate against the query and returns the top matches
// ordered by score descending, then shader similarity descending, then
// record identifier ascending. The ordering is total, so results are
// identical across runs and worker counts.
func (m *Matcher) Rank(ctx context.Context, query *material.Record, corpus []*material.Record) ([]Match, error) {
	if query == nil {
		return nil, errors.New("query record required")
	}

	start := time.Now()
	candidates := corpus
	if m.fastMode {
		candidates = m.prefilter(query, corpus)
	}

	matches := make([]Match, len(candidates))
	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < m.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				matches[i] = score(query, candidates[i], m.weights, m.tolerance)
			}
		}()
	}

feed:
	for i := range candidates {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Breakdown.ShaderPath != matches[j].Breakdown.ShaderPath {
			return matches[i].Breakdown.ShaderPath > matches[j].Breakdown.ShaderPath
		}
		return matches[i].Record.ID < matches[j].Record.ID
	})

	if m.topK > 0 && len(matches) > m.topK {
		matches = matches[:m.topK]
	}

	m.logger.Debug("ranked candidates",
		logging.String("query", query.ID),
		logging.Int("corpus", len(corpus)),
		logging.Int("scored", len(candidates)),
		logging.Int("returned", len(matches)),
		logging.Bool("fast_mode", m.fastMode),
		logging.Duration("elapsed", time.Since(start)))
	return matches, nil
}

// prefilter drops candidates that share no sampler slot with the query and
// use a different shader. It only prunes: every surviving candidate scores
// exactly as it would in a full scan. Queries without samplers skip the
// slot test so the shader check alone decides.
func (m *Matcher) prefilter(query *material.Record, corpus []*material.Record) []*material.Record {
	querySlots := query.SlotSet()
	if len(querySlots) == 0 && query.ShaderPath == "" {
		return corpus
	}

	kept := make([]*material.Record, 0, len(corpus))
	for _, candidate := range corpus {
		if candidate.ShaderPath == query.ShaderPath {
			kept = append(kept, candidate)
			continue
		}
		shared := false
		for _, sampler := range candidate.Samplers {
			if _, ok := querySlots[sampler.Slot]; ok {
				shared = true
				break
			}
		}
		if shared {
			kept = append(kept, candidate)
		}
	}
	return kept
}
