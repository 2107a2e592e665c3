package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"matport/internal/config"
	"matport/internal/extraction"
	"matport/internal/logging"
	"matport/internal/material"
	"matport/internal/store"
)

// Pipeline imports material archives into a library.
type Pipeline struct {
	cfg       *config.Config
	store     *store.Store
	extractor *extraction.Client
	logger    *slog.Logger
	workers   int
}

// New constructs an import pipeline bound to an open read-write store.
func New(cfg *config.Config, st *store.Store, extractor *extraction.Client, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil || st == nil || extractor == nil {
		return nil, errors.New("pipeline requires config, store, and extractor")
	}
	workers := cfg.Import.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "importer"),
		workers:   workers,
	}, nil
}

// Run imports the given archives. Extraction and parsing fan out across the
// worker pool; commits run on this goroutine, one transaction per archive,
// in the order the archives were listed so a record appearing in several
// archives ends up with the last listing's contents. onProgress, when given,
// is called from a single goroutine, one update at a time. Cancellation
// stops the batch at the next archive boundary; already committed archives
// stay.
func (p *Pipeline) Run(ctx context.Context, archives []string, onProgress func(Progress)) (*BatchResult, error) {
	if len(archives) == 0 {
		return nil, errors.New("no archives to import")
	}

	batch := &BatchResult{
		Archives: make([]ArchiveResult, len(archives)),
		Started:  time.Now().UTC(),
	}
	for i, archive := range archives {
		batch.Archives[i].Archive = archive
	}

	// Workers and the commit loop all report progress; updates funnel
	// through one delivery goroutine so the callback never runs
	// concurrently with itself.
	notify := func(Progress) {}
	finishNotify := func() {}
	if onProgress != nil {
		updates := make(chan Progress)
		delivered := make(chan struct{})
		go func() {
			defer close(delivered)
			for update := range updates {
				update.Total = len(archives)
				onProgress(update)
			}
		}()
		notify = func(update Progress) { updates <- update }
		finishNotify = func() {
			close(updates)
			<-delivered
		}
	}

	work := make(chan int)
	parsed := make(chan parsedArchive)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range work {
				parsed <- p.extractAndParse(ctx, index, archives[index], notify)
			}
		}()
	}
	go func() {
		defer close(work)
		for index := range archives {
			select {
			case work <- index:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(parsed)
	}()

	// Commit strictly in input order. Out-of-order arrivals wait in pending.
	pending := make(map[int]parsedArchive, p.workers)
	next := 0
	done := 0
	for arrival := range parsed {
		pending[arrival.index] = arrival
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			p.commitArchive(ctx, ready, &batch.Archives[next], notify)
			next++
			done++
			notify(Progress{Archive: ready.archive, Stage: StageCommit, Done: done})
		}
	}

	// Anything past the last sequential commit never reached the committer.
	for i := next; i < len(batch.Archives); i++ {
		batch.Archives[i].Skipped = true
		batch.Archives[i].Err = ctx.Err()
	}
	finishNotify()

	batch.Finished = time.Now().UTC()
	p.logger.Info("import batch finished",
		logging.Int("archives", len(archives)),
		logging.Int("committed", batch.TotalCommitted()),
		logging.Int("conflicts", batch.TotalConflicts()),
		logging.Int("file_errors", batch.TotalFileErrors()),
		logging.Int("failed", len(batch.FailedArchives())),
		logging.Duration("elapsed", batch.Finished.Sub(batch.Started)))
	return batch, ctx.Err()
}

// extractAndParse runs on the worker pool: unpack one archive into a fresh
// staging workspace and parse every definition in it.
func (p *Pipeline) extractAndParse(ctx context.Context, index int, archivePath string, notify func(Progress)) parsedArchive {
	start := time.Now()
	result := parsedArchive{index: index, archive: archivePath}
	if err := ctx.Err(); err != nil {
		result.err = err
		return result
	}

	archiveName := filepath.Base(archivePath)
	notify(Progress{Archive: archiveName, Stage: StageExtract})

	workspaceDir := filepath.Join(p.cfg.Paths.StagingDir, uuid.New().String())
	workspace, err := p.extractor.Extract(ctx, archivePath, workspaceDir)
	if err != nil {
		result.err = err
		result.elapsed = time.Since(start)
		return result
	}
	defer func() {
		if err := workspace.Close(); err != nil {
			p.logger.Warn("workspace cleanup failed",
				logging.String("workspace", workspaceDir),
				logging.Error(err))
		}
	}()

	notify(Progress{Archive: archiveName, Stage: StageParse})
	files, err := workspace.Definitions()
	if err != nil {
		result.err = err
		result.elapsed = time.Since(start)
		return result
	}

	for _, rel := range files {
		data, err := workspace.ReadDefinition(rel)
		if err != nil {
			result.fileErrors = append(result.fileErrors, FileError{Path: rel, Err: err})
			continue
		}
		record, err := material.Parse(data, archiveName, rel)
		if err != nil {
			result.fileErrors = append(result.fileErrors, FileError{Path: rel, Err: err})
			continue
		}
		result.records = append(result.records, record)
	}
	result.elapsed = time.Since(start)
	return result
}

// commitArchive writes one archive's records in a single transaction.
// Records whose library copy is edited are skipped and reported; everything
// else is inserted or overwritten. Any store error rolls the archive back.
func (p *Pipeline) commitArchive(ctx context.Context, arrival parsedArchive, result *ArchiveResult, notify func(Progress)) {
	result.Parsed = len(arrival.records)
	result.FileErrors = arrival.fileErrors
	result.Elapsed = arrival.elapsed
	if arrival.err != nil {
		result.Err = arrival.err
		if errors.Is(arrival.err, context.Canceled) || errors.Is(arrival.err, context.DeadlineExceeded) {
			result.Skipped = true
		}
		return
	}
	if err := ctx.Err(); err != nil {
		result.Err = err
		result.Skipped = true
		return
	}

	commitStart := time.Now()
	err := p.commitRecords(ctx, arrival, result)
	result.Elapsed += time.Since(commitStart)
	if err != nil {
		result.Imported = 0
		result.Overwritten = 0
		result.Conflicts = nil
		result.Err = fmt.Errorf("commit archive %s: %w", arrival.archive, err)
		return
	}

	p.logger.Info("archive committed",
		logging.String("archive", arrival.archive),
		logging.Int("parsed", result.Parsed),
		logging.Int("imported", result.Imported),
		logging.Int("overwritten", result.Overwritten),
		logging.Int("conflicts", len(result.Conflicts)),
		logging.Int("file_errors", len(result.FileErrors)),
		logging.Duration("elapsed", result.Elapsed))
}

func (p *Pipeline) commitRecords(ctx context.Context, arrival parsedArchive, result *ArchiveResult) error {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ids := make([]string, len(arrival.records))
	for i, record := range arrival.records {
		ids[i] = record.ID
	}
	existing, err := tx.EditStates(ctx, ids)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	archiveName := filepath.Base(arrival.archive)
	committed := make(map[string]struct{}, len(arrival.records))
	for _, record := range arrival.records {
		state, exists := existing[record.ID]
		if exists && state == material.EditStateEdited {
			result.Conflicts = append(result.Conflicts, Conflict{ID: record.ID, Archive: archiveName})
			continue
		}
		record.ImportedAt = now
		record.EditState = material.EditStateUnmodified
		if exists {
			record.EditState = material.EditStateImported
		}
		if err := tx.Upsert(ctx, record); err != nil {
			return err
		}
		// A duplicate identifier later in the same archive replaces the
		// earlier write without counting twice.
		if _, dup := committed[record.ID]; dup {
			continue
		}
		committed[record.ID] = struct{}{}
		if exists {
			result.Overwritten++
		} else {
			result.Imported++
		}
	}

	return tx.Commit()
}
