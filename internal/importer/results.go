package importer

import (
	"time"

	"matport/internal/material"
)

// FileError records one definition file that could not be parsed.
type FileError struct {
	Path string
	Err  error
}

// Conflict records an incoming definition that was not committed because
// the library copy carries manual edits.
type Conflict struct {
	ID      string
	Archive string
}

// ArchiveResult is the per-archive outcome of a batch import.
type ArchiveResult struct {
	Archive string
	// Parsed counts definitions successfully parsed from the archive.
	Parsed int
	// Imported counts records new to the library.
	Imported int
	// Overwritten counts records that replaced an existing unedited copy.
	Overwritten int
	// Conflicts lists records skipped because the library copy is edited.
	Conflicts []Conflict
	// FileErrors lists definitions that failed to parse.
	FileErrors []FileError
	// Err is set when the archive failed as a whole (extraction or commit).
	Err error
	// Skipped is true when cancellation stopped the batch before this
	// archive was processed.
	Skipped bool
	Elapsed time.Duration
}

// Committed reports how many records this archive wrote to the library.
func (r ArchiveResult) Committed() int {
	return r.Imported + r.Overwritten
}

// BatchResult aggregates a whole import run.
type BatchResult struct {
	Archives []ArchiveResult
	Started  time.Time
	Finished time.Time
}

// TotalCommitted sums committed records across archives.
func (b *BatchResult) TotalCommitted() int {
	total := 0
	for _, archive := range b.Archives {
		total += archive.Committed()
	}
	return total
}

// TotalConflicts sums edited-record conflicts across archives.
func (b *BatchResult) TotalConflicts() int {
	total := 0
	for _, archive := range b.Archives {
		total += len(archive.Conflicts)
	}
	return total
}

// TotalFileErrors sums unparseable definitions across archives.
func (b *BatchResult) TotalFileErrors() int {
	total := 0
	for _, archive := range b.Archives {
		total += len(archive.FileErrors)
	}
	return total
}

// FailedArchives lists archives that failed outright.
func (b *BatchResult) FailedArchives() []ArchiveResult {
	var failed []ArchiveResult
	for _, archive := range b.Archives {
		if archive.Err != nil && !archive.Skipped {
			failed = append(failed, archive)
		}
	}
	return failed
}

// Progress reports pipeline advancement for interactive display.
type Progress struct {
	Archive string
	Stage   Stage
	// Done and Total count archives that finished the commit stage.
	Done  int
	Total int
}

// Stage identifies a pipeline phase in progress updates.
type Stage string

const (
	StageExtract Stage = "extract"
	StageParse   Stage = "parse"
	StageCommit  Stage = "commit"
)

// parsedArchive is the handoff between the worker pool and the committer.
type parsedArchive struct {
	index      int
	archive    string
	records    []*material.Record
	fileErrors []FileError
	err        error
	elapsed    time.Duration
}
