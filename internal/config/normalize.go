package config

import (
	"runtime"
	"strings"
)

// normalize expands path fields and fills zero values with defaults so the
// rest of the repository never re-checks them.
func (c *Config) normalize() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(orDefault(c.Paths.LibraryDir, defaultLibraryDir)); err != nil {
		return err
	}
	if c.Paths.StagingDir, err = expandPath(orDefault(c.Paths.StagingDir, defaultStagingDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return err
	}

	c.Extractor.Binary = strings.TrimSpace(c.Extractor.Binary)
	if c.Extractor.Binary == "" {
		c.Extractor.Binary = defaultExtractorBinary
	}
	if c.Extractor.TimeoutSeconds <= 0 {
		c.Extractor.TimeoutSeconds = defaultExtractorTimeout
	}

	if c.Import.Workers <= 0 {
		c.Import.Workers = defaultImportWorkersForHost()
	}
	if c.Matcher.Workers <= 0 {
		c.Matcher.Workers = defaultMatcherWorkers
	}
	if c.Matcher.TopK <= 0 {
		c.Matcher.TopK = defaultMatcherTopK
	}
	if c.Matcher.ParamTolerance <= 0 {
		c.Matcher.ParamTolerance = defaultParamTolerance
	}
	if c.Edits.UndoDepth <= 0 {
		c.Edits.UndoDepth = defaultUndoDepth
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// defaultImportWorkersForHost caps the historical default at the host's
// available parallelism.
func defaultImportWorkersForHost() int {
	workers := defaultImportWorkers
	if cpus := runtime.NumCPU(); cpus < workers {
		workers = cpus
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
