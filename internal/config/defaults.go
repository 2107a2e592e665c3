package config

const (
	defaultLibraryDir       = "~/.local/share/matport/libraries"
	defaultStagingDir       = "~/.local/share/matport/staging"
	defaultLogDir           = "~/.local/share/matport/logs"
	defaultExtractorBinary  = "witchybnd"
	defaultExtractorTimeout = 300
	defaultImportWorkers    = 8
	defaultMatcherWorkers   = 4
	defaultMatcherTopK      = 20
	defaultParamTolerance   = 0.01
	defaultUndoDepth        = 50
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"

	defaultWeightSamplerSlots = 0.35
	defaultWeightParameters   = 0.25
	defaultWeightShaderPath   = 0.25
	defaultWeightNameTokens   = 0.15
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Extractor: Extractor{
			Binary:         defaultExtractorBinary,
			TimeoutSeconds: defaultExtractorTimeout,
		},
		Import: Import{
			Workers: defaultImportWorkers,
		},
		Matcher: Matcher{
			WeightSamplerSlots: defaultWeightSamplerSlots,
			WeightParameters:   defaultWeightParameters,
			WeightShaderPath:   defaultWeightShaderPath,
			WeightNameTokens:   defaultWeightNameTokens,
			ParamTolerance:     defaultParamTolerance,
			Workers:            defaultMatcherWorkers,
			TopK:               defaultMatcherTopK,
			FastMode:           true,
		},
		Edits: Edits{
			UndoDepth: defaultUndoDepth,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
