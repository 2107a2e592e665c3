package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values that would break at runtime.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		problems = append(problems, "paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		problems = append(problems, "paths.staging_dir must be set")
	}
	if c.Paths.LibraryDir != "" && c.Paths.LibraryDir == c.Paths.StagingDir {
		problems = append(problems, "paths.library_dir and paths.staging_dir must differ")
	}
	if c.Extractor.TimeoutSeconds <= 0 {
		problems = append(problems, "extractor.timeout_seconds must be positive")
	}
	if c.Import.Workers <= 0 {
		problems = append(problems, "import.workers must be positive")
	}
	if c.Matcher.Workers <= 0 {
		problems = append(problems, "matcher.workers must be positive")
	}

	for _, weight := range []struct {
		name  string
		value float64
	}{
		{"matcher.weight_sampler_slots", c.Matcher.WeightSamplerSlots},
		{"matcher.weight_parameters", c.Matcher.WeightParameters},
		{"matcher.weight_shader_path", c.Matcher.WeightShaderPath},
		{"matcher.weight_name_tokens", c.Matcher.WeightNameTokens},
	} {
		if weight.value < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative", weight.name))
		}
	}
	weightTotal := c.Matcher.WeightSamplerSlots + c.Matcher.WeightParameters +
		c.Matcher.WeightShaderPath + c.Matcher.WeightNameTokens
	if weightTotal <= 0 {
		problems = append(problems, "matcher weights must not all be zero")
	}
	if c.Matcher.ParamTolerance < 0 || c.Matcher.ParamTolerance >= 1 {
		problems = append(problems, "matcher.param_tolerance must be in [0, 1)")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
