package preflight

import (
	"context"

	"airshift/internal/config"
	"airshift/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir))
	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}
	results = append(results, CheckAuthService(ctx, cfg))

	return results
}

// CheckSystemDeps evaluates system-level binary dependencies. Both the daemon
// and the CLI status command use this to avoid duplicating the requirements
// list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	tools := []deps.Tool{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for encoding",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media inspection",
			Optional:    true,
		},
	}
	return deps.Check(ctx, tools)
}
