// Package deps probes the external tools the recording pipeline shells
// out to.
package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

const versionProbeTimeout = 5 * time.Second

// Tool names one external binary and what the pipeline needs it for.
type Tool struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports a tool's resolution outcome. Version carries the first line
// of `-version` output when the tool answered the probe.
type Status struct {
	Tool
	Available bool
	Version   string
	Detail    string
}

// Check resolves every tool on PATH and probes the available ones for a
// version line.
func Check(ctx context.Context, tools []Tool) []Status {
	results := make([]Status, 0, len(tools))
	for _, tool := range tools {
		tool.Command = strings.TrimSpace(tool.Command)
		tool.Description = strings.TrimSpace(tool.Description)
		status := Status{Tool: tool}
		switch {
		case tool.Command == "":
			status.Detail = "command not configured"
		case !onPath(tool.Command):
			status.Detail = fmt.Sprintf("binary %q not found", tool.Command)
		default:
			status.Available = true
			status.Version = probeVersion(ctx, tool.Command)
		}
		results = append(results, status)
	}
	return results
}

func onPath(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}

// probeVersion returns the first line of `-version` output, or an empty
// string when the tool does not respond within the probe timeout.
func probeVersion(ctx context.Context, binary string) string {
	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := commandContext(probeCtx, binary, "-version").Output() //nolint:gosec
	if err != nil {
		return ""
	}
	line := string(out)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}
