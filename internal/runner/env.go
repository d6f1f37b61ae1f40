package runner

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/openclaw/planweave/internal/config"
	"github.com/openclaw/planweave/internal/skills"
	"github.com/vinayprograms/agentkit/tools"
)

// environmentInfo builds the preformatted environment block injected
// into refinement prompts.
func environmentInfo(cfg *config.Config, registry *tools.Registry, catalog *skills.Catalog) string {
	var b strings.Builder

	fmt.Fprintf(&b, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format("2006-01-02"))
	if cfg.Agent.Workspace != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", cfg.Agent.Workspace)
	}

	if registry != nil {
		var names []string
		for _, def := range registry.Definitions() {
			names = append(names, def.Name)
		}
		if len(names) > 0 {
			fmt.Fprintf(&b, "Available tools: %s\n", strings.Join(names, ", "))
		}
	}

	if catalog != nil {
		var lines []string
		for _, ref := range catalog.Refs() {
			lines = append(lines, fmt.Sprintf("- %s: %s", ref.Name, ref.Description))
		}
		if len(lines) > 0 {
			b.WriteString("Available skills:\n")
			b.WriteString(strings.Join(lines, "\n"))
			b.WriteString("\n")
		}
	}

	return strings.TrimSpace(b.String())
}
