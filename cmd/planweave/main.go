// Package main is the entry point for the planweave CLI.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	// Load .env for API keys and other env vars
	_ = godotenv.Load()

	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("planweave"),
		kong.Description("Plan a request with an LLM and execute the resulting tasks."),
		kongVars(),
	)
	kctx.FatalIfErrorf(kctx.Run())
}

// Run implements the version command.
func (c *VersionCmd) Run() error {
	fmt.Printf("planweave version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
