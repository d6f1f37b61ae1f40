// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Plan and execute a request"`
	Plan    PlanCmd    `cmd:"" help:"Build a plan without executing it"`
	Skills  SkillsCmd  `cmd:"" help:"List discovered skills"`
	Replay  ReplayCmd  `cmd:"" help:"Replay a recorded session log"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// RunCmd plans a request and executes the resulting tasks.
type RunCmd struct {
	Prompt    string `arg:"" help:"Request to plan and execute"`
	Config    string `help:"Config file path"`
	Policy    string `help:"Policy file path"`
	Workspace string `help:"Workspace directory"`
	Yes       bool   `short:"y" help:"Approve gated steps without prompting"`
}

// PlanCmd builds and prints a plan without executing any task.
type PlanCmd struct {
	Prompt    string `arg:"" help:"Request to plan"`
	Config    string `help:"Config file path"`
	Workspace string `help:"Workspace directory"`
	JSON      bool   `help:"Print the plan as JSON"`
}

// SkillsCmd lists the skills discovered in the configured directories.
type SkillsCmd struct {
	Config string `help:"Config file path"`
}

// ReplayCmd renders a session log as a timeline.
type ReplayCmd struct {
	Session string `arg:"" help:"Session log file (.jsonl)"`
	Verbose int    `short:"v" type:"counter" help:"Show event fields"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
