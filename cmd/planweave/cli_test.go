package main

import (
	"testing"

	"github.com/alecthomas/kong"
)

func TestRunCmd_Flags(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{
		"run", "summarize the repo",
		"--config", "/path/to/planweave.toml",
		"--policy", "/path/to/policy.toml",
		"--workspace", "/tmp/workspace",
		"-y",
	})
	if err != nil {
		t.Fatal(err)
	}

	if cli.Run.Prompt != "summarize the repo" {
		t.Errorf("expected prompt, got %q", cli.Run.Prompt)
	}
	if cli.Run.Config != "/path/to/planweave.toml" {
		t.Errorf("expected config path, got %q", cli.Run.Config)
	}
	if cli.Run.Policy != "/path/to/policy.toml" {
		t.Errorf("expected policy path, got %q", cli.Run.Policy)
	}
	if cli.Run.Workspace != "/tmp/workspace" {
		t.Errorf("expected workspace path, got %q", cli.Run.Workspace)
	}
	if !cli.Run.Yes {
		t.Error("expected -y to set auto-approval")
	}
}

func TestRunCmd_RequiresPrompt(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse([]string{"run"}); err == nil {
		t.Error("expected error for missing prompt argument")
	}
}

func TestPlanCmd_Flags(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"plan", "summarize the repo", "--json"})
	if err != nil {
		t.Fatal(err)
	}
	if cli.Plan.Prompt != "summarize the repo" || !cli.Plan.JSON {
		t.Errorf("unexpected plan command: %+v", cli.Plan)
	}
}

func TestReplayCmd_Flags(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"replay", "/tmp/sessions/abc.jsonl", "-v"})
	if err != nil {
		t.Fatal(err)
	}
	if cli.Replay.Session != "/tmp/sessions/abc.jsonl" {
		t.Errorf("expected session path, got %q", cli.Replay.Session)
	}
	if cli.Replay.Verbose != 1 {
		t.Errorf("expected verbosity 1, got %d", cli.Replay.Verbose)
	}
}

func TestSkillsCmd(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse([]string{"skills"}); err != nil {
		t.Fatal(err)
	}
}
