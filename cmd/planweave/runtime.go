// Package main provides runtime wiring for the run and plan commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openclaw/planweave/internal/approve"
	"github.com/openclaw/planweave/internal/config"
	"github.com/openclaw/planweave/internal/plan"
	"github.com/openclaw/planweave/internal/replay"
	"github.com/openclaw/planweave/internal/runner"
	"github.com/openclaw/planweave/internal/skills"
	"github.com/vinayprograms/agentkit/policy"
	"github.com/vinayprograms/agentkit/telemetry"
	"github.com/vinayprograms/agentkit/tools"
)

// runtime holds the wired components for one invocation.
type runtime struct {
	cfg      *config.Config
	pol      *policy.Policy
	catalog  *skills.Catalog
	registry *tools.Registry
	run      *runner.Runner
	telem    telemetry.Exporter
	watcher  *skills.Watcher

	closers []func()
}

// newRuntime wires components from loaded workflow configuration.
func newRuntime(w *workflow) (*runtime, error) {
	rt := &runtime{
		cfg:     w.cfg,
		pol:     w.pol,
		catalog: w.catalog,
	}
	if err := rt.setupTelemetry(); err != nil {
		return nil, err
	}
	rt.registry = tools.NewRegistry(rt.pol)
	rt.run = runner.New(rt.cfg, runner.NewProfileFactory(rt.cfg), rt.registry, rt.catalog)
	rt.setupSkillWatch()
	return rt, nil
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

// setupSkillWatch starts the catalog watcher when configured.
func (rt *runtime) setupSkillWatch() {
	if !rt.cfg.Skills.Watch {
		return
	}
	w, err := skills.Watch(rt.catalog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: skill watcher disabled: %v\n", err)
		return
	}
	rt.watcher = w
	rt.addCloser(func() { rt.watcher.Close() })
}

// cleanup runs all registered cleanup functions.
func (rt *runtime) cleanup() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// addCloser registers a cleanup function.
func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Run implements the run command.
func (c *RunCmd) Run() error {
	w := &workflow{
		configPath:    c.Config,
		policyPath:    c.Policy,
		workspacePath: c.Workspace,
	}
	if err := w.load(); err != nil {
		return err
	}

	rt, err := newRuntime(w)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	if c.Yes {
		rt.run.Approve = func(*plan.Step) (bool, error) { return true, nil }
	} else {
		rt.run.Approve = approve.Confirm
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := rt.run.Run(ctx, c.Prompt); err != nil {
		return err
	}
	printResults(rt.run.Plan())
	return nil
}

// Run implements the plan command.
func (c *PlanCmd) Run() error {
	w := &workflow{
		configPath:    c.Config,
		workspacePath: c.Workspace,
	}
	if err := w.load(); err != nil {
		return err
	}

	rt, err := newRuntime(w)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	pl, err := rt.run.BuildPlan(ctx, c.Prompt)
	if err != nil {
		return err
	}
	if c.JSON {
		out, err := json.MarshalIndent(planOutline(pl), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	printPlan(pl)
	return nil
}

// Run implements the replay command.
func (c *ReplayCmd) Run() error {
	return replay.New(os.Stdout, c.Verbose).ReplayFile(c.Session)
}

// Run implements the skills command.
func (c *SkillsCmd) Run() error {
	w := &workflow{configPath: c.Config}
	if err := w.load(); err != nil {
		return err
	}
	refs := w.catalog.Refs()
	if len(refs) == 0 {
		fmt.Println("No skills found.")
		return nil
	}
	for _, ref := range refs {
		fmt.Printf("%-24s %s\n", ref.Name, ref.Description)
	}
	return nil
}

// taskOutline is the JSON shape for one planned task.
type taskOutline struct {
	Name             string `json:"name"`
	Slug             string `json:"slug"`
	WhatIsNeeded     string `json:"what_is_needed,omitempty"`
	Skill            string `json:"skill,omitempty"`
	References       string `json:"references,omitempty"`
	ExpectedOutput   string `json:"expected_output,omitempty"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
}

// planOutline converts a plan into its JSON outline.
func planOutline(pl *plan.Plan) [][]taskOutline {
	var steps [][]taskOutline
	for _, step := range pl.Steps() {
		var tasks []taskOutline
		for _, t := range step.Tasks() {
			data := t.Data()
			tasks = append(tasks, taskOutline{
				Name:             t.Name(),
				Slug:             t.Slug(),
				WhatIsNeeded:     data.WhatIsNeeded,
				Skill:            data.Skill,
				References:       data.References,
				ExpectedOutput:   data.ExpectedOutput,
				RequiresApproval: t.RequiresUserApproval(),
			})
		}
		steps = append(steps, tasks)
	}
	return steps
}

// printPlan prints a human-readable plan outline.
func printPlan(pl *plan.Plan) {
	for i, step := range pl.Steps() {
		fmt.Printf("Step %d:\n", i+1)
		for _, t := range step.Tasks() {
			marker := " "
			if t.RequiresUserApproval() {
				marker = "!"
			}
			fmt.Printf("  %s %s", marker, t.Name())
			if data := t.Data(); data.Skill != "" {
				fmt.Printf(" [%s]", data.Skill)
			}
			fmt.Println()
			if data := t.Data(); data.WhatIsNeeded != "" {
				fmt.Printf("      %s\n", data.WhatIsNeeded)
			}
		}
	}
}

// printResults prints each executed task's evaluation summary.
func printResults(pl *plan.Plan) {
	if pl == nil {
		return
	}
	for _, t := range pl.Tasks() {
		if !t.ExecDone() {
			continue
		}
		fmt.Printf("\n## %s\n\n%s\n", t.Name(), t.Result())
	}
}
