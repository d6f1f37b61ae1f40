// Package runner drives planning sessions: it obtains a plan from the
// LLM, hands it to the plan engine and supplies the engine's
// collaborators (providers, tools, skills, references, environment).
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/openclaw/planweave/internal/config"
	"github.com/openclaw/planweave/internal/plan"
	"github.com/openclaw/planweave/internal/session"
	"github.com/openclaw/planweave/internal/skills"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/tools"
)

// maxPlanAttempts bounds how often a rejected planning response is
// retried with its issues fed back.
const maxPlanAttempts = 3

const planningSystemPrompt = `You are planning how to fulfil a user request. ` +
	`Respond in markdown with exactly these top-level sections, in order: ` +
	`"Original prompt" (the request restated), "Goals" (what success looks like), ` +
	`"General information" (relevant context), "Tasks" (a short overview). ` +
	`After them add one "Task section N" heading per execution step. Tasks in the ` +
	`same section run concurrently; sections run in order. Each section holds a ` +
	`list with one item per task, whose lines are "Key: value" pairs using only ` +
	`these keys: Name, What is needed, Skill, References, Expected output, ` +
	`Requires user approval (include the last key only when a human must approve ` +
	`the task). A later task may reference an earlier task's output as ` +
	`[title](#<task-name-slug>-results).`

// Runner owns one planning session's collaborators and drives the plan.
type Runner struct {
	cfg      *config.Config
	services *plan.Services
	resolver *resolver
	logger   *logging.Logger

	sess    *session.Session
	current *plan.Plan

	// Approve is consulted when execution halts at an approval gate.
	// Returning false stops the run without error. Nil means "never
	// approved".
	Approve func(step *plan.Step) (bool, error)
}

// New assembles a runner from loaded configuration and collaborators.
func New(cfg *config.Config, providers plan.ProviderSource, registry *tools.Registry, catalog *skills.Catalog) *Runner {
	r := &Runner{
		cfg:    cfg,
		logger: logging.New().WithComponent("runner"),
	}
	r.resolver = &resolver{runner: r, workspace: cfg.Agent.Workspace}
	r.services = &plan.Services{
		Providers: providers,
		Registry:  registry,
		Skills:    catalog,
		Resolver:  r.resolver,
		Env: plan.Env{
			Info:         environmentInfo(cfg, registry, catalog),
			DefaultModel: cfg.LLM.Model,
		},
		Logger: logging.New().WithComponent("plan"),
	}
	return r
}

// Services exposes the collaborator bundle, mainly for tests.
func (r *Runner) Services() *plan.Services { return r.services }

// Plan returns the most recently built plan, or nil.
func (r *Runner) Plan() *plan.Plan { return r.current }

// BuildPlan obtains a planning response for prompt and parses it into a
// Plan, retrying a rejected response with its issues fed back.
func (r *Runner) BuildPlan(ctx context.Context, prompt string) (*plan.Plan, error) {
	provider, err := r.services.Providers.GetProvider("")
	if err != nil {
		return nil, fmt.Errorf("no default provider: %w", err)
	}

	parser := plan.NewParser(r.services)
	userPrompt := prompt
	var lastIssues string

	for attempt := 1; attempt <= maxPlanAttempts; attempt++ {
		if lastIssues != "" {
			userPrompt = fmt.Sprintf("%s\n\n# Previous plan issues\n\n%s", prompt, lastIssues)
		}

		resp, err := r.send(ctx, provider, planningSystemPrompt, userPrompt)
		if err != nil {
			return nil, fmt.Errorf("planning request failed: %w", err)
		}

		pl, issues := parser.ParseTaskList(resp.Content)
		if pl != nil && issues == "" {
			r.current = pl
			r.logger.Info("plan built", map[string]interface{}{
				"steps": len(pl.Steps()), "tasks": len(pl.Tasks()), "attempts": attempt,
			})
			return pl, nil
		}

		if issues == "" {
			issues = "planning response produced no executable steps"
		}
		lastIssues = issues
		r.logger.Debug("planning response rejected", map[string]interface{}{
			"attempt": attempt, "issues": issues,
		})
	}

	return nil, fmt.Errorf("planning failed after %d attempts: %s", maxPlanAttempts, lastIssues)
}

// send pushes one conversation through the transport with the engine's
// communication-retry policy.
func (r *Runner) send(ctx context.Context, provider llm.Provider, system, user string) (*llm.ChatResponse, error) {
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	var lastErr error
	for retry := 0; retry < 3; retry++ {
		resp, err := provider.Chat(ctx, llm.ChatRequest{Messages: messages})
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Run executes one full planning session: build the plan, refine every
// task eagerly, run to the first approval gate, consult the approval
// callback, and finish the remaining steps when approved.
func (r *Runner) Run(ctx context.Context, prompt string) (err error) {
	r.sess, err = session.New(r.cfg.SessionsDir(), prompt)
	if err != nil {
		return err
	}
	r.services.Events = r.sess
	defer func() { r.sess.Finish(err) }()

	pl, err := r.BuildPlan(ctx, prompt)
	if err != nil {
		return err
	}

	pl.Refine(ctx)

	for {
		halted, runErr := pl.RunUntilUserApproval(ctx)
		if runErr != nil {
			return runErr
		}
		if halted == nil {
			return nil
		}

		if r.Approve == nil {
			r.logger.Warn("approval required but no approver configured", nil)
			return nil
		}
		ok, approveErr := r.Approve(halted)
		if approveErr != nil {
			return approveErr
		}
		if !ok {
			r.logger.Info("execution stopped at approval gate", map[string]interface{}{
				"tasks": taskNames(halted),
			})
			return nil
		}

		// Approved: run the gated step, then resume gate-checking from
		// the next step.
		if err := halted.Run(ctx); err != nil {
			return err
		}
	}
}

func taskNames(step *plan.Step) string {
	var names []string
	for _, t := range step.Tasks() {
		names = append(names, t.Name())
	}
	return strings.Join(names, ", ")
}
