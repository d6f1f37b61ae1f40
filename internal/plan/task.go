package plan

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/openclaw/planweave/internal/document"
	"github.com/vinayprograms/agentkit/llm"
)

// Recognized task property keys. The parser is strict about spelling:
// anything else in a task's key/value map is reported as an issue.
const (
	KeyName             = "Name"
	KeyWhatIsNeeded     = "What is needed"
	KeySkill            = "Skill"
	KeyReferences       = "References"
	KeyExpectedOutput   = "Expected output"
	KeyRequiresApproval = "Requires user approval"
)

// TaskData holds a task's declarative fields. All fields are optional at
// parse time; refinement is expected to fill them in.
type TaskData struct {
	Name           string
	WhatIsNeeded   string
	Skill          string
	References     string
	ExpectedOutput string
	// RequiresUserApproval keeps the raw value; the presence of the key
	// at creation is what sets the task's approval flag.
	RequiresUserApproval string
}

// Task is one unit of work: declarative fields, a refinement state
// machine, sequential tool execution and a post-evaluation phase.
type Task struct {
	mu sync.Mutex

	data                 TaskData
	requiresUserApproval bool
	referenceTargets     []document.Link

	// codeBlocks collects fenced blocks attached to this task by the
	// parser; tool calls are extracted from the refinement response's
	// dedicated section.
	codeBlocks []*document.CodeBlock

	tools       []*ToolCall
	toolCalls   map[string]*ToolCall
	toolOutputs map[string]string

	issues string

	refinedDone bool
	execDone    bool
	result      string

	// lastResponse is the previous attempt's raw output, fed back into
	// retry prompts.
	lastResponse string

	refineErr  error
	refined    chan struct{}
	refineOnce sync.Once

	index int
	svc   *Services
}

// newTask creates an unrefined task owned by svc. index is the task's
// 1-based position across the whole plan.
func newTask(svc *Services, index int) *Task {
	return &Task{
		svc:         svc,
		index:       index,
		toolCalls:   make(map[string]*ToolCall),
		toolOutputs: make(map[string]string),
		refined:     make(chan struct{}),
	}
}

// Data returns a copy of the task's declarative fields.
func (t *Task) Data() TaskData {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

// Name returns the task's display name.
func (t *Task) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data.Name
}

// Slug derives the task's normalized identifier from its name. Later
// tasks reference this task's output as "#<slug>-results".
func (t *Task) Slug() string {
	return Slug(t.Name())
}

// RequiresUserApproval reports whether the planning response flagged
// this task for human approval. Set once at creation, never revisited.
func (t *Task) RequiresUserApproval() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requiresUserApproval
}

// ReferenceTargets returns the links extracted from the References field.
func (t *Task) ReferenceTargets() []document.Link {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]document.Link(nil), t.referenceTargets...)
}

// Issues returns the task's accumulated validation issues. Empty means
// no problems currently known.
func (t *Task) Issues() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.issues
}

// RefinedDone reports whether refinement completed successfully.
func (t *Task) RefinedDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refinedDone
}

// ExecDone reports whether the task ran its tools and passed evaluation.
func (t *Task) ExecDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.execDone
}

// Result returns the evaluation phase's summary. Only meaningful once
// ExecDone reports true.
func (t *Task) Result() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// ToolCalls returns the task's validated tool calls in request order.
func (t *Task) ToolCalls() []*ToolCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*ToolCall(nil), t.tools...)
}

// ToolOutputs returns the executed calls' text results keyed by call id.
func (t *Task) ToolOutputs() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.toolOutputs))
	for k, v := range t.toolOutputs {
		out[k] = v
	}
	return out
}

// addIssue appends one issue to the task's log.
func (t *Task) addIssue(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.appendIssueLocked(msg)
}

func (t *Task) appendIssueLocked(msg string) {
	if t.issues != "" {
		t.issues += "\n"
	}
	t.issues += msg
}

// clearIssues resets the issue log. Every retry and every re-validation
// starts from a clean slate so no stale issue survives a success.
func (t *Task) clearIssues() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issues = ""
}

// applyProps replaces the task's declarative fields wholesale from a
// key/value map. Unknown keys are not stored and are reported as
// issues. When creation is true, the approval flag is derived from the
// presence of the approval key; later updates never touch it.
func (t *Task) applyProps(pairs []document.KV, creation bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data := TaskData{}
	approvalPresent := false
	for _, kv := range pairs {
		switch kv.Key {
		case KeyName:
			data.Name = kv.Value
		case KeyWhatIsNeeded:
			data.WhatIsNeeded = kv.Value
		case KeySkill:
			data.Skill = kv.Value
		case KeyReferences:
			data.References = kv.Value
		case KeyExpectedOutput:
			data.ExpectedOutput = kv.Value
		case KeyRequiresApproval:
			data.RequiresUserApproval = kv.Value
			approvalPresent = true
		default:
			t.appendIssueLocked(fmt.Sprintf("unrecognized task property %q", kv.Key))
		}
	}
	t.data = data
	if creation {
		t.requiresUserApproval = approvalPresent
	}
	t.referenceTargets = document.LinksIn(data.References)
}

// UpdateProps replaces the task's fields from a refinement response's
// key/value map. Idempotent for a fixed input map.
func (t *Task) UpdateProps(pairs []document.KV) {
	t.applyProps(pairs, false)
}

// validateReferences checks the References field's links. Problems land
// in the issue log; the parser folds them into its own context.
func (t *Task) validateReferences() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if strings.TrimSpace(t.data.References) == "" {
		return
	}
	if len(t.referenceTargets) == 0 {
		t.appendIssueLocked(fmt.Sprintf("References %q contains no valid links", t.data.References))
		return
	}
	for _, link := range t.referenceTargets {
		if strings.TrimSpace(link.Href) == "" {
			t.appendIssueLocked(fmt.Sprintf("reference %q has an empty target", link.Title))
		}
	}
}

// defaultName fills in a missing Name from the skill and plan position.
func (t *Task) defaultName() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.data.Name != "" {
		return
	}
	if t.data.Skill != "" {
		t.data.Name = fmt.Sprintf("%s %d", t.data.Skill, t.index)
	} else {
		t.data.Name = fmt.Sprintf("Task %d", t.index)
	}
}

// Refine runs the refinement state machine: up to maxAttempts prompts,
// each validated through the structured response parser, with the
// previous attempt's issues fed back. Safe to call exactly once;
// WaitRefined is the rendezvous for everyone else.
func (t *Task) Refine(ctx context.Context) error {
	err := t.refineLoop(ctx)
	t.finishRefinement(err)
	return err
}

func (t *Task) refineLoop(ctx context.Context) error {
	log := t.svc.logger()
	name := t.Name()

	provider, model := t.resolveChatProvider()
	ctx, span := startPhaseSpan(ctx, "refine", name)
	defer span.End()

	parser := NewParser(t.svc)
	var lastIssues string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		t.svc.emit(EventRefineAttempt, map[string]interface{}{
			"task": name, "attempt": attempt, "model": model,
		})

		prompt := buildRefinementPrompt(ctx, t, lastIssues, attempt > 1)
		resp, err := sendWithRetry(ctx, provider, refinementSystemPrompt, prompt)
		if err != nil {
			return &CommunicationError{Phase: "refine", TaskName: name, Retries: maxCommRetries, Err: err}
		}

		t.mu.Lock()
		t.lastResponse = resp.Content
		t.mu.Unlock()

		t.clearIssues()
		parser.ExtractRefinement(t, resp.Content)

		if t.Issues() == "" {
			t.mu.Lock()
			t.refinedDone = true
			t.mu.Unlock()
			log.Info("task refined", map[string]interface{}{
				"task": name, "attempts": attempt, "tool_calls": len(t.ToolCalls()),
			})
			t.svc.emit(EventRefineDone, map[string]interface{}{"task": name, "attempts": attempt})
			return nil
		}

		lastIssues = t.Issues()
		log.Debug("refinement attempt rejected", map[string]interface{}{
			"task": name, "attempt": attempt, "issues": lastIssues,
		})
	}

	return &RetryExhaustedError{Phase: "refine", TaskName: name, Attempts: maxAttempts, LastIssues: lastIssues}
}

// finishRefinement publishes the refinement outcome and wakes every
// waiter exactly once. Late waiters return immediately.
func (t *Task) finishRefinement(err error) {
	t.refineOnce.Do(func() {
		t.mu.Lock()
		t.refineErr = err
		t.mu.Unlock()
		close(t.refined)
	})
}

// WaitRefined suspends until refinement finishes, returning the stored
// error if it failed. Returns immediately when refinement is already
// done.
func (t *Task) WaitRefined(ctx context.Context) error {
	select {
	case <-t.refined:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.refineErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveChatProvider honors a skill-declared model override when the
// profile is known to the connection, falling back to the default model
// with a user-visible warning otherwise.
func (t *Task) resolveChatProvider() (llm.Provider, string) {
	override := ""
	if skillName := t.Data().Skill; skillName != "" && t.svc.Skills != nil {
		if sk, err := t.svc.Skills.Fetch(skillName); err == nil && sk != nil {
			override = sk.Model()
		}
	}
	if override != "" {
		if p, honored := t.svc.provider(override); honored {
			return p, override
		}
		t.svc.logger().Warn("requested model unavailable, using default", map[string]interface{}{
			"task": t.Name(), "model": override, "default": t.svc.Env.DefaultModel,
		})
	}
	p, _ := t.svc.provider("")
	return p, t.svc.Env.DefaultModel
}

// RunTools executes every validated tool call in sequence against the
// registry, recording each call and its text output keyed by call id. A
// single failure aborts the remaining calls.
func (t *Task) RunTools(ctx context.Context) error {
	ctx, span := startPhaseSpan(ctx, "tools", t.Name())
	defer span.End()

	for _, call := range t.ToolCalls() {
		t.svc.emit(EventToolCall, map[string]interface{}{
			"task": t.Name(), "call": call.ID, "tool": call.Name,
		})
		output, err := call.execute(ctx, t.svc.Registry)
		if err != nil {
			t.addIssue(fmt.Sprintf("tool call %s failed: %v", call.ID, err))
			t.svc.emit(EventToolError, map[string]interface{}{
				"task": t.Name(), "call": call.ID, "error": err.Error(),
			})
			return fmt.Errorf("task %q: %w", t.Name(), err)
		}
		t.mu.Lock()
		t.toolCalls[call.ID] = call
		t.toolOutputs[call.ID] = output
		t.mu.Unlock()
		t.svc.emit(EventToolResult, map[string]interface{}{
			"task": t.Name(), "call": call.ID, "bytes": len(output),
		})
	}
	return nil
}

// PostEvaluate asks the model to summarize the executed tool calls'
// results. Same bounded-retry shape as refinement; success requires a
// "Result summary" section and sets ExecDone.
func (t *Task) PostEvaluate(ctx context.Context) error {
	name := t.Name()
	ctx, span := startPhaseSpan(ctx, "evaluate", name)
	defer span.End()

	provider, model := t.resolveChatProvider()
	parser := NewParser(t.svc)
	var lastIssues string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		t.svc.emit(EventEvalAttempt, map[string]interface{}{
			"task": name, "attempt": attempt, "model": model,
		})

		prompt := buildEvaluationPrompt(ctx, t, lastIssues, attempt > 1)
		resp, err := sendWithRetry(ctx, provider, evaluationSystemPrompt, prompt)
		if err != nil {
			return &CommunicationError{Phase: "evaluate", TaskName: name, Retries: maxCommRetries, Err: err}
		}

		t.mu.Lock()
		t.lastResponse = resp.Content
		t.mu.Unlock()

		t.clearIssues()
		parser.ExtractExec(t, resp.Content)

		if t.Issues() == "" {
			t.mu.Lock()
			t.execDone = true
			t.mu.Unlock()
			t.svc.emit(EventEvalDone, map[string]interface{}{"task": name, "attempts": attempt})
			return nil
		}
		lastIssues = t.Issues()
	}

	return &RetryExhaustedError{Phase: "evaluate", TaskName: name, Attempts: maxAttempts, LastIssues: lastIssues}
}

// Run drives one task end to end: rendezvous with refinement, execute
// tools, evaluate. A task that already reached ExecDone is skipped.
func (t *Task) Run(ctx context.Context) error {
	if t.ExecDone() {
		return nil
	}
	if err := t.WaitRefined(ctx); err != nil {
		return err
	}
	if err := t.RunTools(ctx); err != nil {
		return err
	}
	return t.PostEvaluate(ctx)
}

// Slug converts a name to a lowercase hyphen-separated identifier:
// non-alphanumeric runs collapse to single hyphens, leading and
// trailing hyphens are trimmed.
func Slug(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
