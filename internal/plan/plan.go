package plan

import (
	"context"
	"sync"
)

// Plan is an ordered sequence of steps produced from one planning
// response. Steps execute strictly in sequence; within a step, tasks
// execute either strictly alone or all concurrently.
type Plan struct {
	svc   *Services
	steps []*Step

	refineOnce sync.Once
}

// Steps returns the plan's steps in execution order.
func (p *Plan) Steps() []*Step { return p.steps }

// Tasks returns every task of the plan in step order.
func (p *Plan) Tasks() []*Task {
	var tasks []*Task
	for _, s := range p.steps {
		tasks = append(tasks, s.children...)
	}
	return tasks
}

// TaskBySlug returns the task whose slug matches, or nil.
func (p *Plan) TaskBySlug(slug string) *Task {
	for _, t := range p.Tasks() {
		if t.Slug() == slug {
			return t
		}
	}
	return nil
}

// Refine starts refinement for every task in every step without
// waiting: an eager, best-effort parallel kickoff. Execution later
// rendezvouses with each task through WaitRefined. Idempotent.
func (p *Plan) Refine(ctx context.Context) {
	p.refineOnce.Do(func() {
		for _, t := range p.Tasks() {
			go func(t *Task) {
				if err := t.Refine(ctx); err != nil {
					p.svc.logger().Warn("refinement failed", map[string]interface{}{
						"task": t.Name(), "error": err.Error(),
					})
				}
			}(t)
		}
	})
}

// RunUntilUserApproval executes steps in order, halting *before* the
// first step containing a task that requires human approval. The halted
// step is returned un-executed so the caller can surface an approval
// prompt; nil means the plan ran to completion.
func (p *Plan) RunUntilUserApproval(ctx context.Context) (*Step, error) {
	return p.run(ctx, true)
}

// RunAllTasks executes every remaining step in order with no approval
// gate. Tasks that already executed are skipped.
func (p *Plan) RunAllTasks(ctx context.Context) error {
	_, err := p.run(ctx, false)
	return err
}

func (p *Plan) run(ctx context.Context, gateOnApproval bool) (*Step, error) {
	ctx, span := startPlanSpan(ctx, len(p.steps), len(p.Tasks()))
	var runErr error
	defer func() { endSpan(span, runErr) }()

	for i, step := range p.steps {
		if gateOnApproval && !step.Done() && step.RequiresApproval() {
			p.svc.emit(EventApprovalHalt, map[string]interface{}{"step": i + 1})
			return step, nil
		}

		p.svc.emit(EventStepStart, map[string]interface{}{"step": i + 1, "tasks": step.Size()})
		stepCtx, stepSpan := startStepSpan(ctx, i+1, step.Size())
		err := step.run(stepCtx)
		endSpan(stepSpan, err)
		p.svc.emit(EventStepEnd, map[string]interface{}{"step": i + 1, "ok": err == nil})

		if err != nil {
			runErr = err
			return nil, err
		}
	}
	return nil, nil
}

// applyDefaultNames fills in missing task names from each task's skill
// and 1-based plan position.
func (p *Plan) applyDefaultNames() {
	for _, t := range p.Tasks() {
		t.defaultName()
	}
}
