package plan

import (
	"context"
	"errors"
	"sync"
)

// Step is a fixed, non-empty group of tasks. A single-task step runs
// sequentially; a larger step fans its tasks out concurrently and waits
// for all of them.
type Step struct {
	children []*Task
}

func newStep(tasks []*Task) *Step {
	return &Step{children: tasks}
}

// Tasks returns the step's tasks in plan order.
func (s *Step) Tasks() []*Task { return s.children }

// Size returns the number of tasks in the step.
func (s *Step) Size() int { return len(s.children) }

// RequiresApproval reports whether any task in the step requires human
// approval before execution.
func (s *Step) RequiresApproval() bool {
	for _, t := range s.children {
		if t.RequiresUserApproval() {
			return true
		}
	}
	return false
}

// Done reports whether every task in the step already executed.
func (s *Step) Done() bool {
	for _, t := range s.children {
		if !t.ExecDone() {
			return false
		}
	}
	return true
}

// Run executes the step outside plan order, typically after its
// approval gate was granted.
func (s *Step) Run(ctx context.Context) error {
	return s.run(ctx)
}

// run executes the step. Tasks that already reached ExecDone are
// skipped. In the concurrent case every pending task is started
// together and the step completes only when all of them have finished;
// a failing sibling is awaited alongside the others, never cancelled
// early. Failures stay attributable per task through each task's own
// issue log; the returned error joins them for the caller.
func (s *Step) run(ctx context.Context) error {
	var pending []*Task
	for _, t := range s.children {
		if !t.ExecDone() {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	if len(s.children) == 1 {
		return pending[0].Run(ctx)
	}

	// Counting barrier owned by this run, so concurrent plans stay
	// independent.
	var wg sync.WaitGroup
	errs := make([]error, len(pending))
	for i, t := range pending {
		wg.Add(1)
		go func(i int, t *Task) {
			defer wg.Done()
			errs[i] = t.Run(ctx)
		}(i, t)
	}
	wg.Wait()

	return errors.Join(errs...)
}
