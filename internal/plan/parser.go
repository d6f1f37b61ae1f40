package plan

import (
	"fmt"
	"strings"

	"github.com/openclaw/planweave/internal/document"
)

// Required top-level sections of a planning response, in order.
var requiredSections = []struct {
	title    string   // canonical title used in issue messages
	accepted []string // normalized keys accepted for the section
}{
	{"Original prompt", []string{"original prompt"}},
	{"Goals", []string{"goals", "summary"}},
	{"General information", []string{"general information"}},
	{"Tasks", []string{"tasks"}},
}

// taskSectionPrefix marks the step headings inside a planning response
// ("Task section 1", "Task section 2", ...).
const taskSectionPrefix = "task section"

// Parser turns raw LLM responses into validated plan structures. It
// never fails with an error on malformed input; problems accumulate as
// human-readable issues the caller inspects.
type Parser struct {
	svc *Services
}

// NewParser creates a parser bound to the engine's collaborators.
func NewParser(svc *Services) *Parser {
	return &Parser{svc: svc}
}

// ParseTaskList converts one planning response into a Plan. The
// returned issue string is empty on success. When a required top-level
// section is missing the plan stays unset (nil) and the single issue
// names that section; softer problems (an empty task section, invalid
// references) are folded into the issue string with section context
// while the rest of the plan is still built.
func (p *Parser) ParseTaskList(response string) (*Plan, string) {
	doc := document.Parse(response)
	secs := doc.Sections()

	// Tolerate prose before the first heading.
	if len(secs) > 0 && secs[0].Title == "" {
		secs = secs[1:]
	}

	for i, req := range requiredSections {
		if i >= len(secs) || !keyAccepted(secs[i].Key(), req.accepted) {
			return nil, fmt.Sprintf("planning response is missing required section %q", req.title)
		}
	}

	pl := &Plan{svc: p.svc}
	var issues []string
	taskIndex := 0

	for _, sec := range secs[len(requiredSections):] {
		if !strings.HasPrefix(sec.Key(), taskSectionPrefix) {
			continue
		}

		var tasks []*Task
		var last *Task
		for _, block := range sec.Blocks() {
			switch b := block.(type) {
			case *document.List:
				for _, item := range b.Items() {
					taskIndex++
					t := newTask(p.svc, taskIndex)
					t.applyProps(item.KeyValues(), true)
					t.validateReferences()
					if ti := t.Issues(); ti != "" {
						issues = append(issues, fmt.Sprintf("in section %q: %s", sec.Title, ti))
					}
					tasks = append(tasks, t)
					last = t
				}
			case *document.CodeBlock:
				// A fenced block between list items belongs to the most
				// recently created task, not to the step.
				if last != nil {
					last.codeBlocks = append(last.codeBlocks, b)
				}
			}
		}

		if len(tasks) == 0 {
			issues = append(issues, fmt.Sprintf("section %q contains no task list", sec.Title))
			continue
		}
		pl.steps = append(pl.steps, newStep(tasks))
	}

	pl.applyDefaultNames()
	p.svc.emit(EventPlanParsed, map[string]interface{}{
		"steps": len(pl.steps), "tasks": len(pl.Tasks()),
	})
	return pl, strings.Join(issues, "\n")
}

// ExtractRefinement applies one refinement response to a task: the
// single list item of the "Task" section replaces the task's fields
// wholesale, the section's fenced blocks become the task's code blocks,
// and the optional "Tool Calls" section yields the task's tool calls.
// Problems land in the task's issue log; a failing call does not abort
// the remaining calls.
func (p *Parser) ExtractRefinement(t *Task, response string) {
	doc := document.Parse(response)

	sec := doc.Section("task")
	if sec == nil {
		t.addIssue(`refinement response is missing required section "Task"`)
		return
	}

	var items []*document.ListItem
	for _, l := range sec.Lists() {
		items = append(items, l.Items()...)
	}
	if len(items) != 1 {
		t.addIssue(fmt.Sprintf(`section "Task" must contain exactly one list item, found %d`, len(items)))
		return
	}

	t.UpdateProps(items[0].KeyValues())

	t.mu.Lock()
	t.codeBlocks = sec.CodeBlocks()
	t.tools = nil
	t.mu.Unlock()

	// The Tool Calls section is optional; absent means no calls.
	var blocks []*document.CodeBlock
	if ts := doc.Section("tool calls"); ts != nil {
		blocks = ts.CodeBlocks()
	}

	parsed := 0
	for _, block := range blocks {
		call, err := parseToolCall(block)
		if err != nil {
			t.addIssue(fmt.Sprintf("tool call block: %v", err))
			continue
		}
		parsed++
		call.ID = callID(call.Name, parsed)
		call.validate(p.svc.Registry)
		if call.Issues != "" {
			t.addIssue(call.Issues)
			continue
		}
		t.mu.Lock()
		t.tools = append(t.tools, call)
		t.mu.Unlock()
	}
}

// ExtractExec applies one evaluation response to a task: the "Result
// summary" section's concatenated block text becomes the task's result.
// Missing section means one issue and an unchanged result.
func (p *Parser) ExtractExec(t *Task, response string) {
	doc := document.Parse(response)
	sec := doc.Section("result summary")
	if sec == nil {
		t.addIssue(`evaluation response is missing required section "Result summary"`)
		return
	}
	t.mu.Lock()
	t.result = strings.TrimSpace(sec.Text())
	t.mu.Unlock()
}

func keyAccepted(key string, accepted []string) bool {
	for _, a := range accepted {
		if key == a {
			return true
		}
	}
	return false
}
