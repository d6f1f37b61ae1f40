package plan

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/openclaw/planweave/internal/document"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/policy"
	"github.com/vinayprograms/agentkit/tools"
)

// staticProviders is a ProviderSource with one default provider and a
// set of named profiles.
type staticProviders struct {
	p     llm.Provider
	known map[string]llm.Provider
}

func (s *staticProviders) GetProvider(profile string) (llm.Provider, error) {
	if profile == "" {
		return s.p, nil
	}
	if p, ok := s.known[profile]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown profile: %s", profile)
}

// recordingSink collects emitted events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Emit(event string, fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func testServices(p llm.Provider) *Services {
	return &Services{
		Providers: &staticProviders{p: p},
		Env:       Env{DefaultModel: "mock-model"},
	}
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	pol := policy.New()
	pol.Workspace = t.TempDir()
	pol.Tools["read"] = &policy.ToolPolicy{Enabled: true, Allow: []string{"**"}}
	return tools.NewRegistry(pol)
}

const validPlanResponse = `# Original prompt

Summarize recent repository changes.

# Goals

A short report covering commits and issues.

# General information

The repository lives in the workspace.

# Tasks

Gather material first, then write the report.

# Task section 1

- Name: Collect commits
  What is needed: List the recent commits
  Skill: research
  Expected output: A commit list
- Name: Collect issues
  What is needed: List the open issues
  Expected output: An issue list

# Task section 2

- Name: Write report
  What is needed: Combine the collected material into a report
  References: [commits](#collect-commits-results)
  Expected output: A markdown report
  Requires user approval: yes
`

func TestParseTaskList_BuildsStepsAndTasks(t *testing.T) {
	parser := NewParser(testServices(llm.NewMockProvider()))

	pl, issues := parser.ParseTaskList(validPlanResponse)
	if issues != "" {
		t.Fatalf("unexpected issues: %s", issues)
	}
	if pl == nil {
		t.Fatal("expected a plan")
	}
	if len(pl.Steps()) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(pl.Steps()))
	}
	if pl.Steps()[0].Size() != 2 || pl.Steps()[1].Size() != 1 {
		t.Errorf("unexpected step sizes: %d, %d", pl.Steps()[0].Size(), pl.Steps()[1].Size())
	}

	tasks := pl.Tasks()
	names := []string{"Collect commits", "Collect issues", "Write report"}
	for i, want := range names {
		if tasks[i].Name() != want {
			t.Errorf("task %d: expected name %q, got %q", i, want, tasks[i].Name())
		}
	}

	report := pl.TaskBySlug("write-report")
	if report == nil {
		t.Fatal("expected to find task by slug write-report")
	}
	if !report.RequiresUserApproval() {
		t.Error("expected Write report to require approval")
	}
	if !pl.Steps()[1].RequiresApproval() {
		t.Error("expected step 2 to require approval")
	}

	refs := report.ReferenceTargets()
	if len(refs) != 1 || refs[0].Href != "#collect-commits-results" {
		t.Errorf("unexpected reference targets: %+v", refs)
	}

	if got := report.Data().Skill; got != "" {
		t.Errorf("expected empty skill for report task, got %q", got)
	}
}

func TestParseTaskList_AcceptsSummaryForGoals(t *testing.T) {
	response := strings.Replace(validPlanResponse, "# Goals", "# Summary", 1)
	parser := NewParser(testServices(llm.NewMockProvider()))

	pl, issues := parser.ParseTaskList(response)
	if pl == nil || issues != "" {
		t.Fatalf("expected plan with no issues, got issues: %s", issues)
	}
}

func TestParseTaskList_MissingRequiredSection(t *testing.T) {
	response := strings.Replace(validPlanResponse,
		"# General information\n\nThe repository lives in the workspace.\n\n", "", 1)
	parser := NewParser(testServices(llm.NewMockProvider()))

	pl, issues := parser.ParseTaskList(response)
	if pl != nil {
		t.Fatal("expected no plan when a required section is missing")
	}
	if !strings.Contains(issues, `"General information"`) {
		t.Errorf("issue should name the missing section: %s", issues)
	}
}

func TestParseTaskList_SectionOrderEnforced(t *testing.T) {
	// Goals appearing after General information counts as missing.
	response := `# Original prompt

Do the thing.

# General information

Context.

# Goals

Done.

# Tasks

One task.

# Task section 1

- Name: Only task
  What is needed: Do it
`
	parser := NewParser(testServices(llm.NewMockProvider()))
	pl, issues := parser.ParseTaskList(response)
	if pl != nil {
		t.Fatal("expected no plan for out-of-order sections")
	}
	if !strings.Contains(issues, `"Goals"`) {
		t.Errorf("issue should name the out-of-place section: %s", issues)
	}
}

func TestParseTaskList_ProseBeforeFirstHeading(t *testing.T) {
	response := "Here is the plan you asked for.\n\n" + validPlanResponse
	parser := NewParser(testServices(llm.NewMockProvider()))

	pl, issues := parser.ParseTaskList(response)
	if pl == nil || issues != "" {
		t.Fatalf("expected plan despite leading prose, got issues: %s", issues)
	}
}

func TestParseTaskList_EmptyTaskSection(t *testing.T) {
	response := validPlanResponse + "\n# Task section 3\n\nNothing to do here.\n"
	parser := NewParser(testServices(llm.NewMockProvider()))

	pl, issues := parser.ParseTaskList(response)
	if pl == nil {
		t.Fatal("expected a plan")
	}
	if !strings.Contains(issues, `section "Task section 3" contains no task list`) {
		t.Errorf("expected empty-section issue, got: %s", issues)
	}
	// The empty section is dropped, not kept as an empty step.
	if len(pl.Steps()) != 2 {
		t.Errorf("expected 2 steps, got %d", len(pl.Steps()))
	}
}

func TestParseTaskList_UnknownPropertyReported(t *testing.T) {
	response := strings.Replace(validPlanResponse,
		"  Expected output: An issue list",
		"  Expected output: An issue list\n  Priority: high", 1)
	parser := NewParser(testServices(llm.NewMockProvider()))

	pl, issues := parser.ParseTaskList(response)
	if pl == nil {
		t.Fatal("expected a plan")
	}
	if !strings.Contains(issues, `unrecognized task property "Priority"`) {
		t.Errorf("expected unrecognized-property issue, got: %s", issues)
	}
	if !strings.Contains(issues, `in section "Task section 1"`) {
		t.Errorf("issue should carry section context, got: %s", issues)
	}
}

func TestParseTaskList_CodeBlockBetweenItemsAttachesToPrecedingTask(t *testing.T) {
	response := `# Original prompt

p

# Goals

g

# General information

i

# Tasks

t

# Task section 1

- Name: Collect commits
  What is needed: List the recent commits

` + "```bash\ngit log --oneline -20\n```" + `

- Name: Collect issues
  What is needed: List the open issues
`
	parser := NewParser(testServices(llm.NewMockProvider()))
	pl, issues := parser.ParseTaskList(response)
	if issues != "" {
		t.Fatalf("unexpected issues: %s", issues)
	}

	tasks := pl.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if len(tasks[0].codeBlocks) != 1 {
		t.Fatalf("expected the fenced block on the first task, got %d blocks", len(tasks[0].codeBlocks))
	}
	if got := strings.TrimSpace(tasks[0].codeBlocks[0].Literal); got != "git log --oneline -20" {
		t.Errorf("unexpected block content: %q", got)
	}
	if len(tasks[1].codeBlocks) != 0 {
		t.Errorf("expected no blocks on the second task, got %d", len(tasks[1].codeBlocks))
	}
}

func TestParseTaskList_DefaultNames(t *testing.T) {
	response := `# Original prompt

Do research.

# Goals

Findings.

# General information

None.

# Tasks

Two tasks.

# Task section 1

- Skill: research
  What is needed: Investigate the topic
- What is needed: Summarize the findings
`
	parser := NewParser(testServices(llm.NewMockProvider()))
	pl, issues := parser.ParseTaskList(response)
	if pl == nil || issues != "" {
		t.Fatalf("unexpected issues: %s", issues)
	}

	tasks := pl.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Name() != "research 1" {
		t.Errorf("expected skill-derived name %q, got %q", "research 1", tasks[0].Name())
	}
	if tasks[1].Name() != "Task 2" {
		t.Errorf("expected positional name %q, got %q", "Task 2", tasks[1].Name())
	}
}

const refinementResponse = `# Task

- Name: Collect commits
  What is needed: List the ten most recent commits
  Skill: research
  Expected output: A commit list

# Tool Calls

` + "```json\n" + `{"name": "read", "arguments": {"path": "notes.md"}}` + "\n```\n"

func TestExtractRefinement_ReplacesFieldsAndParsesToolCalls(t *testing.T) {
	svc := testServices(llm.NewMockProvider())
	svc.Registry = testRegistry(t)
	task := newTask(svc, 1)
	parser := NewParser(svc)

	parser.ExtractRefinement(task, refinementResponse)

	if issues := task.Issues(); issues != "" {
		t.Fatalf("unexpected issues: %s", issues)
	}
	if got := task.Data().WhatIsNeeded; got != "List the ten most recent commits" {
		t.Errorf("unexpected What is needed: %q", got)
	}
	calls := task.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}
	if calls[0].ID != "read_1" {
		t.Errorf("expected call id read_1, got %s", calls[0].ID)
	}
	if calls[0].Args["path"] != "notes.md" {
		t.Errorf("unexpected args: %v", calls[0].Args)
	}
}

func TestExtractRefinement_MissingTaskSection(t *testing.T) {
	svc := testServices(llm.NewMockProvider())
	task := newTask(svc, 1)
	parser := NewParser(svc)

	parser.ExtractRefinement(task, "# Notes\n\nNo task here.\n")

	if !strings.Contains(task.Issues(), `missing required section "Task"`) {
		t.Errorf("expected missing-section issue, got: %s", task.Issues())
	}
}

func TestExtractRefinement_RequiresSingleItem(t *testing.T) {
	svc := testServices(llm.NewMockProvider())
	task := newTask(svc, 1)
	parser := NewParser(svc)

	parser.ExtractRefinement(task, `# Task

- Name: One
- Name: Two
`)

	if !strings.Contains(task.Issues(), "exactly one list item") {
		t.Errorf("expected single-item issue, got: %s", task.Issues())
	}
}

func TestExtractRefinement_InvalidToolCallJSON(t *testing.T) {
	svc := testServices(llm.NewMockProvider())
	svc.Registry = testRegistry(t)
	task := newTask(svc, 1)
	parser := NewParser(svc)

	response := `# Task

- Name: Collect commits
  What is needed: List commits

# Tool Calls

` + "```json\nnot json at all\n```\n\n```json\n" +
		`{"name": "read", "arguments": {"path": "notes.md"}}` + "\n```\n"

	parser.ExtractRefinement(task, response)

	if !strings.Contains(task.Issues(), "invalid JSON") {
		t.Errorf("expected invalid-JSON issue, got: %s", task.Issues())
	}
	// The valid call is still parsed, and its index counts only
	// successfully parsed calls.
	calls := task.ToolCalls()
	if len(calls) != 1 || calls[0].ID != "read_1" {
		t.Errorf("expected surviving call read_1, got %+v", calls)
	}
}

func TestExtractRefinement_UnregisteredTool(t *testing.T) {
	svc := testServices(llm.NewMockProvider())
	svc.Registry = testRegistry(t)
	task := newTask(svc, 1)
	parser := NewParser(svc)

	response := `# Task

- Name: Collect commits
  What is needed: List commits

# Tool Calls

` + "```json\n" + `{"name": "teleport", "arguments": {}}` + "\n```\n"

	parser.ExtractRefinement(task, response)

	if !strings.Contains(task.Issues(), "not registered") {
		t.Errorf("expected unregistered-tool issue, got: %s", task.Issues())
	}
	if len(task.ToolCalls()) != 0 {
		t.Errorf("invalid call must not be kept, got %+v", task.ToolCalls())
	}
}

func TestExtractRefinement_ApprovalFlagUnchanged(t *testing.T) {
	svc := testServices(llm.NewMockProvider())
	task := newTask(svc, 1)
	task.applyProps([]document.KV{
		{Key: KeyName, Value: "Deploy"},
		{Key: KeyRequiresApproval, Value: "yes"},
	}, true)
	if !task.RequiresUserApproval() {
		t.Fatal("expected approval flag after creation")
	}

	parser := NewParser(svc)
	parser.ExtractRefinement(task, `# Task

- Name: Deploy
  What is needed: Ship the build
`)

	if !task.RequiresUserApproval() {
		t.Error("refinement must not clear the approval flag")
	}
	if task.Data().RequiresUserApproval != "" {
		t.Error("raw approval value should be replaced wholesale")
	}
}

func TestExtractExec_SetsResult(t *testing.T) {
	svc := testServices(llm.NewMockProvider())
	task := newTask(svc, 1)
	parser := NewParser(svc)

	parser.ExtractExec(task, `# Result summary

Collected ten commits and wrote them to the report.
`)

	if issues := task.Issues(); issues != "" {
		t.Fatalf("unexpected issues: %s", issues)
	}
	if got := task.Result(); got != "Collected ten commits and wrote them to the report." {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestExtractExec_MissingSection(t *testing.T) {
	svc := testServices(llm.NewMockProvider())
	task := newTask(svc, 1)
	parser := NewParser(svc)

	parser.ExtractExec(task, "Everything went fine.\n")

	if !strings.Contains(task.Issues(), `"Result summary"`) {
		t.Errorf("expected missing-summary issue, got: %s", task.Issues())
	}
	if task.ExecDone() {
		t.Error("task must not be marked done")
	}
}

func TestSlug(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Research 1", "research-1"},
		{"  Multi  Word!!", "multi-word"},
		{"Write report", "write-report"},
		{"already-slugged", "already-slugged"},
		{"--Edge--Case--", "edge-case"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Slug(c.in); got != c.want {
			t.Errorf("Slug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
