package replay

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/openclaw/planweave/internal/session"
)

// Replayer reads and formats session events for after-the-fact review.
type Replayer struct {
	output    io.Writer
	verbosity int // 0=normal, 1=verbose (-v)
}

// New creates a Replayer writing to output.
func New(output io.Writer, verbosity int) *Replayer {
	return &Replayer{output: output, verbosity: verbosity}
}

// ReplayFile loads a session log and renders its timeline.
func (r *Replayer) ReplayFile(path string) error {
	events, err := session.Read(path)
	if err != nil {
		return err
	}
	return r.Replay(events)
}

// Replay renders the timeline for an already-loaded event stream.
func (r *Replayer) Replay(events []session.Event) error {
	if len(events) == 0 {
		return fmt.Errorf("session log is empty")
	}

	r.printHeader(events)

	fmt.Fprintln(r.output, titleStyle.Render("TIMELINE"))
	fmt.Fprintln(r.output, divider)
	for _, e := range events {
		r.printEvent(e)
	}
	fmt.Fprintln(r.output, divider)

	r.printSummary(events)
	return nil
}

func (r *Replayer) printHeader(events []session.Event) {
	fmt.Fprintln(r.output, titleStyle.Render("SESSION"))
	fmt.Fprintln(r.output, divider)
	if prompt := fieldString(events[0], "prompt"); prompt != "" {
		fmt.Fprintf(r.output, "%s %s\n",
			dimStyle.Render("Prompt: "), truncate(prompt, 120))
	}
	fmt.Fprintf(r.output, "%s %s\n",
		dimStyle.Render("Started:"), events[0].Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintln(r.output)
}

func (r *Replayer) printEvent(e session.Event) {
	label, detail := describe(e)
	if label == "" {
		// Unknown event type, shown dim so nothing is silently dropped.
		label = dimStyle.Render(e.Type)
	}

	seq := seqStyle.Render(fmt.Sprintf("%d", e.SeqID))
	ts := timeStyle.Render(e.Timestamp.Format("15:04:05"))
	line := label
	if detail != "" {
		line += " " + detail
	}
	fmt.Fprintf(r.output, "%s │ %s │ %s\n", seq, ts, line)

	if r.verbosity >= 1 {
		r.printFields(e)
	}
}

// printFields renders every event field on continuation lines, sorted
// for stable output.
func (r *Replayer) printFields(e session.Event) {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(r.output, "      │          │   %s\n",
			dimStyle.Render(fmt.Sprintf("%s: %v", k, e.Fields[k])))
	}
}

func (r *Replayer) printSummary(events []session.Event) {
	var toolCalls, toolErrors, refined, evaluated int
	for _, e := range events {
		switch e.Type {
		case "tool_call":
			toolCalls++
		case "tool_error":
			toolErrors++
		case "refine_done":
			refined++
		case "eval_done":
			evaluated++
		}
	}

	last := events[len(events)-1]
	status := flowStyle.Render("INCOMPLETE")
	if last.Type == "session_end" {
		switch fieldString(last, "status") {
		case session.StatusComplete:
			status = successStyle.Render("COMPLETED")
		case session.StatusFailed:
			status = errorStyle.Render("FAILED")
		}
	}

	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("Status:"), status)
	if errMsg := fieldString(last, "error"); errMsg != "" {
		fmt.Fprintf(r.output, "%s %s\n", dimStyle.Render("Error:  "), errorStyle.Render(errMsg))
	}
	fmt.Fprintf(r.output, "%s %s\n", dimStyle.Render("Elapsed:"),
		last.Timestamp.Sub(events[0].Timestamp).Round(10*time.Millisecond).String())
	fmt.Fprintf(r.output, "%s %d refined, %d evaluated, %d tool calls (%d failed)\n",
		dimStyle.Render("Work:   "), refined, evaluated, toolCalls, toolErrors)
}

// describe maps an event to its timeline label and one-line detail.
func describe(e session.Event) (label, detail string) {
	switch e.Type {
	case "session_start":
		return flowStyle.Render("SESSION START"), ""
	case "session_end":
		if fieldString(e, "status") == session.StatusFailed {
			return errorStyle.Render("SESSION END"), dimStyle.Render("failed")
		}
		return flowStyle.Render("SESSION END"), ""
	case "plan_parsed":
		return flowStyle.Render("PLAN PARSED"),
			dimStyle.Render(fmt.Sprintf("%v steps, %v tasks", e.Fields["steps"], e.Fields["tasks"]))
	case "step_start":
		return flowStyle.Render(fmt.Sprintf("STEP %v START", e.Fields["step"])),
			dimStyle.Render(fmt.Sprintf("%v tasks", e.Fields["tasks"]))
	case "step_end":
		if ok, _ := e.Fields["ok"].(bool); !ok {
			return errorStyle.Render(fmt.Sprintf("STEP %v FAILED", e.Fields["step"])), ""
		}
		return successStyle.Render(fmt.Sprintf("STEP %v DONE", e.Fields["step"])), ""
	case "refine_attempt":
		return flowStyle.Render("REFINE"),
			dimStyle.Render(fmt.Sprintf("%s (attempt %v)", fieldString(e, "task"), e.Fields["attempt"]))
	case "refine_done":
		return successStyle.Render("REFINED"), dimStyle.Render(fieldString(e, "task"))
	case "tool_call":
		return toolStyle.Render("TOOL CALL"),
			dimStyle.Render(fmt.Sprintf("%s → %s", fieldString(e, "call"), fieldString(e, "task")))
	case "tool_result":
		return toolStyle.Render("TOOL RESULT"),
			dimStyle.Render(fmt.Sprintf("%s (%v bytes)", fieldString(e, "call"), e.Fields["bytes"]))
	case "tool_error":
		return errorStyle.Render("TOOL ERROR"),
			dimStyle.Render(fmt.Sprintf("%s: %s", fieldString(e, "call"), fieldString(e, "error")))
	case "eval_attempt":
		return flowStyle.Render("EVALUATE"),
			dimStyle.Render(fmt.Sprintf("%s (attempt %v)", fieldString(e, "task"), e.Fields["attempt"]))
	case "eval_done":
		return successStyle.Render("EVALUATED"), dimStyle.Render(fieldString(e, "task"))
	case "approval_halt":
		return warnStyle.Render("APPROVAL REQUIRED"),
			dimStyle.Render(fmt.Sprintf("before step %v", e.Fields["step"]))
	}
	return "", ""
}

func fieldString(e session.Event, key string) string {
	if s, ok := e.Fields[key].(string); ok {
		return s
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
