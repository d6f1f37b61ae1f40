package plan

// Event names emitted through the EventSink.
const (
	EventPlanParsed    = "plan_parsed"
	EventStepStart     = "step_start"
	EventStepEnd       = "step_end"
	EventRefineAttempt = "refine_attempt"
	EventRefineDone    = "refine_done"
	EventToolCall      = "tool_call"
	EventToolResult    = "tool_result"
	EventToolError     = "tool_error"
	EventEvalAttempt   = "eval_attempt"
	EventEvalDone      = "eval_done"
	EventApprovalHalt  = "approval_halt"
)
