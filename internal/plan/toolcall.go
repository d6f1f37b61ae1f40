package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openclaw/planweave/internal/document"
	"github.com/vinayprograms/agentkit/tools"
)

// ToolCall is one LLM-requested invocation of a registered tool, parsed
// from a fenced JSON block of a refinement response.
type ToolCall struct {
	// ID is stable across the owning task's lifetime:
	// "<name>_<1-based index among the task's successfully parsed calls>".
	ID   string
	Name string
	Args map[string]interface{}

	// Issues holds validation problems; empty means the call is valid.
	Issues string
}

// toolCallEnvelope is the wire shape of a fenced tool-call block.
type toolCallEnvelope struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// parseToolCall decodes one fenced JSON block into a ToolCall.
func parseToolCall(block *document.CodeBlock) (*ToolCall, error) {
	var env toolCallEnvelope
	if err := json.Unmarshal([]byte(block.Literal), &env); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if env.Name == "" {
		return nil, fmt.Errorf(`missing "name" field`)
	}
	args := env.Arguments
	if args == nil {
		args = make(map[string]interface{})
	}
	return &ToolCall{Name: env.Name, Args: args}, nil
}

// validate checks the call against the registry: the tool must exist and
// every required schema argument must be present. Problems land in
// Issues rather than an error so the caller can keep processing calls.
func (c *ToolCall) validate(registry *tools.Registry) {
	c.Issues = ""
	if registry == nil {
		c.addIssue(fmt.Sprintf("tool %q: no tool registry available", c.Name))
		return
	}
	tool := registry.Get(c.Name)
	if tool == nil {
		c.addIssue(fmt.Sprintf("tool %q is not registered", c.Name))
		return
	}
	for _, field := range requiredFields(tool.Parameters()) {
		if _, ok := c.Args[field]; !ok {
			c.addIssue(fmt.Sprintf("tool %q: missing required argument %q", c.Name, field))
		}
	}
}

func (c *ToolCall) addIssue(msg string) {
	if c.Issues != "" {
		c.Issues += "; "
	}
	c.Issues += msg
}

// execute runs the call and renders its result as text.
func (c *ToolCall) execute(ctx context.Context, registry *tools.Registry) (string, error) {
	tool := registry.Get(c.Name)
	if tool == nil {
		return "", fmt.Errorf("tool not found: %s", c.Name)
	}
	result, err := tool.Execute(ctx, c.Args)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", c.Name, err)
	}
	return renderResult(result), nil
}

// renderResult converts a tool result into text for the evaluation
// prompt and the task's output map.
func renderResult(result interface{}) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// requiredFields extracts the required property names from a JSON-schema
// style parameter map.
func requiredFields(schema map[string]interface{}) []string {
	if schema == nil {
		return nil
	}
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []interface{}:
		var fields []string
		for _, f := range req {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	default:
		return nil
	}
}

// marshalCall renders the call back to JSON for evaluation prompts.
func (c *ToolCall) marshalCall() string {
	data, err := json.MarshalIndent(toolCallEnvelope{Name: c.Name, Arguments: c.Args}, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"name": %q}`, c.Name)
	}
	return string(data)
}

// callID builds the deterministic call identifier.
func callID(name string, index int) string {
	return fmt.Sprintf("%s_%d", strings.TrimSpace(name), index)
}
