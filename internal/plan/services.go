// Package plan implements the planning and execution pipeline: parsing
// LLM planning responses into a task graph and driving each task through
// refinement, tool execution and post-evaluation.
package plan

import (
	"context"

	"github.com/openclaw/planweave/internal/skills"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/tools"
)

// Retry budgets for LLM-facing phases.
const (
	// maxAttempts bounds refinement and post-evaluation attempts. Each
	// attempt feeds the previous attempt's issues back into the prompt.
	maxAttempts = 5
	// maxCommRetries bounds transport retries within a single attempt.
	maxCommRetries = 3
)

// ProviderSource hands out chat providers by profile name. The empty
// profile is the default. agentkit's llm.ProviderFactory satisfies it.
type ProviderSource interface {
	GetProvider(profile string) (llm.Provider, error)
}

// Resolver resolves a reference href to its content.
type Resolver interface {
	ReferenceContent(ctx context.Context, href string) (string, error)
}

// EventSink receives forensic events from the engine. Implementations
// must be safe for concurrent use; tasks in a concurrent step emit
// events in parallel.
type EventSink interface {
	Emit(event string, fields map[string]interface{})
}

// Env is the runner-supplied environment context injected into prompts.
type Env struct {
	// Info is a preformatted environment block (OS, workspace, date,
	// available tools and skills).
	Info string
	// DefaultModel names the profile used when a skill declares no
	// override, or when its override is unavailable.
	DefaultModel string
}

// Services bundles the external collaborators the engine talks to. The
// engine treats the provider and registry as stateless per-call
// services; it holds no locks around them.
type Services struct {
	Providers ProviderSource
	Registry  *tools.Registry
	Skills    *skills.Catalog
	Resolver  Resolver
	Env       Env
	Logger    *logging.Logger
	Events    EventSink
}

// provider returns the provider for the named profile, falling back to
// the default profile. The second return reports whether the named
// profile was honored.
func (s *Services) provider(name string) (llm.Provider, bool) {
	if name != "" {
		if p, err := s.Providers.GetProvider(name); err == nil && p != nil {
			return p, true
		}
	}
	p, _ := s.Providers.GetProvider("")
	return p, name == ""
}

// emit sends an event to the sink when one is attached.
func (s *Services) emit(event string, fields map[string]interface{}) {
	if s.Events != nil {
		s.Events.Emit(event, fields)
	}
}

// logger returns the configured logger or a component-scoped default.
func (s *Services) logger() *logging.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logging.New().WithComponent("plan")
}
