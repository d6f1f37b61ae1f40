package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/llm"
)

const refinementSystemPrompt = `You are refining one task of an execution plan. ` +
	`Respond in markdown with a "Task" section containing exactly one list item ` +
	`whose lines are "Key: value" pairs using only these keys: ` +
	`Name, What is needed, Skill, References, Expected output, Requires user approval. ` +
	`If tools must run, add a "Tool Calls" section with one fenced json block per call, ` +
	"each of the form {\"name\": \"<tool>\", \"arguments\": {...}}."

const evaluationSystemPrompt = `You are evaluating the results of a task's tool calls. ` +
	`Respond in markdown with a "Result summary" section that concisely states what ` +
	`was done and what was produced.`

// sendWithRetry sends one conversation through the chat transport,
// retrying communication failures up to maxCommRetries. Validation of
// the response content is the caller's problem, never retried here.
func sendWithRetry(ctx context.Context, provider llm.Provider, system, user string) (*llm.ChatResponse, error) {
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	var lastErr error
	for retry := 0; retry < maxCommRetries; retry++ {
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

// buildRefinementPrompt assembles the refinement request from the
// task's current fields, the previous attempt's issues and raw output
// (retries only), the skill definition, environment info and resolved
// reference contents.
func buildRefinementPrompt(ctx context.Context, t *Task, lastIssues string, retry bool) string {
	var b strings.Builder
	data := t.Data()

	b.WriteString("# Task\n\n")
	writeTaskData(&b, data)

	if retry {
		if lastIssues != "" {
			b.WriteString("\n# Previous output issues\n\n")
			b.WriteString(lastIssues)
			b.WriteString("\n")
		}
		t.mu.Lock()
		prev := t.lastResponse
		t.mu.Unlock()
		if prev != "" {
			b.WriteString("\n# Previous output\n\n")
			b.WriteString(prev)
			b.WriteString("\n")
		}
	}

	writeSkillSection(&b, t)
	writeEnvironmentSection(&b, t)
	writeReferenceSection(ctx, &b, t)

	b.WriteString("\nRefine the task above. Fill in every field, then list the tool calls needed to produce the expected output.\n")
	return b.String()
}

// buildEvaluationPrompt assembles the post-evaluation request: resolved
// reference contents plus, for every executed tool call, a JSON block of
// the call and a text block of its output.
func buildEvaluationPrompt(ctx context.Context, t *Task, lastIssues string, retry bool) string {
	var b strings.Builder
	data := t.Data()

	b.WriteString("# Task\n\n")
	writeTaskData(&b, data)

	if retry && lastIssues != "" {
		b.WriteString("\n# Previous output issues\n\n")
		b.WriteString(lastIssues)
		b.WriteString("\n")
	}

	writeReferenceSection(ctx, &b, t)

	b.WriteString("\n# Tool results\n")
	outputs := t.ToolOutputs()
	for _, call := range t.ToolCalls() {
		output, ok := outputs[call.ID]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("\n## %s\n\n", call.ID))
		b.WriteString("```json\n")
		b.WriteString(call.marshalCall())
		b.WriteString("\n```\n\n")
		b.WriteString(output)
		b.WriteString("\n")
	}

	b.WriteString("\nSummarize what these results achieve for the task.\n")
	return b.String()
}

func writeTaskData(b *strings.Builder, data TaskData) {
	write := func(key, value string) {
		if value != "" {
			fmt.Fprintf(b, "- %s: %s\n", key, value)
		}
	}
	write(KeyName, data.Name)
	write(KeyWhatIsNeeded, data.WhatIsNeeded)
	write(KeySkill, data.Skill)
	write(KeyReferences, data.References)
	write(KeyExpectedOutput, data.ExpectedOutput)
	write(KeyRequiresApproval, data.RequiresUserApproval)
}

func writeSkillSection(b *strings.Builder, t *Task) {
	skillName := t.Data().Skill
	if skillName == "" || t.svc.Skills == nil {
		return
	}
	sk, err := t.svc.Skills.Fetch(skillName)
	if err != nil {
		t.svc.logger().Warn("skill unavailable for prompt", map[string]interface{}{
			"task": t.Name(), "skill": skillName, "error": err.Error(),
		})
		return
	}
	b.WriteString("\n# Skill\n\n")
	b.WriteString(sk.Definition())
	b.WriteString("\n")
}

func writeEnvironmentSection(b *strings.Builder, t *Task) {
	if t.svc.Env.Info == "" {
		return
	}
	b.WriteString("\n# Environment\n\n")
	b.WriteString(t.svc.Env.Info)
	b.WriteString("\n")
}

// writeReferenceSection resolves each reference target and inlines its
// content. Unresolvable references are surfaced inline so the model
// knows the material is missing rather than empty.
func writeReferenceSection(ctx context.Context, b *strings.Builder, t *Task) {
	targets := t.ReferenceTargets()
	if len(targets) == 0 || t.svc.Resolver == nil {
		return
	}
	b.WriteString("\n# References\n")
	for _, link := range targets {
		title := link.Title
		if title == "" {
			title = link.Href
		}
		fmt.Fprintf(b, "\n## %s\n\n", title)
		content, err := t.svc.Resolver.ReferenceContent(ctx, link.Href)
		if err != nil {
			fmt.Fprintf(b, "(unavailable: %v)\n", err)
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
}
