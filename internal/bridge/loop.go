// Package bridge drives the multi-turn exchange between the chat provider
// and the tool host for one user query at a time.
//
// Invariant:
//   - every tool request in an assistant turn is answered by exactly one
//     tool result with the same correlation ID before the next provider
//     call, so the transcript never carries an orphaned request.
//
// Flow:
//
//	user(text) -> assistant(tool requests) -> tool(results)... -> assistant(text)
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/petasbytes/toolbridge/internal/hostconn"
	"github.com/petasbytes/toolbridge/internal/provider"
	"github.com/petasbytes/toolbridge/internal/schema"
	"github.com/petasbytes/toolbridge/internal/telemetry"
	"github.com/petasbytes/toolbridge/memory"
)

// DefaultMaxTurns bounds provider calls per query when the caller does not
// set a limit. The model decides when to stop calling tools; the bridge
// does not trust it to ever stop, so the cap keeps cost and latency finite.
const DefaultMaxTurns = 25

// ToolInvoker is the slice of the tool host connection the loop needs.
type ToolInvoker interface {
	InvokeTool(ctx context.Context, name string, args json.RawMessage) (hostconn.Result, error)
}

// TurnLimitError reports that a query was cut off after Limit provider
// calls without the model producing a final answer.
type TurnLimitError struct {
	Limit int
}

func (e *TurnLimitError) Error() string {
	return fmt.Sprintf("turn limit exceeded: no final answer after %d LLM calls", e.Limit)
}

// Loop orchestrates one query end to end. One query at a time; the Loop
// itself holds no per-query state, so it is reused across queries.
type Loop struct {
	Provider provider.ChatProvider
	Host     ToolInvoker
	Tools    []schema.Tool

	// MaxTurns caps provider calls per query; <= 0 means DefaultMaxTurns.
	MaxTurns int
}

func New(p provider.ChatProvider, host ToolInvoker, tools []schema.Tool) *Loop {
	return &Loop{Provider: p, Host: host, Tools: tools}
}

// Run processes one user query to completion: it sends the transcript and
// tool schema to the provider, executes any requested tools in order,
// appends the results, and repeats until the provider returns a turn with
// no tool requests. The final answer is the newline-joined text of every
// assistant turn.
//
// Tool failures become diagnostic results and the query continues; a
// provider failure aborts the query with the wrapped error.
func (l *Loop) Run(ctx context.Context, query string) (string, error) {
	queryID, ok := telemetry.QueryIDFromContext(ctx)
	if !ok {
		queryID = uuid.NewString()
		ctx = telemetry.WithQueryID(ctx, queryID)
	}

	maxTurns := l.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	transcript := &memory.Transcript{}
	transcript.AddUser(query)

	for turn := 0; ; turn++ {
		if turn >= maxTurns {
			return "", &TurnLimitError{Limit: maxTurns}
		}

		start := time.Now()
		assistant, err := l.Provider.SendTurn(ctx, transcript, l.Tools)
		if err != nil {
			return "", err
		}
		// Append before inspecting so the transcript always reflects what
		// the model actually said, tool requests included.
		transcript.AddAssistant(assistant)

		telemetry.Emit("llm_call", map[string]any{
			"query_id":      queryID,
			"provider":      l.Provider.Name(),
			"turn":          turn,
			"duration_ms":   time.Since(start).Milliseconds(),
			"tool_requests": len(assistant.Requests),
		})
		log.Debug().
			Str("query_id", queryID).
			Int("turn", turn).
			Int("tool_requests", len(assistant.Requests)).
			Msg("assistant turn")

		if len(assistant.Requests) == 0 {
			break
		}

		// Execute synchronously, in the order requested: tool side effects
		// may be order-sensitive and the host serializes on one channel.
		for _, req := range assistant.Requests {
			text, isErr := l.execute(ctx, queryID, req)
			transcript.AddToolResult(req.ID, req.Name, text, isErr)
		}
	}

	answer := transcript.AssistantText()
	telemetry.EmitQueryFeatures(ctx, query, answer)
	return answer, nil
}

// execute runs one tool request. Failures never abort the query; they come
// back as a diagnostic result marked as an error.
func (l *Loop) execute(ctx context.Context, queryID string, req memory.ToolRequest) (string, bool) {
	start := time.Now()
	res, err := l.Host.InvokeTool(ctx, req.Name, req.Args)
	if err != nil {
		log.Warn().Err(err).Str("tool", req.Name).Msg("tool invocation failed")
		telemetry.Emit("tool_exec", map[string]any{
			"query_id":    queryID,
			"tool_name":   req.Name,
			"duration_ms": time.Since(start).Milliseconds(),
			"error":       "tool error",
		})
		return fmt.Sprintf("[Error calling tool: %v]", err), true
	}
	text := res.Format()
	telemetry.Emit("tool_exec", map[string]any{
		"query_id":    queryID,
		"tool_name":   req.Name,
		"duration_ms": time.Since(start).Milliseconds(),
		"output_size": len(text),
		"error":       nil,
	})
	return text, false
}
