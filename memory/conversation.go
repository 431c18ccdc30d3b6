package memory

import (
	"encoding/json"
	"strings"
)

// Role tags a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolRequest is a tool invocation asked for by the model. ID is the opaque
// correlation token the provider assigned; the matching tool result must
// carry the same ID.
type ToolRequest struct {
	ID   string
	Name string
	Args json.RawMessage
}

// Turn is one entry in a query transcript.
//
// Exactly one shape per role:
//   - user: Text
//   - assistant: Text (may be empty) plus zero or more Requests
//   - tool: Text result for the request identified by ResultFor
type Turn struct {
	Role      Role
	Text      string
	Requests  []ToolRequest
	ResultFor string
	ToolName  string
	IsError   bool
}

// Transcript is the ordered sequence of turns exchanged with the model
// during a single query. Append-only; a fresh Transcript is created per
// query and discarded with it.
type Transcript struct {
	turns []Turn
}

func (t *Transcript) AddUser(text string) {
	t.turns = append(t.turns, Turn{Role: RoleUser, Text: text})
}

// AddAssistant appends an assistant turn as returned by the provider.
// The role is forced to assistant regardless of what the caller set.
func (t *Transcript) AddAssistant(turn Turn) {
	turn.Role = RoleAssistant
	t.turns = append(t.turns, turn)
}

func (t *Transcript) AddToolResult(requestID, toolName, text string, isError bool) {
	t.turns = append(t.turns, Turn{
		Role:      RoleTool,
		Text:      text,
		ResultFor: requestID,
		ToolName:  toolName,
		IsError:   isError,
	})
}

func (t *Transcript) Turns() []Turn { return t.turns }

func (t *Transcript) Len() int { return len(t.turns) }

// Unanswered returns the IDs of tool requests that have no matching tool
// result yet, in request order. A transcript sent to the model must report
// none: every tool_use needs its tool_result before the next call.
func (t *Transcript) Unanswered() []string {
	answered := make(map[string]bool)
	for _, turn := range t.turns {
		if turn.Role == RoleTool {
			answered[turn.ResultFor] = true
		}
	}
	var pending []string
	for _, turn := range t.turns {
		if turn.Role != RoleAssistant {
			continue
		}
		for _, req := range turn.Requests {
			if !answered[req.ID] {
				pending = append(pending, req.ID)
			}
		}
	}
	return pending
}

// AssistantText joins the non-empty text portions of every assistant turn,
// in the order they were produced, separated by newlines. This is the final
// answer surface for a finished query.
func (t *Transcript) AssistantText() string {
	var parts []string
	for _, turn := range t.turns {
		if turn.Role == RoleAssistant && turn.Text != "" {
			parts = append(parts, turn.Text)
		}
	}
	return strings.Join(parts, "\n")
}
