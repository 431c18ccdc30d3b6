package hostconn

import (
	"encoding/json"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Block is one content block of a tool result: either plain text or an
// arbitrary structured payload, never both.
type Block struct {
	Text string
	Raw  json.RawMessage
}

// Result is the normalized content of one tools/call response: the ordered
// content blocks, plus the host's structured payload when it sent one
// instead of (or alongside) blocks.
type Result struct {
	Blocks     []Block
	Structured json.RawMessage
}

func toResult(res *mcpsdk.CallToolResult) Result {
	if res == nil {
		return Result{}
	}
	out := Result{}
	for _, content := range res.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			out.Blocks = append(out.Blocks, Block{Text: tc.Text})
			continue
		}
		raw, err := json.Marshal(content)
		if err != nil {
			// A block the SDK produced but cannot re-serialize; keep the
			// result usable rather than dropping the whole call.
			raw = json.RawMessage(`{"type":"unknown"}`)
		}
		out.Blocks = append(out.Blocks, Block{Raw: raw})
	}
	if res.StructuredContent != nil {
		if raw, err := json.Marshal(res.StructuredContent); err == nil {
			out.Structured = raw
		}
	}
	return out
}

// Format renders the result for the model: text blocks are joined with
// newlines, non-text blocks are serialized as JSON in place. A result with
// no blocks falls back to the structured payload, serialized as JSON.
func (r Result) Format() string {
	if len(r.Blocks) == 0 {
		if len(r.Structured) > 0 {
			return string(r.Structured)
		}
		return ""
	}
	parts := make([]string, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		if b.Raw != nil {
			parts = append(parts, string(b.Raw))
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n")
}
