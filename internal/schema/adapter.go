// Package schema translates the tool host's descriptors into the neutral
// tool shape chat providers consume. Pure mapping, no validation: the
// downstream API is the source of truth for schema acceptance.
package schema

import (
	"encoding/json"

	"github.com/petasbytes/toolbridge/internal/hostconn"
)

// Tool is the provider-neutral function-calling declaration.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Adapt maps host descriptors to tools, preserving input order. The
// description defaults to "" and the input schema is passed through
// verbatim.
func Adapt(descs []hostconn.ToolDescriptor) []Tool {
	out := make([]Tool, 0, len(descs))
	for _, d := range descs {
		out = append(out, Tool{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.InputSchema,
		})
	}
	return out
}
