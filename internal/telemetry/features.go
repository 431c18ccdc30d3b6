package telemetry

import (
	"context"
	"strings"
	"unicode/utf8"
)

// textFeatures holds size features of a text payload; cheap to compute and
// safe to log (no raw content leaves the process).
type textFeatures struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

func countFeatures(s string) textFeatures {
	lines := 0
	if s != "" {
		lines = 1 + strings.Count(s, "\n")
	}
	return textFeatures{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
		Lines: lines,
	}
}

func (f textFeatures) fields() map[string]any {
	return map[string]any{
		"bytes": f.Bytes,
		"runes": f.Runes,
		"words": f.Words,
		"lines": f.Lines,
	}
}

// EmitQueryFeatures records size features of a finished query and its
// answer, keyed by the query ID from ctx. Payload text itself is never
// emitted.
func EmitQueryFeatures(ctx context.Context, query, answer string) {
	queryID, _ := QueryIDFromContext(ctx)
	Emit("query_features", map[string]any{
		"query_id": queryID,
		"query":    countFeatures(query).fields(),
		"answer":   countFeatures(answer).fields(),
	})
}
