package telemetry_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petasbytes/toolbridge/internal/telemetry"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}

func readEventLines(t *testing.T) []map[string]any {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(".bridge", "events.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read events: %v", err)
	}
	var out []map[string]any
	for _, line := range strings.Split(string(b), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestEmit_WritesEventWithNameAndTime(t *testing.T) {
	t.Setenv("BRIDGE_OBSERVE_JSON", "1")
	chdirTemp(t)

	telemetry.Emit("llm_call", map[string]any{"turn": 0})

	events := readEventLines(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e["event"] != "llm_call" {
		t.Errorf("event name: %v", e["event"])
	}
	if s, ok := e["time"].(string); !ok || s == "" {
		t.Errorf("time missing: %v", e["time"])
	}
	if v, ok := e["turn"].(float64); !ok || v != 0 {
		t.Errorf("field lost: %v", e["turn"])
	}
}

func TestEmit_GatedOff_NoWrites(t *testing.T) {
	t.Setenv("BRIDGE_OBSERVE_JSON", "")
	chdirTemp(t)

	telemetry.Emit("llm_call", nil)

	if _, err := os.Stat(".bridge"); !os.IsNotExist(err) {
		t.Fatal("expected no .bridge directory when BRIDGE_OBSERVE_JSON is off")
	}
}

func TestEmit_DoesNotMutateCallerMap(t *testing.T) {
	t.Setenv("BRIDGE_OBSERVE_JSON", "1")
	chdirTemp(t)

	fields := map[string]any{"a": 1}
	telemetry.Emit("x", fields)
	if _, ok := fields["event"]; ok {
		t.Fatal("caller map was mutated")
	}
}

func TestQueryID_ContextRoundTrip(t *testing.T) {
	ctx := telemetry.WithQueryID(nil, "q-123")
	id, ok := telemetry.QueryIDFromContext(ctx)
	if !ok || id != "q-123" {
		t.Fatalf("roundtrip failed: %q %v", id, ok)
	}
	if _, ok := telemetry.QueryIDFromContext(nil); ok {
		t.Fatal("nil context should carry no query ID")
	}
	if _, ok := telemetry.QueryIDFromContext(telemetry.WithQueryID(nil, "")); ok {
		t.Fatal("empty query ID should read as absent")
	}
}

func TestEmitQueryFeatures_CountsAndCorrelates(t *testing.T) {
	t.Setenv("BRIDGE_OBSERVE_JSON", "1")
	chdirTemp(t)

	ctx := telemetry.WithQueryID(nil, "q-1")
	telemetry.EmitQueryFeatures(ctx, "two words", "one\ntwo lines here")

	events := readEventLines(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e["event"] != "query_features" || e["query_id"] != "q-1" {
		t.Fatalf("unexpected event: %v", e)
	}
	q := e["query"].(map[string]any)
	if q["words"].(float64) != 2 || q["lines"].(float64) != 1 {
		t.Fatalf("query features wrong: %v", q)
	}
	a := e["answer"].(map[string]any)
	if a["lines"].(float64) != 2 || a["bytes"].(float64) != float64(len("one\ntwo lines here")) {
		t.Fatalf("answer features wrong: %v", a)
	}
	// Raw text never leaks into telemetry.
	raw, _ := os.ReadFile(filepath.Join(".bridge", "events.jsonl"))
	if string(raw) == "" {
		t.Fatal("no event written")
	}
	for _, secret := range []string{"two words", "two lines here"} {
		if strings.Contains(string(raw), secret) {
			t.Fatalf("raw payload leaked into telemetry: %q", secret)
		}
	}
}
