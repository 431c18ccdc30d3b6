package hostconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/petasbytes/toolbridge/internal/hosttest"
)

func dialTestHost(t *testing.T, callCounter *atomic.Int32) *Conn {
	t.Helper()
	clientTransport := hosttest.ClientTransport(t, hosttest.NewServer())

	originalBuilder := transportBuilder
	transportBuilder = func(ctx context.Context, command string) (mcpsdk.Transport, error) {
		if callCounter != nil {
			callCounter.Add(1)
		}
		return clientTransport, nil
	}
	t.Cleanup(func() { transportBuilder = originalBuilder })

	conn, err := Dial(context.Background(), "inmemory")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestConn_ListTools_CachedPerConnection(t *testing.T) {
	var builderCalls atomic.Int32
	conn := dialTestHost(t, &builderCalls)

	tools, err := conn.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if builderCalls.Load() != 1 {
		t.Fatalf("expected single connect, got %d", builderCalls.Load())
	}
	if len(tools) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(tools))
	}
	byName := map[string]ToolDescriptor{}
	for _, tool := range tools {
		byName[tool.Name] = tool
	}
	echo, ok := byName["echo"]
	if !ok {
		t.Fatalf("echo tool missing: %+v", tools)
	}
	if echo.Description != "Echo input text" {
		t.Fatalf("unexpected description: %q", echo.Description)
	}
	var schema map[string]any
	if err := json.Unmarshal(echo.InputSchema, &schema); err != nil {
		t.Fatalf("input schema should be valid JSON: %v", err)
	}
	if schema["type"] != "object" {
		t.Fatalf("unexpected schema: %+v", schema)
	}

	// Second call must be served from the cache: identical slice, no refetch.
	again, err := conn.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools second call failed: %v", err)
	}
	if &again[0] != &tools[0] {
		t.Fatalf("expected cached descriptor slice on repeat call")
	}
}

func TestConn_InvokeTool_Text(t *testing.T) {
	conn := dialTestHost(t, nil)

	res, err := conn.InvokeTool(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("InvokeTool failed: %v", err)
	}
	if got := res.Format(); got != "echo:hi" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestConn_InvokeTool_MultipleBlocksJoined(t *testing.T) {
	conn := dialTestHost(t, nil)

	res, err := conn.InvokeTool(context.Background(), "blocks", nil)
	if err != nil {
		t.Fatalf("InvokeTool failed: %v", err)
	}
	if got := res.Format(); got != "a.txt\nb.txt" {
		t.Fatalf("blocks should be newline-joined, got %q", got)
	}
}

func TestConn_InvokeTool_HostReportedError(t *testing.T) {
	conn := dialTestHost(t, nil)

	_, err := conn.InvokeTool(context.Background(), "fail", json.RawMessage(`{"reason":"boom"}`))
	var execErr *ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
	if execErr.Name != "fail" || execErr.Message != "boom" {
		t.Fatalf("unexpected error payload: %+v", execErr)
	}
}

func TestConn_InvokeTool_UnknownTool(t *testing.T) {
	conn := dialTestHost(t, nil)

	_, err := conn.InvokeTool(context.Background(), "does_not_exist", nil)
	var execErr *ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ToolExecutionError for unknown tool, got %v", err)
	}
}

func TestConn_InvokeTool_DroppedChannel_IsHostUnavailable(t *testing.T) {
	conn := dialTestHost(t, nil)
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err := conn.InvokeTool(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	var unavailable *HostUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("dead channel should report HostUnavailableError, got %v", err)
	}
	if unavailable.Op != "tools/call" {
		t.Fatalf("unexpected op: %q", unavailable.Op)
	}
}

func TestDial_TransportFailure_IsHostUnavailable(t *testing.T) {
	originalBuilder := transportBuilder
	defer func() { transportBuilder = originalBuilder }()

	transportBuilder = func(context.Context, string) (mcpsdk.Transport, error) {
		return nil, fmt.Errorf("no such binary")
	}

	_, err := Dial(context.Background(), "missing-server /tmp")
	var unavailable *HostUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected HostUnavailableError, got %v", err)
	}
	if unavailable.Op != "launch" {
		t.Fatalf("unexpected op: %q", unavailable.Op)
	}
}

func TestDial_ConnectFailure_IsHostUnavailable(t *testing.T) {
	originalBuilder := transportBuilder
	defer func() { transportBuilder = originalBuilder }()

	transportBuilder = func(context.Context, string) (mcpsdk.Transport, error) {
		return failingTransport{}, nil
	}

	_, err := Dial(context.Background(), "broken")
	var unavailable *HostUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected HostUnavailableError, got %v", err)
	}
	if unavailable.Op != "connect" {
		t.Fatalf("unexpected op: %q", unavailable.Op)
	}
}

func TestConn_Close_Idempotent(t *testing.T) {
	conn := dialTestHost(t, nil)
	if err := conn.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
}

func TestBuildTransport_EmptyCommand(t *testing.T) {
	if _, err := buildTransport(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty command")
	}
}

type failingTransport struct{}

func (failingTransport) Connect(context.Context) (mcpsdk.Connection, error) {
	return nil, fmt.Errorf("connect failed")
}
