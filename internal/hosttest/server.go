// Package hosttest provides an in-memory MCP tool host for tests: a server
// with a small fixed tool set, connected over in-memory transports so no
// child process is involved.
package hosttest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/invopop/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type echoInput struct {
	Text string `json:"text" jsonschema_description:"Text to echo back."`
}

type failInput struct {
	Reason string `json:"reason,omitempty" jsonschema_description:"Failure message to report."`
}

// inputSchema derives a JSON schema map from a Go struct, the same way the
// bridge's upstream tools declare theirs.
func inputSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	s := reflector.Reflect(v)
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	return m
}

// NewServer returns an MCP server with the fixture tools:
//   - echo: returns "echo:" + text
//   - ping: returns "pong", takes no arguments
//   - fail: always reports a tool error (IsError result)
//   - blocks: returns two text blocks, exercising multi-block formatting
func NewServer() *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "hosttest", Version: "test"}, nil)

	server.AddTool(&mcpsdk.Tool{
		Name:        "echo",
		Description: "Echo input text",
		InputSchema: inputSchema[echoInput](),
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var in echoInput
		if err := json.Unmarshal(req.Params.Arguments, &in); err != nil {
			return nil, err
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "echo:" + in.Text}},
		}, nil
	})

	server.AddTool(&mcpsdk.Tool{
		Name:        "ping",
		Description: "Health check",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "pong"}},
		}, nil
	})

	server.AddTool(&mcpsdk.Tool{
		Name:        "fail",
		Description: "Always fails",
		InputSchema: inputSchema[failInput](),
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var in failInput
		_ = json.Unmarshal(req.Params.Arguments, &in)
		if in.Reason == "" {
			in.Reason = "intentional failure"
		}
		return &mcpsdk.CallToolResult{
			IsError: true,
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: in.Reason}},
		}, nil
	})

	server.AddTool(&mcpsdk.Tool{
		Name:        "blocks",
		Description: "Returns two text blocks",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{
				&mcpsdk.TextContent{Text: "a.txt"},
				&mcpsdk.TextContent{Text: "b.txt"},
			},
		}, nil
	})

	return server
}

// ClientTransport connects srv over in-memory transports and returns the
// client half. The server side is torn down via t.Cleanup.
func ClientTransport(t *testing.T, srv *mcpsdk.Server) mcpsdk.Transport {
	t.Helper()
	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		session, err := srv.Connect(ctx, serverTransport, nil)
		if err != nil {
			ready <- fmt.Errorf("server connect: %w", err)
			return
		}
		ready <- nil
		<-ctx.Done()
		_ = session.Close()
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	if err := <-ready; err != nil {
		t.Fatal(err)
	}
	return clientTransport
}
