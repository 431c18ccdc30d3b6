// Package hostconn manages the single bidirectional channel to one MCP tool
// server process. It exposes exactly two remote operations, tools/list and
// tools/call, plus scoped teardown. No retries: one attempt per call, policy
// belongs to the caller.
package hostconn

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// transportBuilder is overridden in tests to stub the transport factory.
var transportBuilder = buildTransport

// ToolDescriptor is one callable tool as declared by the host. Immutable;
// InputSchema is carried verbatim.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Conn is a live session with one tool host. Owned by a single caller at a
// time; no internal locking beyond close idempotence.
type Conn struct {
	session *mcpsdk.ClientSession

	// tools/list response cached for the life of the connection. The host
	// cannot change its tool set without a reconnect in this setup.
	tools []ToolDescriptor

	closeOnce sync.Once
	closeErr  error
}

// Dial launches the tool host child process described by command (program
// plus arguments as a single string) and establishes the MCP session over
// its stdio. Any failure is a HostUnavailableError.
//
// The command line is split on whitespace; arguments containing spaces are
// not expressible, there is no shell quoting.
func Dial(ctx context.Context, command string) (*Conn, error) {
	transport, err := transportBuilder(ctx, command)
	if err != nil {
		return nil, &HostUnavailableError{Op: "launch", Err: err}
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "toolbridge", Version: "dev"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, &HostUnavailableError{Op: "connect", Err: err}
	}
	return &Conn{session: session}, nil
}

// ListTools returns the host's tool descriptors. The first call fetches
// over the wire; later calls return the cached slice.
func (c *Conn) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	if c.tools != nil {
		return c.tools, nil
	}
	seq := c.session.Tools(ctx, nil)
	var out []ToolDescriptor
	for tool, err := range seq {
		if err != nil {
			return nil, &HostUnavailableError{Op: "tools/list", Err: err}
		}
		schema, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal input schema for %q: %w", tool.Name, err)
		}
		out = append(out, ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	c.tools = out
	return out, nil
}

// InvokeTool runs one tool on the host. A host-reported failure (error
// result or protocol error) comes back as ToolExecutionError; a broken
// channel as HostUnavailableError.
func (c *Conn) InvokeTool(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	params := &mcpsdk.CallToolParams{Name: name}
	if len(args) > 0 {
		params.Arguments = args
	}
	res, err := c.session.CallTool(ctx, params)
	if err != nil {
		// Tell a host that answered with a protocol error apart from a
		// dropped channel: a live session still answers pings.
		if c.session.Ping(ctx, nil) != nil {
			return Result{}, &HostUnavailableError{Op: "tools/call", Err: err}
		}
		return Result{}, &ToolExecutionError{Name: name, Message: err.Error()}
	}
	result := toResult(res)
	if res.IsError {
		return Result{}, &ToolExecutionError{Name: name, Message: result.Format()}
	}
	return result, nil
}

// Close tears down the session. Idempotent; safe on every exit path.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.session != nil {
			c.closeErr = c.session.Close()
		}
	})
	return c.closeErr
}

func buildTransport(ctx context.Context, command string) (mcpsdk.Transport, error) {
	parts := strings.Fields(strings.TrimSpace(command))
	if len(parts) == 0 {
		return nil, fmt.Errorf("tool host command is empty")
	}
	// #nosec G204 -- command comes from the operator's own config, not remote input
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stderr = os.Stderr
	return &mcpsdk.CommandTransport{Command: cmd}, nil
}
