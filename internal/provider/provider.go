// Package provider defines the chat-provider capability the orchestration
// loop is generic over, plus the Anthropic and OpenAI implementations.
// Providers only translate message shapes; the state machine lives in
// internal/bridge.
package provider

import (
	"context"
	"fmt"

	"github.com/petasbytes/toolbridge/internal/schema"
	"github.com/petasbytes/toolbridge/memory"
)

// ChatProvider sends one transcript plus the tool schema to a chat API and
// returns the single assistant turn it produced. Tool choice is automatic
// whenever tools are offered.
type ChatProvider interface {
	Name() string
	SendTurn(ctx context.Context, transcript *memory.Transcript, tools []schema.Tool) (memory.Turn, error)
}

// APIError wraps any failure of the chat API call itself (auth, rate limit,
// malformed request). Fatal to the current query, never to the process.
type APIError struct {
	Provider string
	Err      error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API call failed: %v", e.Provider, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }
