package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/petasbytes/toolbridge/internal/schema"
	"github.com/petasbytes/toolbridge/memory"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI talks to the chat-completions API directly over HTTP. Tool
// arguments arrive on this wire as a JSON-encoded string and are passed
// through as raw JSON.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OpenAI) Name() string { return "openai" }

// WithHTTPClient swaps the HTTP client; tests use it to intercept requests.
func (p *OpenAI) WithHTTPClient(c *http.Client) *OpenAI {
	p.client = c
	return p
}

func (p *OpenAI) SendTurn(ctx context.Context, transcript *memory.Transcript, tools []schema.Tool) (memory.Turn, error) {
	body, err := p.buildRequest(transcript, tools)
	if err != nil {
		return memory.Turn{}, &APIError{Provider: p.Name(), Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", body)
	if err != nil {
		return memory.Turn{}, &APIError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return memory.Turn{}, &APIError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return memory.Turn{}, &APIError{Provider: p.Name(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return memory.Turn{}, &APIError{Provider: p.Name(), Err: errors.New(string(raw))}
	}
	return p.parseResponse(raw)
}

func (p *OpenAI) buildRequest(transcript *memory.Transcript, tools []schema.Tool) (*bytes.Buffer, error) {
	req := map[string]any{
		"model":    p.model,
		"messages": toOpenAIMessages(transcript),
	}
	if len(tools) > 0 {
		wire := make([]map[string]any, 0, len(tools))
		for _, t := range tools {
			wire = append(wire, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  json.RawMessage(t.Parameters),
				},
			})
		}
		req["tools"] = wire
		req["tool_choice"] = "auto"
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func toOpenAIMessages(transcript *memory.Transcript) []map[string]any {
	out := make([]map[string]any, 0, transcript.Len())
	for _, turn := range transcript.Turns() {
		switch turn.Role {
		case memory.RoleUser:
			out = append(out, map[string]any{"role": "user", "content": turn.Text})
		case memory.RoleAssistant:
			m := map[string]any{"role": "assistant", "content": turn.Text}
			if len(turn.Requests) > 0 {
				calls := make([]map[string]any, 0, len(turn.Requests))
				for _, req := range turn.Requests {
					calls = append(calls, map[string]any{
						"id":   req.ID,
						"type": "function",
						"function": map[string]any{
							"name":      req.Name,
							"arguments": string(req.Args),
						},
					})
				}
				m["tool_calls"] = calls
			}
			out = append(out, m)
		case memory.RoleTool:
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": turn.ResultFor,
				"content":      turn.Text,
			})
		}
	}
	return out
}

func (p *OpenAI) parseResponse(raw []byte) (memory.Turn, error) {
	msg := gjson.GetBytes(raw, "choices.0.message")
	if !msg.Exists() {
		return memory.Turn{}, &APIError{Provider: p.Name(), Err: errors.New("response contains no choices")}
	}
	turn := memory.Turn{Role: memory.RoleAssistant, Text: msg.Get("content").String()}
	msg.Get("tool_calls").ForEach(func(_, call gjson.Result) bool {
		args := call.Get("function.arguments").String()
		if args == "" {
			args = "{}"
		}
		turn.Requests = append(turn.Requests, memory.ToolRequest{
			ID:   call.Get("id").String(),
			Name: call.Get("function.name").String(),
			Args: json.RawMessage(args),
		})
		return true
	})
	return turn, nil
}
