package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/petasbytes/toolbridge/internal/schema"
	"github.com/petasbytes/toolbridge/memory"
)

const defaultMaxTokens = 4096

// Anthropic talks to the Messages API. Credentials and model come in
// explicitly; nothing is read from the environment here.
type Anthropic struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic builds a provider for the given key and model. baseURL is an
// optional override for compatible gateways; opts are appended last so
// tests can swap the HTTP client.
func NewAnthropic(apiKey, model, baseURL string, opts ...option.RequestOption) *Anthropic {
	ro := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		ro = append(ro, option.WithBaseURL(baseURL))
	}
	ro = append(ro, opts...)
	client := anthropic.NewClient(ro...)
	return &Anthropic{
		client:    &client,
		model:     anthropic.Model(model),
		maxTokens: defaultMaxTokens,
	}
}

func (p *Anthropic) Name() string { return "anthropic" }

// SendTurn replays the transcript as Messages API params, requests one
// completion, and returns the assistant turn with any tool requests.
func (p *Anthropic) SendTurn(ctx context.Context, transcript *memory.Transcript, tools []schema.Tool) (memory.Turn, error) {
	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages:  toMessageParams(transcript),
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return memory.Turn{}, &APIError{Provider: p.Name(), Err: err}
	}

	turn := memory.Turn{Role: memory.RoleAssistant}
	var texts []string
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			texts = append(texts, v.Text)
		case anthropic.ToolUseBlock:
			turn.Requests = append(turn.Requests, memory.ToolRequest{
				ID:   v.ID,
				Name: v.Name,
				Args: json.RawMessage(v.JSON.Input.Raw()),
			})
		}
	}
	turn.Text = strings.Join(texts, "\n")
	return turn, nil
}

// toMessageParams maps transcript turns onto the wire shape. Consecutive
// tool-result turns collapse into one user message: the API expects every
// tool_use to be answered by tool_result blocks in the next message.
func toMessageParams(transcript *memory.Transcript) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, transcript.Len())
	var pendingResults []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(pendingResults) > 0 {
			msgs = append(msgs, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, turn := range transcript.Turns() {
		switch turn.Role {
		case memory.RoleUser:
			flush()
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		case memory.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if turn.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(turn.Text))
			}
			for _, req := range turn.Requests {
				toolUse := anthropic.ToolUseBlockParam{
					Type:  "tool_use",
					ID:    req.ID,
					Name:  req.Name,
					Input: json.RawMessage(req.Args),
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &toolUse})
			}
			msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
		case memory.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(turn.ResultFor, turn.Text, turn.IsError))
		}
	}
	flush()
	return msgs
}

func toAnthropicTools(tools []schema.Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: toInputSchema(t.Parameters),
		}})
	}
	return out
}

// toInputSchema lifts a verbatim JSON schema into the typed param. Besides
// properties and required, every other top-level key ($defs,
// additionalProperties, description, ...) rides along via ExtraFields so the
// schema reaches the API unchanged.
func toInputSchema(params json.RawMessage) anthropic.ToolInputSchemaParam {
	var top map[string]json.RawMessage
	_ = json.Unmarshal(params, &top)
	out := anthropic.ToolInputSchemaParam{}
	if p, ok := top["properties"]; ok && len(p) > 0 {
		out.Properties = p
	}
	if r, ok := top["required"]; ok {
		var required []string
		if json.Unmarshal(r, &required) == nil {
			out.Required = required
		}
	}
	extra := make(map[string]any)
	for key, value := range top {
		switch key {
		case "type", "properties", "required":
			continue
		}
		extra[key] = value
	}
	if len(extra) > 0 {
		out.ExtraFields = extra
	}
	return out
}
