// Package claude implements triage.Provider on the Anthropic Messages API.
package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/wardwatch/internal/triage"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Client implements the Provider interface for the Claude API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a new Claude API client with the given API key and model name.
// Extra request options are appended after the key, which lets tests point the
// client at a local server.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Send sends a request to the Claude API and returns the response. A request
// with a Schema is sent as a forced call of a single tool whose input schema is
// the contract; the tool input comes back as one JSON text block.
func (c *Client) Send(ctx context.Context, req *triage.LLMRequest) (*triage.LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  toSDKMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	var schemaName string
	if req.Schema != nil {
		schemaName = req.Schema.Name
		params.Tools = []anthropic.ToolUnionParam{schemaTool(req.Schema)}
		params.ToolChoice = anthropic.ToolChoiceParamOfTool(schemaName)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude messages: %w", err)
	}
	return fromSDKResponse(msg, schemaName), nil
}

func toSDKMessages(msgs []triage.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case triage.BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case triage.BlockImage:
				blocks = append(blocks, anthropic.NewImageBlockBase64(b.MediaType, b.Data))
			}
		}
		role := anthropic.MessageParamRoleUser
		if m.Role == triage.RoleModel {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}
	return out
}

func schemaTool(s *triage.Schema) anthropic.ToolUnionParam {
	doc := s.JSONSchema()
	required, _ := doc["required"].([]string)
	return anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
		Name:        s.Name,
		Description: anthropic.String(s.Description),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: doc["properties"],
			Required:   required,
		},
	}}
}

func fromSDKResponse(msg *anthropic.Message, schemaName string) *triage.LLMResponse {
	resp := &triage.LLMResponse{
		StopReason: stopReason(msg.StopReason),
		Model:      string(msg.Model),
		Usage: triage.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch {
		case schemaName != "":
			if block.Type == "tool_use" && block.Name == schemaName {
				resp.Content = append(resp.Content, triage.ContentBlock{Type: triage.BlockText, Text: string(block.Input)})
			}
		case block.Type == "text":
			resp.Content = append(resp.Content, triage.ContentBlock{Type: triage.BlockText, Text: block.Text})
		}
	}
	return resp
}

func stopReason(r anthropic.StopReason) triage.StopReason {
	switch r {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonToolUse:
		return triage.StopEnd
	case anthropic.StopReasonMaxTokens:
		return triage.StopMaxTokens
	}
	return triage.StopOther
}
