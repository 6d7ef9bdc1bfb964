// Package gemini implements triage.Provider on the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/wardwatch/internal/triage"
)

const (
	// DefaultBaseURL is the public Generative Language endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.5-flash"

	maxResponseBytes = 4 << 20
)

// Client implements the Provider interface for the Gemini API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Gemini client for model.
func New(apiKey, model string, opts ...Option) *Client {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
	Error        *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Send issues one generateContent call. A request with a Schema sets a JSON
// response MIME type and the schema as responseSchema. No candidates is an
// empty response, not an error.
func (c *Client) Send(ctx context.Context, req *triage.LLMRequest) (*triage.LLMResponse, error) {
	body := generateRequest{
		Contents:         toContents(req.Messages),
		GenerationConfig: generationConfig{MaxOutputTokens: req.MaxTokens},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.Schema != nil {
		body.GenerationConfig.ResponseMimeType = "application/json"
		body.GenerationConfig.ResponseSchema = toSchema(req.Schema.Root())
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed generateResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return nil, fmt.Errorf("gemini http %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("gemini http %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("unmarshal response: %w", decodeErr)
	}

	return fromResponse(&parsed, c.model), nil
}

func toContents(msgs []triage.Message) []content {
	out := make([]content, 0, len(msgs))
	for _, m := range msgs {
		parts := make([]part, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case triage.BlockText:
				parts = append(parts, part{Text: b.Text})
			case triage.BlockImage:
				parts = append(parts, part{InlineData: &inlineData{MimeType: b.MediaType, Data: b.Data}})
			}
		}
		role := "user"
		if m.Role == triage.RoleModel {
			role = "model"
		}
		out = append(out, content{Role: role, Parts: parts})
	}
	return out
}

// toSchema renders a field in the OpenAPI subset Gemini accepts.
func toSchema(f triage.Field) map[string]any {
	m := map[string]any{"type": strings.ToUpper(string(f.Type))}
	if f.Description != "" {
		m["description"] = f.Description
	}
	if len(f.Enum) > 0 {
		m["enum"] = f.Enum
	}
	switch f.Type {
	case triage.TypeArray:
		if f.Items != nil {
			m["items"] = toSchema(*f.Items)
		}
	case triage.TypeObject:
		props := make(map[string]any, len(f.Fields))
		names := make([]string, 0, len(f.Fields))
		for _, c := range f.Fields {
			props[c.Name] = toSchema(c)
			names = append(names, c.Name)
		}
		m["properties"] = props
		m["required"] = names
		m["propertyOrdering"] = names
	}
	return m
}

func fromResponse(r *generateResponse, model string) *triage.LLMResponse {
	out := &triage.LLMResponse{
		StopReason: triage.StopOther,
		Model:      model,
		Usage: triage.Usage{
			InputTokens:  r.UsageMetadata.PromptTokenCount,
			OutputTokens: r.UsageMetadata.CandidatesTokenCount,
		},
	}
	if r.ModelVersion != "" {
		out.Model = r.ModelVersion
	}
	if len(r.Candidates) == 0 {
		return out
	}
	cand := r.Candidates[0]
	switch cand.FinishReason {
	case "STOP":
		out.StopReason = triage.StopEnd
	case "MAX_TOKENS":
		out.StopReason = triage.StopMaxTokens
	}
	for _, p := range cand.Content.Parts {
		if p.Text != "" {
			out.Content = append(out.Content, triage.ContentBlock{Type: triage.BlockText, Text: p.Text})
		}
	}
	return out
}
