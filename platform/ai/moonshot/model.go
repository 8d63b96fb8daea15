// Package moonshot adapts the Moonshot (Kimi) OpenAI-compatible API to the
// ADK model.LLM interface, including multimodal messages for report photos.
package moonshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// Config for the Kimi model adapter.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// KimiModel adapts Moonshot to the ADK model.LLM interface.
type KimiModel struct {
	config Config
	client *http.Client
}

func NewModel(cfg Config) *KimiModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.moonshot.ai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "kimi-k2.5"
	}
	return &KimiModel{
		config: cfg,
		client: &http.Client{},
	}
}

func (m *KimiModel) Name() string {
	return m.config.Model
}

// GenerateContent adapts ADK requests to Kimi's OpenAI-compatible API.
func (m *KimiModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

// chatContent is one element of an OpenAI multimodal content array.
type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    interface{}    `json:"content,omitempty"` // string or []chatContent
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function chatToolCallDetail `json:"function"`
}

type chatToolCallDetail struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatToolDef struct {
	Type     string          `json:"type"`
	Function chatToolDefFunc `json:"function"`
}

type chatToolDefFunc struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role      string         `json:"role"`
			Content   string         `json:"content"`
			ToolCalls []chatToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error interface{} `json:"error"`
}

func (m *KimiModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	messages := m.convertMessages(req.Contents)
	tools := m.convertTools(req)

	payload := map[string]interface{}{
		"model":    m.config.Model,
		"messages": messages,
		// Thinking mode interferes with reliable tool calling; keep it off.
		"thinking": map[string]string{"type": "disabled"},
	}
	if req.Config != nil && req.Config.Temperature != nil {
		payload["temperature"] = float64(*req.Config.Temperature)
	}
	if len(tools) > 0 {
		payload["tools"] = tools
		payload["tool_choice"] = "auto"
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode kimi response: %v", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("kimi api error: %v", result.Error)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("kimi api error: empty choices")
	}

	choice := result.Choices[0].Message
	parts := make([]*genai.Part, 0, 1+len(choice.ToolCalls))
	if strings.TrimSpace(choice.Content) != "" {
		parts = append(parts, genai.NewPartFromText(choice.Content))
	}
	for _, tc := range choice.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{"_raw": tc.Function.Arguments}
			}
		}
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			},
		})
	}

	return &model.LLMResponse{
		Content: &genai.Content{
			Role:  genai.RoleModel,
			Parts: parts,
		},
	}, nil
}

func (m *KimiModel) convertMessages(contents []*genai.Content) []chatMessage {
	messages := make([]chatMessage, 0, len(contents))
	for _, content := range contents {
		if content == nil {
			continue
		}

		role := roleForContent(content.Role)
		blocks, toolCalls, toolMessages := splitContent(content)
		messages = append(messages, toolMessages...)
		if len(blocks) == 0 && len(toolCalls) == 0 {
			continue
		}

		msg := chatMessage{Role: role, ToolCalls: toolCalls}
		// Plain string content unless the message carries images.
		if len(blocks) == 1 && blocks[0].Type == "text" {
			msg.Content = blocks[0].Text
		} else if len(blocks) > 0 {
			msg.Content = blocks
		}
		messages = append(messages, msg)
	}
	return messages
}

func roleForContent(role string) string {
	if role == "model" {
		return "assistant"
	}
	return "user"
}

// splitContent maps genai parts onto OpenAI content blocks, tool calls, and
// tool-response messages. Inline image blobs become data-URI image_url blocks.
func splitContent(content *genai.Content) ([]chatContent, []chatToolCall, []chatMessage) {
	var blocks []chatContent
	var toolCalls []chatToolCall
	var toolMessages []chatMessage
	var textBuilder strings.Builder

	flushText := func() {
		if text := strings.TrimSpace(textBuilder.String()); text != "" {
			blocks = append(blocks, chatContent{Type: "text", Text: text})
		}
		textBuilder.Reset()
	}

	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionResponse != nil {
			payload, _ := json.Marshal(part.FunctionResponse.Response)
			toolMessages = append(toolMessages, chatMessage{
				Role:       "tool",
				ToolCallID: part.FunctionResponse.ID,
				Content:    string(payload),
				Name:       part.FunctionResponse.Name,
			})
			continue
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			toolCalls = append(toolCalls, chatToolCall{
				ID:   part.FunctionCall.ID,
				Type: "function",
				Function: chatToolCallDetail{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			flushText()
			uri := fmt.Sprintf("data:%s;base64,%s", part.InlineData.MIMEType,
				base64.StdEncoding.EncodeToString(part.InlineData.Data))
			blocks = append(blocks, chatContent{Type: "image_url", ImageURL: &chatImageURL{URL: uri}})
			continue
		}
		if strings.TrimSpace(part.Text) != "" {
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n")
			}
			textBuilder.WriteString(part.Text)
		}
	}
	flushText()

	return blocks, toolCalls, toolMessages
}

func (m *KimiModel) convertTools(req *model.LLMRequest) []chatToolDef {
	if req == nil || req.Config == nil || len(req.Config.Tools) == 0 {
		return nil
	}

	var tools []chatToolDef
	for _, gt := range req.Config.Tools {
		if gt == nil || gt.FunctionDeclarations == nil {
			continue
		}
		for _, decl := range gt.FunctionDeclarations {
			if decl == nil || decl.Name == "" {
				continue
			}
			var params interface{}
			switch {
			case decl.ParametersJsonSchema != nil:
				params = decl.ParametersJsonSchema
			case decl.Parameters != nil:
				params = decl.Parameters
			}
			tools = append(tools, chatToolDef{
				Type: "function",
				Function: chatToolDefFunc{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  params,
				},
			})
		}
	}

	return tools
}
