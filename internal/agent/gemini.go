package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient implements ModelClient on Google's Gemini API with native
// function calling.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a Gemini-backed model client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("agent: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create gemini client: %w", err)
	}

	return &GeminiClient{client: client, modelID: modelID}, nil
}

// StartChat opens a chat session with the persona as system instruction and
// the tool subset declared to the model.
func (c *GeminiClient) StartChat(_ context.Context, persona string, tools []ToolDefinition, history []Message) (ChatSession, error) {
	model := c.client.GenerativeModel(c.modelID)
	if strings.TrimSpace(persona) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(persona))
	}
	if len(tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(tools)}}
	}

	cs := model.StartChat()
	for _, msg := range history {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		role := "user"
		if msg.Role == "model" || msg.Role == "assistant" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(text)},
		})
	}

	return &geminiSession{chat: cs}, nil
}

// Complete runs a single plain-text completion. The intent router uses this
// for its classification call.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.modelID)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("agent: gemini completion failed: %w", err)
	}
	turn, err := turnFromResponse(resp)
	if err != nil {
		return "", err
	}
	return turn.Text, nil
}

// Close releases the underlying API client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

type geminiSession struct {
	chat *genai.ChatSession
}

func (s *geminiSession) Send(ctx context.Context, text string) (ModelTurn, error) {
	resp, err := s.chat.SendMessage(ctx, genai.Text(text))
	if err != nil {
		return ModelTurn{}, fmt.Errorf("agent: gemini send failed: %w", err)
	}
	return turnFromResponse(resp)
}

func (s *geminiSession) Reply(ctx context.Context, responses []FunctionResponse) (ModelTurn, error) {
	parts := make([]genai.Part, 0, len(responses))
	for _, r := range responses {
		parts = append(parts, genai.FunctionResponse{Name: r.Name, Response: r.Response})
	}
	resp, err := s.chat.SendMessage(ctx, parts...)
	if err != nil {
		return ModelTurn{}, fmt.Errorf("agent: gemini tool reply failed: %w", err)
	}
	return turnFromResponse(resp)
}

func toDeclarations(tools []ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(tool.Params)),
		}
		for _, param := range tool.Params {
			paramType := genai.TypeString
			if param.Type == ParamInteger {
				paramType = genai.TypeInteger
			}
			schema.Properties[param.Name] = &genai.Schema{
				Type:        paramType,
				Description: param.Description,
			}
			if param.Required {
				schema.Required = append(schema.Required, param.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        string(tool.Name),
			Description: tool.Description,
			Parameters:  schema,
		})
	}
	return decls
}

func turnFromResponse(resp *genai.GenerateContentResponse) (ModelTurn, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return ModelTurn{}, errors.New("agent: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ModelTurn{}, errors.New("agent: gemini returned empty content")
	}

	var turn ModelTurn
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			turn.Calls = append(turn.Calls, FunctionCall{Name: v.Name, Args: v.Args})
		}
	}
	turn.Text = strings.TrimSpace(text.String())
	return turn, nil
}
