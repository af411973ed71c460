// Package genai backs the planning agent with Google's Gemini models.
package genai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/viant/unchained/internal/logging"
	"github.com/viant/unchained/service/agent"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // overrides the API endpoint, mainly for tests
	Temperature *float32
}

// Client implements agent.Assistant.
type Client struct {
	client *genai.Client
	model  string
	config Config
	logger *zap.Logger
}

func New(ctx context.Context, config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("genai: api key was empty")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{client: client, model: config.Model, config: config, logger: logging.OrNop(logger)}, nil
}

func (c *Client) Reply(ctx context.Context, messages []agent.Message) (string, error) {
	contents, system := toContents(messages)
	generateConfig := &genai.GenerateContentConfig{Temperature: c.config.Temperature}
	if system != "" {
		generateConfig.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, generateConfig)
	if err != nil {
		return "", fmt.Errorf("genai: generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", agent.ErrEmptyReply
	}
	c.logger.Debug("generated content", zap.String("model", c.model), zap.Int("replyLen", len(text)))
	return text, nil
}

// toContents maps the conversation onto Gemini roles. System messages are
// merged into the system instruction.
func toContents(messages []agent.Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case agent.RoleSystem:
			system = append(system, message.Content)
		case agent.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(message.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(message.Content, genai.RoleUser))
		}
	}
	return contents, strings.Join(system, "\n\n")
}

var _ agent.Assistant = (*Client)(nil)
