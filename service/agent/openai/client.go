// Package openai talks to any OpenAI-compatible chat completions endpoint,
// including local model servers such as llama.cpp or Ollama.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/viant/unchained/internal/logging"
	"github.com/viant/unchained/service/agent"
)

const (
	DefaultBaseURL = "http://localhost:11434/v1"
	DefaultModel   = "phi3:mini"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client implements agent.Assistant.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(config Config, logger *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logging.OrNop(logger),
	}
}

func (c *Client) Reply(ctx context.Context, messages []agent.Message) (string, error) {
	request := chatRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		Messages:    make([]chatMessage, 0, len(messages)),
	}
	for _, message := range messages {
		request.Messages = append(request.Messages, chatMessage{Role: string(message.Role), Content: message.Content})
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	started := time.Now()
	var lastErr error
	for i := 0; i <= c.config.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			}
		}
		reply, retry, err := c.call(ctx, payload)
		if err == nil {
			c.logger.Debug("chat completion",
				zap.String("model", c.config.Model),
				zap.Duration("elapsed", time.Since(started)),
				zap.Int("replyLen", len(reply)))
			return reply, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return "", lastErr
}

func (c *Client) call(ctx context.Context, payload []byte) (reply string, retry bool, err error) {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return "", true, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, body)
	}
	var response chatResponse
	if err = json.Unmarshal(body, &response); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Error != nil {
		return "", false, fmt.Errorf("api error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", false, agent.ErrEmptyReply
	}
	return response.Choices[0].Message.Content, false, nil
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Ping checks that the endpoint answers GET /models. Unreachable servers,
// rejected credentials and server errors fail; a model missing from the
// listing is only logged since servers name models differently.
func (c *Client) Ping(ctx context.Context) error {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model endpoint %v unreachable: %w", c.config.BaseURL, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("model endpoint %v rejected credentials: status %d", c.config.BaseURL, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("model endpoint %v failed with status %d: %s", c.config.BaseURL, resp.StatusCode, body)
	case resp.StatusCode != http.StatusOK:
		return nil
	}
	var models modelsResponse
	if err = json.Unmarshal(body, &models); err != nil {
		return nil
	}
	for _, model := range models.Data {
		if model.ID == c.config.Model {
			return nil
		}
	}
	c.logger.Warn("model not listed by endpoint", zap.String("model", c.config.Model), zap.String("endpoint", c.config.BaseURL))
	return nil
}

var _ agent.Assistant = (*Client)(nil)
