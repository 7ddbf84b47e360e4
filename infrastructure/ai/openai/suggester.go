// Package openai asks an OpenAI-compatible chat completion API for
// suggestion trees.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"mindboard/application/ports"
	pkgerrors "mindboard/pkg/errors"
)

// ProviderOpenAI is the only provider this suggester serves
const ProviderOpenAI = "openai"

const defaultModel = "gpt-4o-mini"

// Config configures the suggester. APIKey may be empty when every request
// carries its own key.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Suggester implements ports.Suggester
type Suggester struct {
	cfg    Config
	client *openai.Client
	logger *zap.Logger
}

var _ ports.Suggester = (*Suggester)(nil)

// NewSuggester creates a suggester
func NewSuggester(cfg Config, logger *zap.Logger) *Suggester {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Suggester{cfg: cfg, logger: logger}
	if cfg.APIKey != "" {
		s.client = s.newClient(cfg.APIKey)
	}
	return s
}

func (s *Suggester) newClient(apiKey string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if s.cfg.BaseURL != "" {
		clientCfg.BaseURL = s.cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// Suggest returns the raw content of the first completion choice
func (s *Suggester) Suggest(ctx context.Context, req ports.SuggestRequest) ([]byte, error) {
	if p := strings.ToLower(req.Provider); p != "" && p != ProviderOpenAI {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unsupported suggestion provider %q", req.Provider))
	}

	client := s.client
	if req.APIKey != "" {
		client = s.newClient(req.APIKey)
	}
	if client == nil {
		return nil, pkgerrors.NewUnavailableError("suggestion provider").WithDetail("reason", "no API key configured")
	}

	model := req.Model
	if model == "" {
		model = s.cfg.Model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Context)+1)
	for _, m := range req.Context {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	s.logger.Debug("Requesting suggestions", zap.String("model", model), zap.Int("messages", len(messages)))
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		s.logger.Error("Suggestion request failed", zap.String("model", model), zap.Error(err))
		return nil, pkgerrors.NewExternalError("suggestion provider", err)
	}
	if len(resp.Choices) == 0 {
		return nil, pkgerrors.NewExternalError("suggestion provider", fmt.Errorf("no choices returned"))
	}

	s.logger.Debug("Received suggestions",
		zap.String("model", model),
		zap.String("finishReason", string(resp.Choices[0].FinishReason)),
	)
	return []byte(resp.Choices[0].Message.Content), nil
}
