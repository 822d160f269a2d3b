package usecase

import (
	"context"
	"errors"
	"strings"

	"ai-chat/internal/domain"
)

const (
	msgMessageRequired  = "Message is required"
	msgNoAPIKey         = "No API key provided"
	msgInvalidChatKey   = "Invalid API key. Please check your OpenAI API key configuration."
	msgUpstreamFallback = "Error communicating with OpenAI API"
)

type ChatInput struct {
	Message string
	APIKey  string
	Model   string
}

// ChatOutput carries the reply and the upstream model that produced it.
type ChatOutput struct {
	Reply string
	Model string
}

// ChatService relays one user message to the upstream chat-completion API.
type ChatService struct {
	llm LLMClient
	cfg RelayConfig
}

func NewChatService(llm LLMClient, cfg RelayConfig) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &ChatService{llm: llm, cfg: cfg}, nil
}

// Chat makes at most one upstream call and never retries.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	if strings.TrimSpace(in.Message) == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", msgMessageRequired, nil)
	}

	apiKey := s.cfg.resolveAPIKey(in.APIKey)
	if apiKey == "" {
		return ChatOutput{}, newError(ErrorUnauthorized, "missing_api_key", msgNoAPIKey, nil)
	}

	model := s.cfg.Resolver.Resolve(in.Model)

	reply, err := s.llm.Chat(ctx, apiKey, domain.CompletionRequest{
		Model:       model,
		Messages:    buildRelayMessages(in.Message),
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		return ChatOutput{}, classifyChatError(err, apiKey)
	}

	return ChatOutput{Reply: reply, Model: model}, nil
}

// classifyChatError maps an upstream failure to the relay taxonomy. Neither
// the message nor the wrapped cause carries the credential.
func classifyChatError(err error, apiKey string) *Error {
	cause := redactedCause(err, apiKey)
	status, ok := upstreamStatusCode(err)
	if !ok {
		return newError(ErrorUpstream, "openai_unavailable", msgUpstreamFallback, cause)
	}
	if ClassifyStatus(status) == ErrorUnauthorized {
		return newError(ErrorUnauthorized, "openai_unauthorized", msgInvalidChatKey, cause)
	}

	message := redact(upstreamMessage(err), apiKey)
	if message == "" {
		message = msgUpstreamFallback
	}
	out := newError(ErrorUpstream, "openai_error", message, cause)
	out.Status = status
	return out
}
