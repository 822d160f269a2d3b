package usecase

import (
	"context"
	"errors"
	"strings"

	"ai-chat/internal/domain"
)

// LLMClient is the upstream chat-completion service.
type LLMClient interface {
	Chat(ctx context.Context, apiKey string, in domain.CompletionRequest) (string, error)
	ListModels(ctx context.Context, apiKey string) ([]string, error)
}

type ModelResolver interface {
	Resolve(selector string) string
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type upstreamMessenger interface {
	UpstreamMessage() string
}

// RelayConfig is the explicit configuration shared by the relay use cases.
// It is built once at startup and never mutated.
type RelayConfig struct {
	DefaultAPIKey string
	Resolver      ModelResolver
}

func (c RelayConfig) validate() error {
	if c.Resolver == nil {
		return errors.New("usecase: model resolver must not be nil")
	}
	return nil
}

// resolveAPIKey prefers the caller's credential over the server default.
// Blank keys count as absent; a present key is returned exactly as given.
func (c RelayConfig) resolveAPIKey(explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	if strings.TrimSpace(c.DefaultAPIKey) != "" {
		return c.DefaultAPIKey
	}
	return ""
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func upstreamMessage(err error) string {
	var m upstreamMessenger
	if !errors.As(err, &m) {
		return ""
	}
	return strings.TrimSpace(m.UpstreamMessage())
}
