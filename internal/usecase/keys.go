package usecase

import (
	"context"
	"errors"
	"log/slog"

	"ai-chat/internal/domain"
)

const (
	msgInvalidKey      = "Invalid API key"
	msgRateLimited     = "Rate limit exceeded"
	msgVerifyKeyFailed = "Failed to verify API key"
)

// KeyService verifies credentials against the upstream API.
type KeyService struct {
	llm LLMClient
	cfg RelayConfig
}

func NewKeyService(llm LLMClient, cfg RelayConfig) (*KeyService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &KeyService{llm: llm, cfg: cfg}, nil
}

// Check probes the upstream with the caller's key, or the server default when
// none is given. Failures are reported in the result, never as an error.
func (s *KeyService) Check(ctx context.Context, apiKey string) domain.ValidationResult {
	key := s.cfg.resolveAPIKey(apiKey)
	if key == "" {
		return domain.ValidationResult{IsValid: false, Message: msgNoAPIKey}
	}

	if _, err := s.llm.ListModels(ctx, key); err != nil {
		status, _ := upstreamStatusCode(err)
		slog.WarnContext(ctx, "api key probe failed", "status", status, "kind", ClassifyStatus(status))
		return domain.ValidationResult{IsValid: false, Message: probeFailureMessage(status)}
	}
	return domain.ValidationResult{IsValid: true}
}

// HasDefaultKey reports whether a server-side credential is configured.
func (s *KeyService) HasDefaultKey() bool {
	return s.cfg.resolveAPIKey("") != ""
}

func probeFailureMessage(status int) string {
	switch ClassifyStatus(status) {
	case ErrorUnauthorized:
		return msgInvalidKey
	case ErrorRateLimited:
		return msgRateLimited
	default:
		return msgVerifyKeyFailed
	}
}
