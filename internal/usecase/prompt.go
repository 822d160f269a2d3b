package usecase

import (
	"errors"
	"strings"

	"ai-chat/internal/domain"
)

const (
	systemInstruction = "You are a helpful assistant."
	replyTemperature  = 0.7
	replyMaxTokens    = 1000
)

// buildRelayMessages returns the single-turn conversation sent upstream.
// Prior turns are not replayed.
func buildRelayMessages(message string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: systemInstruction},
		{Role: domain.RoleUser, Content: message},
	}
}

// redact removes every occurrence of the credential from s.
func redact(s, credential string) string {
	if credential == "" {
		return s
	}
	return strings.ReplaceAll(s, credential, "[redacted]")
}

// redactedCause returns err unchanged unless its text contains the
// credential, in which case only the redacted text is kept.
func redactedCause(err error, credential string) error {
	if err == nil || credential == "" {
		return err
	}
	text := err.Error()
	if !strings.Contains(text, credential) {
		return err
	}
	return errors.New(redact(text, credential))
}
