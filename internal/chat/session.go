// Package chat holds the client-side conversation and its link to the relay.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ai-chat/internal/domain"
	"ai-chat/internal/models"
)

const (
	welcomeID          = "welcome"
	welcomeWithKey     = "Hello! 👋 How can I help you today?"
	welcomeWithoutKey  = "Please add your API key in settings to start chatting."
	msgResponseFailed  = "Failed to get response"
	msgTransportFailed = "Failed to send message"
)

var (
	ErrEmptyMessage = errors.New("chat: message is empty")
	ErrNoActiveKey  = errors.New("chat: no API key available")
)

// Relay is what a Session needs from the relay service.
type Relay interface {
	Chat(ctx context.Context, message, apiKey, model string) (Reply, error)
	HasServerKey(ctx context.Context) (bool, error)
}

// Session is one client conversation. It is not safe for concurrent use.
type Session struct {
	relay        Relay
	messages     []domain.Message
	loading      bool
	lastErr      string
	model        string
	apiKey       string
	hasServerKey bool
	now          func() time.Time
}

func NewSession(relay Relay, apiKey, model string) (*Session, error) {
	if relay == nil {
		return nil, errors.New("chat: relay must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = models.BaselineModel
	}
	return &Session{
		relay:  relay,
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
		now:    time.Now,
	}, nil
}

// Start asks the relay whether it holds a server key and seeds the welcome
// message. A failed lookup is treated as no server key.
func (s *Session) Start(ctx context.Context) {
	has, err := s.relay.HasServerKey(ctx)
	if err != nil {
		slog.WarnContext(ctx, "could not check server api key", "err", err)
		has = false
	}
	s.hasServerKey = has
	s.resetTranscript()
}

func (s *Session) resetTranscript() {
	welcome := domain.Message{
		ID:        welcomeID,
		Role:      domain.RoleAssistant,
		Content:   welcomeWithoutKey,
		Timestamp: s.now().UnixMilli(),
	}
	if s.HasActiveKey() {
		welcome.Content = welcomeWithKey
	}
	if s.hasServerKey {
		welcome.Model = models.BaselineModel
	}
	s.messages = []domain.Message{welcome}
}

// Send relays content and appends both sides of the exchange. On relay
// failure the user message stays, LastError is set and the error returned.
func (s *Session) Send(ctx context.Context, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	if !s.HasActiveKey() {
		return domain.Message{}, ErrNoActiveKey
	}

	s.messages = append(s.messages, domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   content,
		Timestamp: s.now().UnixMilli(),
	})
	s.loading = true
	s.lastErr = ""
	defer func() { s.loading = false }()

	reply, err := s.relay.Chat(ctx, content, s.apiKey, s.model)
	if err != nil {
		s.lastErr = errorText(err)
		return domain.Message{}, err
	}

	model := reply.Model
	if model == "" {
		model = s.model
	}
	msg := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   reply.Text,
		Timestamp: s.now().UnixMilli(),
		Model:     model,
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func errorText(err error) string {
	var re *RelayError
	if errors.As(err, &re) {
		if re.Message != "" {
			return re.Message
		}
		return msgResponseFailed
	}
	return msgTransportFailed
}

// Clear empties the transcript.
func (s *Session) Clear() {
	s.messages = nil
	s.lastErr = ""
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) HasActiveKey() bool { return s.apiKey != "" || s.hasServerKey }
func (s *Session) HasServerKey() bool { return s.hasServerKey }
func (s *Session) Loading() bool { return s.loading }
func (s *Session) LastError() string { return s.lastErr }
func (s *Session) Model() string { return s.model }

// SetAPIKey replaces the user key. The welcome message is refreshed when the
// transcript holds nothing else.
func (s *Session) SetAPIKey(apiKey string) {
	s.apiKey = strings.TrimSpace(apiKey)
	if len(s.messages) <= 1 {
		s.resetTranscript()
	}
}

func (s *Session) SetModel(model string) {
	if model = strings.TrimSpace(model); model != "" {
		s.model = model
	}
}
