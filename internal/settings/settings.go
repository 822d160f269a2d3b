// Package settings persists the chat client's user settings, API key and
// selected model in a key-value store.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-chat/internal/domain"
	"ai-chat/internal/models"
)

const (
	KeyUserSettings = "userSettings"
	KeyAPIKey       = "apiKey"
	KeyModel        = "model"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

var ErrInvalidTheme = errors.New("settings: theme must be one of light, dark, system")

// Store is a string key-value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Verifier checks an API key before it is stored.
type Verifier interface {
	Verify(ctx context.Context, apiKey string) (domain.ValidationResult, error)
}

type UserSettings struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Theme    Theme  `json:"theme"`
}

// Settings is the full client state kept in the store. APIKey is a secret.
type Settings struct {
	User   UserSettings
	APIKey string
	Model  string
}

func DefaultUser() UserSettings {
	return UserSettings{Theme: ThemeSystem}
}

func (u UserSettings) Validate() error {
	switch u.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidTheme, u.Theme)
	}
}

// Manager reads and writes Settings through a Store.
type Manager struct {
	store        Store
	defaultModel string
}

func NewManager(store Store, defaultModel string) (*Manager, error) {
	if store == nil {
		return nil, errors.New("settings: store must not be nil")
	}
	defaultModel = strings.TrimSpace(defaultModel)
	if defaultModel == "" {
		defaultModel = models.BaselineModel
	}
	return &Manager{store: store, defaultModel: defaultModel}, nil
}

// Load returns the stored settings, filling defaults for missing keys.
func (m *Manager) Load(ctx context.Context) (Settings, error) {
	s := Settings{User: DefaultUser(), Model: m.defaultModel}

	raw, ok, err := m.store.Get(ctx, KeyUserSettings)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: load user settings: %w", err)
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &s.User); err != nil {
			return Settings{}, fmt.Errorf("settings: decode user settings: %w", err)
		}
		if s.User.Theme == "" {
			s.User.Theme = ThemeSystem
		}
	}

	if s.APIKey, _, err = m.store.Get(ctx, KeyAPIKey); err != nil {
		return Settings{}, fmt.Errorf("settings: load api key: %w", err)
	}

	model, ok, err := m.store.Get(ctx, KeyModel)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: load model: %w", err)
	}
	if ok && strings.TrimSpace(model) != "" {
		s.Model = model
	}
	return s, nil
}

func (m *Manager) SaveUser(ctx context.Context, u UserSettings) error {
	if err := u.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("settings: encode user settings: %w", err)
	}
	if err := m.store.Put(ctx, KeyUserSettings, string(raw)); err != nil {
		return fmt.Errorf("settings: save user settings: %w", err)
	}
	return nil
}

func (m *Manager) SetModel(ctx context.Context, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("settings: model must not be empty")
	}
	if err := m.store.Put(ctx, KeyModel, model); err != nil {
		return fmt.Errorf("settings: save model: %w", err)
	}
	return nil
}

// SetAPIKey verifies apiKey and stores it only when the verifier accepts it.
// The validation result is returned either way.
func (m *Manager) SetAPIKey(ctx context.Context, apiKey string, v Verifier) (domain.ValidationResult, error) {
	if v == nil {
		return domain.ValidationResult{}, errors.New("settings: verifier must not be nil")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return domain.ValidationResult{IsValid: false, Message: "No API key provided"}, nil
	}

	result, err := v.Verify(ctx, apiKey)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("settings: verify api key: %w", err)
	}
	if !result.IsValid {
		return result, nil
	}
	if err := m.store.Put(ctx, KeyAPIKey, apiKey); err != nil {
		return domain.ValidationResult{}, fmt.Errorf("settings: save api key: %w", err)
	}
	return result, nil
}

// Clear removes every stored setting and returns the reset state. Without a
// server-side key the model goes back to the baseline.
func (m *Manager) Clear(ctx context.Context, hasServerKey bool) (Settings, error) {
	if err := m.store.Delete(ctx, KeyUserSettings, KeyAPIKey, KeyModel); err != nil {
		return Settings{}, fmt.Errorf("settings: clear: %w", err)
	}
	s := Settings{User: DefaultUser(), Model: m.defaultModel}
	if !hasServerKey {
		s.Model = models.BaselineModel
	}
	return s, nil
}
