// Package config reads process configuration once at startup.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ai-chat/internal/integrations/openai"
	"ai-chat/internal/models"
)

const (
	defaultPort            = 8080
	defaultUpstreamTimeout = 30 * time.Second
)

// Config is the relay configuration. DefaultAPIKey is a secret and must never
// be logged.
type Config struct {
	DefaultAPIKey   string
	APIKeyParam     string
	DefaultModel    string
	BaseURL         string
	ModelTable      map[string]string
	Port            int
	AllowedOrigins  []string
	RateLimitRPS    float64
	UpstreamTimeout time.Duration
}

// ParamGetter reads a named parameter, e.g. from SSM Parameter Store.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// tokenPayload is the JSON shape accepted for a stored API key.
type tokenPayload struct {
	Token string `json:"token"`
}

// LoadDotEnv seeds the environment from a .env file. A missing file is not an
// error; variables already set are not overwritten.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load builds a Config from the given environment lookup.
func Load(getenv func(string) string) (Config, error) {
	cfg := Config{
		DefaultAPIKey:   strings.TrimSpace(getenv("OPENAI_API_KEY")),
		APIKeyParam:     strings.TrimSpace(getenv("OPENAI_API_KEY_PARAM")),
		DefaultModel:    strings.TrimSpace(getenv("OPENAI_MODEL")),
		BaseURL:         strings.TrimSpace(getenv("OPENAI_BASE_URL")),
		Port:            defaultPort,
		AllowedOrigins:  []string{"*"},
		UpstreamTimeout: defaultUpstreamTimeout,
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = models.BaselineModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openai.DefaultBaseURL
	}

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("config: PORT must be a valid TCP port, got %q", v)
		}
		cfg.Port = port
	}

	if v := strings.TrimSpace(getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	if v := strings.TrimSpace(getenv("RATE_LIMIT_RPS")); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return Config{}, fmt.Errorf("config: RATE_LIMIT_RPS must be a non-negative number, got %q", v)
		}
		cfg.RateLimitRPS = rps
	}

	if v := strings.TrimSpace(getenv("UPSTREAM_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("config: UPSTREAM_TIMEOUT must be a positive duration, got %q", v)
		}
		cfg.UpstreamTimeout = d
	}

	cfg.ModelTable = models.DefaultTable()
	if path := strings.TrimSpace(getenv("MODEL_TABLE_FILE")); path != "" {
		table, err := models.LoadTable(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		cfg.ModelTable = table
	}

	return cfg, nil
}

// NeedsParamStore reports whether the default key must be fetched from the
// parameter store.
func (c Config) NeedsParamStore() bool {
	return c.DefaultAPIKey == "" && c.APIKeyParam != ""
}

// ResolveDefaultKey fills DefaultAPIKey from the parameter store when no key
// was set in the environment. The stored value is either the raw key or
// {"token":"..."}.
func (c *Config) ResolveDefaultKey(ctx context.Context, params ParamGetter) error {
	if !c.NeedsParamStore() {
		return nil
	}
	if params == nil {
		return errors.New("config: param getter must not be nil")
	}

	raw, err := params.GetParameter(ctx, c.APIKeyParam)
	if err != nil {
		return fmt.Errorf("config: fetch api key from paramstore: %w", err)
	}
	key, err := parseStoredKey(raw)
	if err != nil {
		return err
	}
	c.DefaultAPIKey = key
	return nil
}

// Resolver validates the model table and returns the resolver for it.
func (c Config) Resolver() (*models.Resolver, error) {
	r, err := models.NewResolver(c.ModelTable, c.DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return r, nil
}

func parseStoredKey(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("config: unmarshal stored api key as JSON: %w", err)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", errors.New("config: stored api key is empty")
	}
	return raw, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
