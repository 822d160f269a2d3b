package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-chat/internal/domain"
)

const (
	defaultRelayTimeout = 60 * time.Second
	maxRelayBodyBytes   = 1 << 20
)

// RelayError is a non-2xx answer from the relay. Message is the relay's
// error text, or empty when the body carried none.
type RelayError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *RelayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat: relay returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat: relay returned status %d: %s", e.StatusCode, e.Message)
}

// Reply is a successful relay answer.
type Reply struct {
	Text  string
	Model string
}

// HTTPRelay talks to the relay endpoints over HTTP.
type HTTPRelay struct {
	baseURL    string
	httpClient *http.Client
}

type RelayOption func(*HTTPRelay)

func WithRelayHTTPClient(c *http.Client) RelayOption {
	return func(r *HTTPRelay) {
		if c != nil {
			r.httpClient = c
		}
	}
}

func NewHTTPRelay(baseURL string, opts ...RelayOption) (*HTTPRelay, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("chat: relay base URL must not be empty")
	}
	r := &HTTPRelay{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRelayTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type relayChatRequest struct {
	Message string `json:"message"`
	APIKey  string `json:"apiKey,omitempty"`
	Model   string `json:"model,omitempty"`
}

type relayChatResponse struct {
	Reply string `json:"reply"`
	Model string `json:"model"`
}

type relayErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type relayKeyRequest struct {
	APIKey string `json:"apiKey,omitempty"`
}

type relayKeyStatus struct {
	HasAPIKey bool `json:"hasApiKey"`
}

// Chat sends one message to POST /chat.
func (r *HTTPRelay) Chat(ctx context.Context, message, apiKey, model string) (Reply, error) {
	var out relayChatResponse
	if err := r.do(ctx, http.MethodPost, "/chat", relayChatRequest{Message: message, APIKey: apiKey, Model: model}, &out); err != nil {
		return Reply{}, err
	}
	return Reply{Text: out.Reply, Model: out.Model}, nil
}

// Verify asks POST /check-api-key whether apiKey works upstream.
func (r *HTTPRelay) Verify(ctx context.Context, apiKey string) (domain.ValidationResult, error) {
	var out domain.ValidationResult
	if err := r.do(ctx, http.MethodPost, "/check-api-key", relayKeyRequest{APIKey: apiKey}, &out); err != nil {
		return domain.ValidationResult{}, err
	}
	return out, nil
}

// HasServerKey reports whether the relay has its own default key.
func (r *HTTPRelay) HasServerKey(ctx context.Context) (bool, error) {
	var out relayKeyStatus
	if err := r.do(ctx, http.MethodGet, "/check-api-key", nil, &out); err != nil {
		return false, err
	}
	return out.HasAPIKey, nil
}

func (r *HTTPRelay) do(ctx context.Context, method, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("chat: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("chat: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBodyBytes))
	if err != nil {
		return fmt.Errorf("chat: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er relayErrorResponse
		_ = json.Unmarshal(raw, &er)
		return &RelayError{StatusCode: resp.StatusCode, Message: er.Error, Code: er.Code}
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("chat: decode response: %w", err)
	}
	return nil
}
