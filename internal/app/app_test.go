package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"ai-chat/internal/config"
)

func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Header.Get("Authorization") != "Bearer sk-default":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
		case r.URL.Path == "/v1/models":
			_, _ = w.Write([]byte(`{"data":[{"id":"gpt-3.5-turbo"}]}`))
		case r.URL.Path == "/v1/chat/completions":
			var body struct {
				Model string `json:"model"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"reply from ` + body.Model + `"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load(func(k string) string { return env[k] })
	require.NoError(t, err)
	return cfg
}

func TestNewHandler_EndToEnd(t *testing.T) {
	upstream := fakeUpstream(t)
	cfg := testConfig(t, map[string]string{
		"OPENAI_API_KEY":  "sk-default",
		"OPENAI_BASE_URL": upstream.URL,
	})

	h, err := NewHandler(cfg)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/api/chat",
		Body:       `{"message":"hi"}`,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"reply":"reply from gpt-3.5-turbo","model":"gpt-3.5-turbo"}`, resp.Body)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/api/check-api-key",
		Body:       `{"apiKey":"bad-key"}`,
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"isValid":false,"message":"Invalid API key"}`, resp.Body)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/api/check-api-key",
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"hasApiKey":true}`, resp.Body)
}

func TestNewHandler_UserKeyRejectedUpstream(t *testing.T) {
	upstream := fakeUpstream(t)
	cfg := testConfig(t, map[string]string{"OPENAI_BASE_URL": upstream.URL})

	h, err := NewHandler(cfg)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chat",
		Body:       `{"message":"hi","apiKey":"sk-wrong"}`,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotContains(t, resp.Body, "sk-wrong")
}

func TestNewHandler_InvalidModelTable(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.ModelTable = map[string]string{"": "gpt-4o"}

	_, err := NewHandler(cfg)
	require.Error(t, err)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestNewHandler_CredentialNeverLogged(t *testing.T) {
	const secret = "sk-user-secret"
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error echoing key", status: http.StatusInternalServerError, body: `{"error":{"message":"upstream failed for key sk-user-secret"}}`},
		{name: "unauthorized echoing key", status: http.StatusUnauthorized, body: `{"error":{"message":"Incorrect API key provided: sk-user-secret"}}`},
		{name: "forbidden echoing key", status: http.StatusForbidden, body: `{"error":{"message":"key sk-user-secret is blocked"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(upstream.Close)

			logs := captureLogs(t)
			h, err := NewHandler(testConfig(t, map[string]string{"OPENAI_BASE_URL": upstream.URL}))
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
				HTTPMethod: http.MethodPost,
				Path:       "/api/chat",
				Body:       `{"message":"hi","apiKey":"` + secret + `"}`,
			})
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			require.NotContains(t, resp.Body, secret)

			resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
				HTTPMethod: http.MethodPost,
				Path:       "/api/check-api-key",
				Body:       `{"apiKey":"` + secret + `"}`,
			})
			require.NoError(t, err)
			require.NotContains(t, resp.Body, secret)

			require.NotEmpty(t, logs.String())
			require.NotContains(t, logs.String(), secret)
		})
	}
}

func TestNewHandler_ProxyErrorPageNotForwarded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html><body>502 Bad Gateway nginx internal host 10.0.0.7</body></html>`))
	}))
	t.Cleanup(upstream.Close)

	h, err := NewHandler(testConfig(t, map[string]string{
		"OPENAI_API_KEY":  "sk-default",
		"OPENAI_BASE_URL": upstream.URL,
	}))
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chat",
		Body:       `{"message":"hi"}`,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.JSONEq(t, `{"error":"Error communicating with OpenAI API","code":"UPSTREAM_ERROR"}`, resp.Body)
}
