package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"ai-chat/handler"
	"ai-chat/internal/config"
	"ai-chat/internal/domain"
	"ai-chat/internal/usecase"
)

type recordingHandler struct {
	resp events.APIGatewayProxyResponse
	err  error
	got  events.APIGatewayProxyRequest
}

func (r *recordingHandler) Handle(_ context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	r.got = req
	return r.resp, r.err
}

func testConfig() config.Config {
	return config.Config{
		Port:            8080,
		AllowedOrigins:  []string{"*"},
		UpstreamTimeout: time.Second,
	}
}

func mustNewServer(t *testing.T, cfg config.Config, h ProxyHandler) *Server {
	t.Helper()
	s, err := New(cfg, h)
	require.NoError(t, err)
	return s
}

func do(s *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestNew_Validates(t *testing.T) {
	_, err := New(testConfig(), nil)
	require.Error(t, err)

	cfg := testConfig()
	cfg.Port = 0
	_, err = New(cfg, &recordingHandler{})
	require.Error(t, err)
}

func TestDispatch_AdaptsRequestAndResponse(t *testing.T) {
	h := &recordingHandler{resp: events.APIGatewayProxyResponse{
		StatusCode: http.StatusCreated,
		Headers:    map[string]string{"Content-Type": "application/json", "X-Correlation-Id": "abc"},
		Body:       `{"ok":true}`,
	}}
	s := mustNewServer(t, testConfig(), h)

	rec := do(s, http.MethodPost, "/api/chat?debug=1", `{"message":"hi"}`, map[string]string{"X-Correlation-Id": "abc"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
	require.Equal(t, "abc", rec.Header().Get("X-Correlation-Id"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	require.Equal(t, http.MethodPost, h.got.HTTPMethod)
	require.Equal(t, "/api/chat", h.got.Path)
	require.Equal(t, `{"message":"hi"}`, h.got.Body)
	require.Equal(t, "abc", h.got.Headers["X-Correlation-Id"])
	require.Equal(t, "1", h.got.QueryStringParameters["debug"])
}

func TestDispatch_HandlerErrorBecomes500(t *testing.T) {
	s := mustNewServer(t, testConfig(), &recordingHandler{err: errors.New("boom")})

	rec := do(s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INTERNAL_ERROR", body.Code)
	require.NotContains(t, rec.Body.String(), "boom")
}

func TestBodyLimit(t *testing.T) {
	h := &recordingHandler{resp: events.APIGatewayProxyResponse{StatusCode: http.StatusOK}}
	s := mustNewServer(t, testConfig(), h)

	rec := do(s, http.MethodPost, "/chat", strings.Repeat("a", 2<<20), nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"http://localhost:5173"}
	s := mustNewServer(t, cfg, &recordingHandler{})

	rec := do(s, http.MethodOptions, "/chat", "", map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": http.MethodPost,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	h := &recordingHandler{resp: events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: "{}"}}
	s := mustNewServer(t, cfg, h)

	first := do(s, http.MethodPost, "/chat", `{}`, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := do(s, http.MethodPost, "/chat", `{}`, nil)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Contains(t, second.Body.String(), "RATE_LIMITED")

	// Health checks are never limited.
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", "", nil).Code)
	}
}

type fixedChat struct{}

func (fixedChat) Chat(_ context.Context, in usecase.ChatInput) (usecase.ChatOutput, error) {
	return usecase.ChatOutput{Reply: "echo: " + in.Message, Model: "gpt-3.5-turbo"}, nil
}

type fixedKeys struct{}

func (fixedKeys) Check(_ context.Context, apiKey string) domain.ValidationResult {
	if apiKey == "bad-key" {
		return domain.ValidationResult{IsValid: false, Message: "Invalid API key"}
	}
	return domain.ValidationResult{IsValid: true}
}

func (fixedKeys) HasDefaultKey() bool { return true }

func TestRoutesReachHandler(t *testing.T) {
	h, err := handler.NewHandler(fixedChat{}, fixedKeys{})
	require.NoError(t, err)
	s := mustNewServer(t, testConfig(), h)

	rec := do(s, http.MethodPost, "/chat", `{"message":"hi"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"reply":"echo: hi","model":"gpt-3.5-turbo"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Correlation-Id"))

	rec = do(s, http.MethodPost, "/api/check-api-key", `{"apiKey":"bad-key"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"isValid":false,"message":"Invalid API key"}`, rec.Body.String())

	rec = do(s, http.MethodGet, "/check-api-key", "", nil)
	require.JSONEq(t, `{"hasApiKey":true}`, rec.Body.String())

	rec = do(s, http.MethodGet, "/missing", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, http.MethodPut, "/chat", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
