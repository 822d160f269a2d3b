package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"ai-chat/internal/domain"
	"ai-chat/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"

	routeHealth   = "/health"
	routeChat     = "/chat"
	routeCheckKey = "/check-api-key"

	msgInvalidBody      = "Invalid JSON body"
	msgInternal         = "Internal server error"
	msgNotFound         = "Not found"
	msgMethodNotAllowed = "Method not allowed"
	msgVerifyFailed     = "Failed to verify API key"
)

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type KeyUseCase interface {
	Check(ctx context.Context, apiKey string) domain.ValidationResult
	HasDefaultKey() bool
}

type chatRequest struct {
	Message string `json:"message"`
	APIKey  string `json:"apiKey"`
	Model   string `json:"model"`
}

type chatResponse struct {
	Reply string `json:"reply"`
	Model string `json:"model"`
}

type checkKeyRequest struct {
	APIKey string `json:"apiKey"`
}

type keyStatusResponse struct {
	HasAPIKey bool `json:"hasApiKey"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler serves the relay endpoints from API Gateway proxy events.
type Handler struct {
	chat ChatUseCase
	keys KeyUseCase
}

func NewHandler(chat ChatUseCase, keys KeyUseCase) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if keys == nil {
		return nil, errors.New("handler: key use case must not be nil")
	}
	return &Handler{chat: chat, keys: keys}, nil
}

// Handle dispatches one request. It never returns an error: every failure is
// rendered as a JSON response.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := slog.With("correlation_id", correlationID, "method", req.HTTPMethod, "path", req.Path)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "panic while handling request", "panic", r)
			resp = jsonResponse(http.StatusInternalServerError, errorResponse{Error: msgInternal, Code: string(usecase.ErrorInternal)})
			err = nil
		}
		resp.Headers[correlationHeader] = correlationID
	}()

	body, decodeErr := requestBody(req)
	if decodeErr != nil {
		logger.WarnContext(ctx, "invalid request encoding", "err", decodeErr)
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: msgInvalidBody, Code: string(usecase.ErrorInvalidInput)}), nil
	}

	switch route := normalizePath(req.Path); route {
	case routeChat:
		if req.HTTPMethod != http.MethodPost {
			return methodNotAllowed(), nil
		}
		return h.handleChat(ctx, logger, body), nil
	case routeCheckKey:
		switch req.HTTPMethod {
		case http.MethodPost:
			return h.handleCheckKey(ctx, logger, body), nil
		case http.MethodGet:
			return jsonResponse(http.StatusOK, keyStatusResponse{HasAPIKey: h.keys.HasDefaultKey()}), nil
		default:
			return methodNotAllowed(), nil
		}
	case routeHealth:
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok"}), nil
	default:
		return jsonResponse(http.StatusNotFound, errorResponse{Error: msgNotFound, Code: string(usecase.ErrorInvalidInput)}), nil
	}
}

func (h *Handler) handleChat(ctx context.Context, logger *slog.Logger, body []byte) events.APIGatewayProxyResponse {
	var in chatRequest
	if err := decodeJSON(body, &in); err != nil {
		logger.WarnContext(ctx, "invalid chat request body", "err", err)
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: msgInvalidBody, Code: string(usecase.ErrorInvalidInput)})
	}

	out, err := h.chat.Chat(ctx, usecase.ChatInput{
		Message: in.Message,
		APIKey:  in.APIKey,
		Model:   in.Model,
	})
	if err != nil {
		return errorToResponse(ctx, logger, err)
	}

	logger.InfoContext(ctx, "chat relayed", "model", out.Model)
	return jsonResponse(http.StatusOK, chatResponse{Reply: out.Reply, Model: out.Model})
}

func (h *Handler) handleCheckKey(ctx context.Context, logger *slog.Logger, body []byte) events.APIGatewayProxyResponse {
	var in checkKeyRequest
	if err := decodeJSON(body, &in); err != nil {
		logger.WarnContext(ctx, "invalid api key check body", "err", err)
		return jsonResponse(http.StatusOK, domain.ValidationResult{IsValid: false, Message: msgVerifyFailed})
	}
	return jsonResponse(http.StatusOK, h.keys.Check(ctx, in.APIKey))
}

func errorToResponse(ctx context.Context, logger *slog.Logger, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.ErrorContext(ctx, "unexpected error", "err", err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: msgInternal, Code: string(usecase.ErrorInternal)})
	}

	status := ucErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "code", ucErr.Code, "reason", ucErr.Reason, "status", status, "err", ucErr.Err)
	} else {
		logger.WarnContext(ctx, "request rejected", "code", ucErr.Code, "reason", ucErr.Reason, "status", status)
	}

	message := ucErr.Message
	if message == "" {
		message = msgInternal
	}
	return jsonResponse(status, errorResponse{Error: message, Code: string(ucErr.Code)})
}

func methodNotAllowed() events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed, Code: string(usecase.ErrorInvalidInput)})
}

func jsonResponse(status int, payload any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal server error","code":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(body []byte, target any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, target)
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

// normalizePath strips a trailing slash and an optional /api prefix so the
// routes match both /chat and /api/chat.
func normalizePath(p string) string {
	p = strings.TrimRight(p, "/")
	if trimmed := strings.TrimPrefix(p, "/api"); trimmed != p && strings.HasPrefix(trimmed, "/") {
		p = trimmed
	}
	if p == "" {
		return "/"
	}
	return p
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
