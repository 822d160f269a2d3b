// Package app wires configuration, upstream client and use cases into the
// relay handler shared by the Lambda and HTTP binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"ai-chat/handler"
	"ai-chat/internal/config"
	"ai-chat/internal/integrations/openai"
	"ai-chat/internal/integrations/paramstore"
	"ai-chat/internal/usecase"
)

// LoadConfig seeds the environment from .env and reads the relay config,
// fetching the default key from Parameter Store when one is named.
func LoadConfig(ctx context.Context) (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return config.Config{}, err
	}
	if !cfg.NeedsParamStore() {
		return cfg, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return config.Config{}, fmt.Errorf("app: load AWS config: %w", err)
	}
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return config.Config{}, fmt.Errorf("app: create SSM client: %w", err)
	}
	if err := cfg.ResolveDefaultKey(ctx, params); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// NewHandler builds the relay handler for cfg.
func NewHandler(cfg config.Config) (*handler.Handler, error) {
	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, err
	}

	llm := openai.NewClient(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithTimeout(cfg.UpstreamTimeout),
	)
	relayCfg := usecase.RelayConfig{
		DefaultAPIKey: cfg.DefaultAPIKey,
		Resolver:      resolver,
	}

	chat, err := usecase.NewChatService(llm, relayCfg)
	if err != nil {
		return nil, fmt.Errorf("app: create chat service: %w", err)
	}
	keys, err := usecase.NewKeyService(llm, relayCfg)
	if err != nil {
		return nil, fmt.Errorf("app: create key service: %w", err)
	}

	slog.Info("relay configured",
		"default_model", resolver.Default(),
		"models", resolver.Selectors(),
		"has_default_key", keys.HasDefaultKey(),
		"base_url", cfg.BaseURL,
	)
	return handler.NewHandler(chat, keys)
}
