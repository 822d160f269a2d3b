package cli

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"ai-chat/internal/repository"
	"ai-chat/internal/settings"
)

// OpenStore opens the settings store named by target: "memory",
// "sqlite:<path>" or "dynamodb:<table>". The returned close func is never nil.
func OpenStore(ctx context.Context, target, profile string) (settings.Store, func() error, error) {
	noop := func() error { return nil }
	kind, arg, _ := strings.Cut(strings.TrimSpace(target), ":")

	switch kind {
	case "memory":
		return repository.NewMemoryStore(), noop, nil
	case "sqlite":
		s, err := repository.OpenSQLite(ctx, arg, profile)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("cli: load AWS config: %w", err)
		}
		s, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), arg, profile)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	default:
		return nil, noop, fmt.Errorf("cli: unknown store %q, want memory, sqlite:<path> or dynamodb:<table>", target)
	}
}
