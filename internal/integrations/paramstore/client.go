// Package paramstore reads the relay's default OpenAI credential from AWS SSM
// Parameter Store.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ErrEmptyParameter is returned when a parameter exists but holds no value.
var ErrEmptyParameter = errors.New("paramstore: parameter has no value")

// ssmAPI is the subset of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Client fetches credential parameters. SecureString values are decrypted
// unless WithDecryption(false) is given.
type Client struct {
	api     ssmAPI
	decrypt bool
}

type Option func(*Client)

// WithDecryption controls whether SecureString parameters are decrypted.
func WithDecryption(decrypt bool) Option {
	return func(c *Client) {
		c.decrypt = decrypt
	}
}

func New(api ssmAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: ssm api must not be nil")
	}
	c := &Client{api: api, decrypt: true}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetParameter returns the raw stored value; callers decide how to parse it.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c == nil || c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: parameter name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(c.decrypt),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: read credential parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil || strings.TrimSpace(*out.Parameter.Value) == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyParameter, name)
	}
	return *out.Parameter.Value, nil
}
