package secrets

import (
	"context"
	"fmt"
	"os"
)

// Store resolves named secrets for platform-default vendor credentials.
type Store interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Env resolves secrets from process environment variables.
type Env struct{}

func NewEnv() *Env {
	return &Env{}
}

func (e *Env) GetSecret(ctx context.Context, name string) (string, error) {
	if val, ok := os.LookupEnv(name); ok && val != "" {
		return val, nil
	}
	return "", fmt.Errorf("secret %q not set", name)
}

// Static serves secrets from a fixed map. Used in tests and the benchmark
// harness where no real credentials exist.
type Static map[string]string

func (s Static) GetSecret(ctx context.Context, name string) (string, error) {
	if val, ok := s[name]; ok {
		return val, nil
	}
	return "", fmt.Errorf("secret %q not set", name)
}
