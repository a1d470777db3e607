package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"livemic/internal/clock"
	"livemic/internal/domain"
)

// newSessionWindow bounds how long a token may be used to open a session.
const newSessionWindow = time.Minute

type tokenCreator interface {
	Create(ctx context.Context, config *genai.CreateAuthTokenConfig) (*genai.AuthToken, error)
}

// TokenProvisioner issues single-use ephemeral tokens through the auth token API.
type TokenProvisioner struct {
	apiKey string
	clock  clock.Clock

	mu      sync.Mutex
	creator tokenCreator
}

func NewTokenProvisioner(apiKey string, c clock.Clock) *TokenProvisioner {
	if c == nil {
		c = clock.Real()
	}
	return &TokenProvisioner{apiKey: apiKey, clock: c}
}

// Provision requests a token valid for lifetime. Every failure is a
// *domain.ProvisioningError.
func (p *TokenProvisioner) Provision(ctx context.Context, lifetime time.Duration) (domain.Credential, error) {
	creator, err := p.tokenClient(ctx)
	if err != nil {
		return domain.Credential{}, &domain.ProvisioningError{Err: err}
	}

	now := p.clock.Now()
	expiresAt := now.Add(lifetime)
	token, err := creator.Create(ctx, &genai.CreateAuthTokenConfig{
		Uses:                 genai.Ptr[int32](1),
		ExpireTime:           expiresAt,
		NewSessionExpireTime: now.Add(newSessionWindow),
	})
	if err != nil {
		return domain.Credential{}, &domain.ProvisioningError{Err: err}
	}
	if token == nil || strings.TrimSpace(token.Name) == "" {
		return domain.Credential{}, &domain.ProvisioningError{Err: errors.New("service returned an empty token")}
	}

	return domain.Credential{Token: token.Name, ExpiresAt: expiresAt}, nil
}

func (p *TokenProvisioner) tokenClient(ctx context.Context) (tokenCreator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.creator != nil {
		return p.creator, nil
	}
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      p.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1alpha"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	p.creator = client.AuthTokens
	return p.creator, nil
}
