package googlecal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// EnvTokenProvider supplies OAuth token sources from a single refresh
// token configured in the environment. Suited to self-hosted single
// host deployments where all Google sources share one account.
type EnvTokenProvider struct {
	config       *oauth2.Config
	refreshToken string
}

// NewEnvTokenProvider creates a token provider from static credentials.
func NewEnvTokenProvider(clientID, clientSecret, tokenURL, refreshToken string) *EnvTokenProvider {
	return &EnvTokenProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: tokenURL,
			},
		},
		refreshToken: refreshToken,
	}
}

// TokenSource returns a self-refreshing token source. The user ID is
// ignored; every host maps to the configured account.
func (p *EnvTokenProvider) TokenSource(ctx context.Context, _ uuid.UUID) (oauth2.TokenSource, error) {
	if p.refreshToken == "" {
		return nil, fmt.Errorf("google refresh token not configured")
	}
	return p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken}), nil
}
