package auth

import (
	"context"
	"crypto"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/fruitsalade/rested/internal/logging"
)

// OIDCConfig holds OIDC provider configuration.
type OIDCConfig struct {
	IssuerURL string // e.g. https://keycloak.example.com/realms/rested
	ClientID  string
}

// OIDCVerifier checks that a token returned at login is an ID token issued
// for this client before it is saved.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the provider at cfg.IssuerURL.
// Returns nil if IssuerURL is empty (OIDC disabled).
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	if cfg.IssuerURL == "" {
		return nil, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider init: %w", err)
	}

	logging.Info("OIDC provider initialized",
		logging.String("issuer", cfg.IssuerURL),
		logging.String("client_id", cfg.ClientID))

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// NewStaticOIDCVerifier verifies tokens against fixed public keys instead
// of the provider's published key set.
func NewStaticOIDCVerifier(cfg OIDCConfig, keys ...crypto.PublicKey) *OIDCVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(cfg.IssuerURL, keySet, &oidc.Config{ClientID: cfg.ClientID}),
	}
}

// Verify validates tf.Token and fills the username and expiry of tf from its
// claims.
func (v *OIDCVerifier) Verify(ctx context.Context, tf *TokenFile) error {
	idToken, err := v.verifier.Verify(ctx, tf.Token)
	if err != nil {
		return fmt.Errorf("verify id token: %w", err)
	}

	var claims struct {
		Sub               string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return fmt.Errorf("parse oidc claims: %w", err)
	}

	// Prefer preferred_username, fallback to email, then sub
	switch {
	case claims.PreferredUsername != "":
		tf.Username = claims.PreferredUsername
	case claims.Email != "":
		tf.Username = claims.Email
	case tf.Username == "":
		tf.Username = claims.Sub
	}
	tf.ExpiresAt = idToken.Expiry
	return nil
}
