// Package oidc verifies Firebase ID tokens against Google's published keys.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/overlax/overlax/internal/models"
)

const (
	// FirebaseJWKSURL publishes the keys that sign Firebase ID tokens.
	FirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

	firebaseIssuerPrefix = "https://securetoken.google.com/"
	clockSkew            = 30 * time.Second
)

// ErrInvalidToken is returned for tokens that fail verification
var ErrInvalidToken = errors.New("invalid token")

// Verifier verifies JWT tokens
type Verifier struct {
	jwksManager *JWKSManager
	jwksURL     string
	issuer      string
	audience    string
}

// NewVerifier creates a verifier for Firebase ID tokens of projectID
func NewVerifier(jwksManager *JWKSManager, projectID string) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		jwksURL:     FirebaseJWKSURL,
		issuer:      firebaseIssuerPrefix + projectID,
		audience:    projectID,
	}
}

// SetJWKSURL overrides the key endpoint for testing purposes.
func (v *Verifier) SetJWKSURL(url string) {
	v.jwksURL = url
}

// Verify verifies a JWT token and extracts claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.TokenClaims, error) {
	token, err := v.parse(ctx, tokenString)
	if err != nil {
		// Keys may have rotated since they were cached; retry once with fresh keys.
		v.jwksManager.Invalidate(v.jwksURL)
		token, err = v.parse(ctx, tokenString)
		if err != nil {
			return nil, err
		}
	}

	if token.Subject() == "" {
		return nil, fmt.Errorf("%w: token missing subject", ErrInvalidToken)
	}

	claims := &models.TokenClaims{
		Sub: token.Subject(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
		Iss: token.Issuer(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}
	if email, ok := token.Get("email"); ok {
		if emailStr, ok := email.(string); ok {
			claims.Email = emailStr
		}
	}
	if verified, ok := token.Get("email_verified"); ok {
		if verifiedBool, ok := verified.(bool); ok {
			claims.EmailVerified = verifiedBool
		}
	}
	if name, ok := token.Get("name"); ok {
		if nameStr, ok := name.(string); ok {
			claims.Name = nameStr
		}
	}

	return claims, nil
}

func (v *Verifier) parse(ctx context.Context, tokenString string) (jwt.Token, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithAcceptableSkew(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return token, nil
}
