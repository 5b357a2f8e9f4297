package models

// TokenClaims represents the claims extracted from a Firebase ID token.
// Sub carries the Firebase uid.
type TokenClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Exp           int64  `json:"exp"`
	Iat           int64  `json:"iat"`
	Iss           string `json:"iss"`
	Aud           string `json:"aud"`
}
