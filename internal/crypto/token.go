// Package crypto handles the marketplace access token.
package crypto

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/session"
)

// TokenClaims represents the marketplace access token payload.
type TokenClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// ParseIdentity decodes an access token into the chat session identity.
//
// The client does not hold the server's signing key, so the token is decoded
// without signature verification; authorization stays server-side and a
// forged token only misclassifies the forger's own view.
func ParseIdentity(tokenString string) (session.Identity, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return session.Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.UserID == "" {
		return session.Identity{}, fmt.Errorf("token missing userId claim")
	}
	role := session.Role(claims.Role)
	if !role.Valid() {
		return session.Identity{}, fmt.Errorf("token has unknown role %q", claims.Role)
	}
	return session.Identity{UserID: claims.UserID, Role: role}, nil
}
