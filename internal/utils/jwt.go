package utils

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
)

// InspectToken decodes the claims of a DataHub JWT without verifying its signature.
// The health check never holds the signing key; it only needs to know
// whether the configured credential has already expired.
func InspectToken(tokenString string) (*domain.TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	tokenClaims := &domain.TokenClaims{}

	for _, key := range []string{"userid", "user_id", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			tokenClaims.UserID = v
			break
		}
	}

	if email, ok := claims["email"].(string); ok {
		tokenClaims.Email = email
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tokenClaims.Exp = exp.Unix()
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		tokenClaims.Iat = iat.Unix()
	}

	return tokenClaims, nil
}
