package domain

import "time"

// TokenClaims represents the claims carried by a DataHub JWT
type TokenClaims struct {
	UserID string `json:"userid"`
	Email  string `json:"email"`
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// IsExpired checks if the token is expired
func (tc TokenClaims) IsExpired() bool {
	return tc.Exp != 0 && time.Now().Unix() > tc.Exp
}

// ExpiresIn returns the time left until expiry, zero when unknown or expired
func (tc TokenClaims) ExpiresIn() time.Duration {
	if tc.Exp == 0 {
		return 0
	}
	left := time.Until(time.Unix(tc.Exp, 0))
	if left < 0 {
		return 0
	}
	return left
}
