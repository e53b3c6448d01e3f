package gateway

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ActivationClaims are the claims carried by an account activation token
// issued by the identity service.
type ActivationClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator verifies activation tokens at the gateway edge so
// unauthenticated traffic never reaches the backing services.
type TokenValidator struct {
	jwtSecret []byte
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{
		jwtSecret: []byte(secret),
	}
}

// Validate parses and verifies an activation token
func (tv *TokenValidator) Validate(tokenString string) (*ActivationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActivationClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*ActivationClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token carries no subject")
	}

	return claims, nil
}
