// Package auth validates the bearer token the front end and the
// webhook caller present on every request: a JWT identifying which
// service account is calling, not which user it is acting on behalf of
// (the user ID always travels in the request path/body instead).
package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload this controller issues and validates.
type Claims struct {
	Subject string `json:"sub"` // calling service account, e.g. "front-end" or "admin"
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

var (
	signingKey []byte
	issuer     = "intervention-controller"
	audience   = "intervention-controller-api"
)

func init() {
	secretEnv := os.Getenv("JWT_SECRET")
	if len(secretEnv) < 32 {
		if secretEnv == "" {
			fmt.Println("WARNING: JWT_SECRET not set, using an insecure default for local development only")
			signingKey = []byte("insecure_default_secret_for_dev_mode_only_32bytes")
		} else {
			panic("JWT_SECRET must be at least 32 characters long")
		}
	} else {
		signingKey = []byte(secretEnv)
	}
}

// GenerateToken issues a 24h HS256 token for subject/role.
func GenerateToken(subject, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken parses and validates tokenString, returning its claims.
func ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method)
		}
		return signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithAudience(audience))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
