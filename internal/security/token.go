package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims carries the JWT claims for an authenticated user session.
type UserClaims struct {
	UserID  uint64 `json:"uid"`
	IsAdmin bool   `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidToken indicates a token that failed validation.
var ErrInvalidToken = errors.New("invalid token")

// SignUserToken issues a signed JWT for the user.
func SignUserToken(secret string, userID uint64, isAdmin bool, expiry time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	claims := UserClaims{
		UserID:  userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("sign token: %w", errSign)
	}
	return signed, nil
}

// ParseUserToken validates a JWT and returns its claims.
func ParseUserToken(secret, raw string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, errParse := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errParse != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
