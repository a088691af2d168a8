package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenInfo сведения из токена доступа к внешнему API
type TokenInfo struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time // нулевое значение - срок не указан
}

// InspectToken читает claims токена без проверки подписи.
// Подпись проверяет внешний API, здесь нужен только срок действия
func InspectToken(tokenString string) (*TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	info := &TokenInfo{}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if iss, err := claims.GetIssuer(); err == nil {
		info.Issuer = iss
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp != nil {
		info.ExpiresAt = exp.Time
	}

	return info, nil
}

// LooksLikeJWT грубая проверка формата header.payload.signature
func LooksLikeJWT(token string) bool {
	dots := 0
	for _, c := range token {
		if c == '.' {
			dots++
		}
	}
	return dots == 2
}
