package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCodec emite y valida tokens de acceso.
type TokenCodec interface {
	Issue(subject string, userID int64, now time.Time) (string, error)
	Validate(token string, now time.Time) (Claims, bool)
}

type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

var ErrJWTInvalid = errors.New("jwt invalid")

// minKeyBytes es el tamaño de clave a partir del cual HMAC no se considera débil.
const minKeyBytes = 32

// JWTService firma tokens HS512 con una clave compartida.
type JWTService struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTService(secret []byte, ttl time.Duration) (*JWTService, error) {
	if len(secret) == 0 {
		return nil, ErrJWTInvalid
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &JWTService{secret: key, ttl: ttl}, nil
}

// WeakKey indica si la clave es más corta que lo recomendado para HS512.
func (s *JWTService) WeakKey() bool {
	return len(s.secret) < minKeyBytes
}

func (s *JWTService) TTL() time.Duration { return s.ttl }

func (s *JWTService) Issue(subject string, userID int64, now time.Time) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Join(ErrJWTInvalid, err)
	}
	return signed, nil
}

// Validate nunca devuelve el motivo del rechazo: cualquier fallo es false.
func (s *JWTService) Validate(tokenString string, now time.Time) (Claims, bool) {
	if s == nil || len(s.secret) == 0 {
		return Claims{}, false
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, false
	}

	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, false
	}
	// exp viaja en segundos enteros (NumericDate); now == exp ya es inválido.
	if !now.Before(claims.ExpiresAt.Time) {
		return Claims{}, false
	}
	return claims, true
}
