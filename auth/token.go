package auth

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/errors"
)

const issuer = "oz-collabo-relay"

var validate = validator.New()

// Claims is the data carried inside an access token.
type Claims struct {
	UserID int64  `json:"user_id" validate:"gt=0"`
	Name   string `json:"name,omitempty" validate:"max=150"`
	jwt.RegisteredClaims
}

// Signer issues and checks HS256 tokens with one shared secret.
type Signer struct {
	key []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret)}
}

// GenerateToken creates a signed token for a user, valid for duration.
func (s *Signer) GenerateToken(userID domain.UserID, name string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: int64(userID),
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	if err := validate.Struct(claims); err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInvalidToken, err)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// ValidateToken checks the signature, the expiration and the claims of a token.
func (s *Signer) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	if err := validate.Struct(claims); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidToken, err)
	}
	return claims, nil
}
