package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"talentmarket_backend/internal/model"
)

type Claims struct {
	UserID      uint              `json:"user_id"`
	Email       string            `json:"email"`
	ProfileType model.ProfileType `json:"profile_type"`
	TokenType   string            `json:"token_type"`
	jwt.RegisteredClaims
}

var jwtSecret = []byte("talentmarket-dev-secret")

// Init sets the signing secret from configuration. Called once from main.
func Init(secret string) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
}

const (
	accessLifetime  = 24 * time.Hour
	refreshLifetime = 30 * 24 * time.Hour
)

func GenerateToken(userID uint, email string, profileType model.ProfileType) (string, error) {
	return sign(userID, email, profileType, "access", accessLifetime)
}

func GenerateRefreshToken(userID uint, email string, profileType model.ProfileType) (string, error) {
	return sign(userID, email, profileType, "refresh", refreshLifetime)
}

func sign(userID uint, email string, profileType model.ProfileType, tokenType string, lifetime time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:      userID,
		Email:       email,
		ProfileType: profileType,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})

	return token.SignedString(jwtSecret)
}

func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// ValidateRefreshToken accepts only tokens minted by GenerateRefreshToken.
func ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "refresh" {
		return nil, errors.New("not a refresh token")
	}
	return claims, nil
}
