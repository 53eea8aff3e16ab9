package auth

import (
	"errors"
	"fmt"
	"time"

	"go_trial/foodhub/models"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies access tokens with an HMAC secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, issuer: "foodhub"}
}

// GenerateToken creates a token whose subject is the user id.
func (t *Tokens) GenerateToken(u *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.Hex(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken returns the user id carried by a valid token.
func (t *Tokens) ValidateToken(tokenString string) (primitive.ObjectID, *Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil || !token.Valid {
		return primitive.NilObjectID, nil, ErrInvalidToken
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, nil, ErrInvalidToken
	}
	return id, claims, nil
}
