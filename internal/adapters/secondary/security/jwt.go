package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// UserClaims étend les claims standards JWT.
// "id" est gardé pour les clients qui le lisent directement dans le payload.
type UserClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

type JWTProvider struct {
	secret []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

// NewJWTProvider signe en HS256 avec un secret partagé.
func NewJWTProvider(secret, issuer string, expiry time.Duration) (*JWTProvider, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if expiry <= 0 {
		return nil, errors.New("jwt expiry must be positive")
	}
	return &JWTProvider{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

func (j *JWTProvider) TTL() time.Duration { return j.expiry }

// Generate crée un access token pour user.
func (j *JWTProvider) Generate(user *domain.User) (string, ports.TokenClaims, error) {
	now := j.now()
	exp := now.Add(j.expiry)

	claims := UserClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   user.ID,
			ID:        uuid.NewString(), // JTI unique : clé de révocation
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", ports.TokenClaims{}, fmt.Errorf("sign token: %w", err)
	}

	return token, ports.TokenClaims{
		UserID:    user.ID,
		TokenID:   claims.ID,
		ExpiresAt: exp.Truncate(time.Second),
	}, nil
}

// Validate vérifie la signature, l'algorithme, l'émetteur et l'expiration.
func (j *JWTProvider) Validate(tokenString string) (*ports.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (any, error) {
		// Empêche les attaques où l'attaquant force l'algo à "none" ou RS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, opts...)
	if err != nil {
		return nil, err // Token expiré ou signature invalide
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	userID := claims.Subject
	if userID == "" {
		userID = claims.UserID
	}
	if userID == "" || claims.ID == "" {
		return nil, errors.New("token is missing subject or id")
	}

	return &ports.TokenClaims{
		UserID:    userID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
