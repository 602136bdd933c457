package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var identityCtxKey = &contextKey{"identity"}

// ErrMissingToken : route protégée appelée sans header Authorization.
var ErrMissingToken = errors.New("missing bearer token")

// Authenticator est le sous-ensemble de l'IdentityService utile au middleware.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*ports.Identity, error)
}

// Middleware décode le header Authorization et valide le token.
// Sans header, la requête passe (routes publiques) ; RequireAuth fait le tri.
func Middleware(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		// 1. Pas de header ? On laisse passer
		if header == "" {
			c.Next()
			return
		}

		// 2. Validation du format "Bearer <token>"
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			_ = c.Error(domain.ErrInvalidToken)
			c.Abort()
			return
		}

		// 3. Signature + expiration + révocation
		id, err := authn.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		// 4. Succès : on injecte l'identité dans le contexte de la requête
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireAuth bloque (401) les requêtes sans identité vérifiée.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ForContext(c.Request.Context()) == nil {
			_ = c.Error(ErrMissingToken)
			c.Abort()
			return
		}
		c.Next()
	}
}

func WithIdentity(ctx context.Context, id *ports.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, id)
}

// ForContext renvoie l'identité vérifiée, nil si la requête est anonyme.
func ForContext(ctx context.Context) *ports.Identity {
	id, _ := ctx.Value(identityCtxKey).(*ports.Identity)
	return id
}

// UserID est un raccourci : "" si anonyme.
func UserID(ctx context.Context) string {
	if id := ForContext(ctx); id != nil {
		return id.UserID
	}
	return ""
}
