package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

type stubAuthenticator map[string]string

func (s stubAuthenticator) Authenticate(ctx context.Context, token string) (*ports.Identity, error) {
	if uid, ok := s[token]; ok {
		return &ports.Identity{UserID: uid, TokenID: "jti-" + uid, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	return nil, domain.ErrInvalidToken
}

func newRouter(protected bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// Rendu minimal des erreurs poussées par le middleware
	r.Use(func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 && !c.Writer.Written() {
			c.String(http.StatusUnauthorized, c.Errors.Last().Error())
		}
	})
	r.Use(Middleware(stubAuthenticator{"good": "u1"}))
	if protected {
		r.Use(RequireAuth())
	}
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, "user=%s", UserID(c.Request.Context()))
	})
	return r
}

func call(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	w := call(newRouter(false), "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user=u1", w.Body.String())
}

func TestMiddlewareLetsAnonymousThrough(t *testing.T) {
	w := call(newRouter(false), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user=", w.Body.String())
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	for _, header := range []string{"Bearer bad", "Basic abc", "Bearer "} {
		w := call(newRouter(false), header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestRequireAuth(t *testing.T) {
	w := call(newRouter(true), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrMissingToken.Error(), w.Body.String())

	w = call(newRouter(true), "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestForContext(t *testing.T) {
	assert.Nil(t, ForContext(context.Background()))
	assert.Empty(t, UserID(context.Background()))

	ctx := WithIdentity(context.Background(), &ports.Identity{UserID: "u2"})
	assert.Equal(t, "u2", UserID(ctx))
	assert.False(t, errors.Is(ErrMissingToken, domain.ErrInvalidToken))
}
