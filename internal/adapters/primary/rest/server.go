package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/auth"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
)

// Pinger : la dépendance minimale du healthcheck.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	ServiceName    string
	AllowedOrigins []string
	UploadDir      string
	MaxUploadBytes int64
}

type Handler struct {
	identity ports.IdentityService
	graph    ports.GraphService
	posts    ports.PostService
	health   Pinger
	uploads  *uploadStore
}

func NewHandler(identity ports.IdentityService, graph ports.GraphService, posts ports.PostService, health Pinger, opts Options) *Handler {
	return &Handler{
		identity: identity,
		graph:    graph,
		posts:    posts,
		health:   health,
		uploads:  newUploadStore(opts.UploadDir, opts.MaxUploadBytes),
	}
}

// Router monte toutes les routes sur un moteur gin "nu" (nos propres middlewares).
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(recovery(), requestLogger(), errorHandler(), auth.Middleware(h.identity))

	// Public
	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.GET("/posts", h.ListPosts) // identité optionnelle (filtrage privacy)
	r.GET("/user/:id", h.GetUser)
	r.GET("/user/:id/friends", h.ListFriends)
	r.GET("/healthz", h.Healthz)
	r.Static("/uploads", h.uploads.dir)

	// Authentifié
	priv := r.Group("/", auth.RequireAuth())
	priv.POST("/logout", h.Logout)
	priv.POST("/posts", h.CreatePost)
	priv.POST("/post/like", h.ToggleLike)
	priv.POST("/posts/:postId/comments", h.AddComment)
	priv.DELETE("/posts/:postId", h.DeletePost)
	priv.GET("/users", h.ListUsers)
	priv.POST("/add-friend", h.AddFriend)
	priv.PUT("/users/:id/profile-picture", h.UpdateProfilePicture)
	priv.POST("/uploads", h.Upload)

	return r
}

// HTTPHandler ajoute CORS puis OTEL (racine) autour du routeur.
func HTTPHandler(router http.Handler, opts Options) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "baggage", "traceparent"},
		AllowCredentials: true,
	})
	h := c.Handler(router)

	return otelhttp.NewHandler(h, opts.ServiceName, otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
