package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	// Stores
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	// Interne
	"github.com/jupiterclapton/cenackle/services/social-service/config"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/primary/rest"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/security"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/adapters/secondary/session"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/ports"
	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/services"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	// 1. Charger la Config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger (slog JSON pour la prod, Text pour le dev)
	initLogger(cfg)
	slog.Info("🚀 Starting Social Service", "env", cfg.Env, "port", cfg.HTTPPort, "store", cfg.StoreDriver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (OpenTelemetry), désactivé si pas d'endpoint
	var tp *sdktrace.TracerProvider
	if cfg.OtelEndpoint != "" {
		tp, err = initTracer(ctx, cfg)
		if err != nil {
			slog.Error("Failed to init tracer", "error", err)
		}
	}

	// 4. Infrastructure : Store (Mongo / Postgres / Mémoire)
	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Unable to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Store ready", "driver", cfg.StoreDriver)

	// 5. Infrastructure : Révocation des tokens (Redis si configuré)
	denylist, rdb, err := openDenylist(ctx, cfg)
	if err != nil {
		slog.Error("Failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	// 6. Sécurité (JWT HS256 & bcrypt)
	jwtProvider, err := security.NewJWTProvider(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		slog.Error("Failed to init JWT provider", "error", err)
		os.Exit(1)
	}
	hasher := security.NewBcryptHasher(cfg.BcryptCost)

	// 7. Wiring (Injection de dépendances) - Adapters -> Services -> HTTP
	identityService := services.NewIdentityService(store.Users(), hasher, jwtProvider, denylist)
	graphService := services.NewGraphService(store.Users())
	postService := services.NewPostService(store.Posts(), store.Users())

	opts := rest.Options{
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	handler := rest.NewHandler(identityService, graphService, postService, store, opts)

	// 8. Serveur HTTP
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           rest.HTTPHandler(handler.Router(), opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("📡 HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// 9. Graceful Shutdown (Attente des signaux OS)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("🛑 Shutting down server...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		slog.Error("Error closing store", "error", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("Error closing Redis", "error", err)
		}
	}
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down tracer", "error", err)
		}
	}

	slog.Info("👋 Server exited")
}

// --- HELPERS ---

func openStore(ctx context.Context, cfg *config.Config) (ports.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StorePostgres:
		dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
		if err != nil {
			return nil, fmt.Errorf("parse db config: %w", err)
		}
		// Tracer OpenTelemetry injecté dans chaque connexion
		dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

		pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		// Fail Fast
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database ping: %w", err)
		}

		store := repository.NewPostgresStore(pool)
		if err := store.Migrate(); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}

		store := repository.NewMongoStore(client, cfg.MongoDB)
		if err := store.Ping(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo ping: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return store, nil

	default:
		slog.Warn("⚠️ Using in-memory store: data is lost on restart")
		return repository.NewMemoryStore(), nil
	}
}

func openDenylist(ctx context.Context, cfg *config.Config) (ports.TokenDenylist, *redis.Client, error) {
	if cfg.RedisAddr == "" {
		slog.Warn("⚠️ REDIS_ADDR empty: token revocation kept in memory")
		return session.NewMemoryDenylist(), nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		slog.Error("Failed to instrument Redis", "error", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}

	slog.Info("✅ Redis connected")
	return session.NewRedisDenylist(rdb), rdb, nil
}

func initLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Env == "local" {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Env == "local" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OtelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, _ := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}
