package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avelez/gametracker/backend/internal/auth"
	"github.com/avelez/gametracker/backend/internal/catalog"
	"github.com/avelez/gametracker/backend/internal/config"
	"github.com/avelez/gametracker/backend/internal/library"
	"github.com/avelez/gametracker/backend/internal/middleware"
	"github.com/avelez/gametracker/backend/internal/reviews"
	"github.com/avelez/gametracker/backend/internal/store"
)

func main() {
	godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatalf("postgres migrate: %v", err)
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer mongoClient.Disconnect(ctx)
	mongoDB := mongoClient.Database(cfg.MongoDB)
	mongoStore := store.NewMongoStore(mongoDB)
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		log.Fatalf("mongo indexes: %v", err)
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connect: %v", err)
	}
	defer rdb.Close()
	sessions := auth.NewSessionStore(rdb)

	// ── MinIO ────────────────────────────────────────────────
	covers, err := store.NewCoverStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatalf("minio connect: %v", err)
	}

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(pgStore, sessions)
	catalogHandler := catalog.NewHandler(mongoStore, mongoStore, covers)
	libraryService := library.NewService(mongoStore, mongoStore, mongoStore)
	libraryHandler := library.NewHandler(libraryService, mongoStore, mongoStore)
	reviewHandler := reviews.NewHandler(mongoStore, mongoStore)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAuth := middleware.RequireAuth(sessions)

	// Health check
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	})

	// Auth routes
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/me", authHandler.Me)
		r.With(requireAuth).Patch("/me", authHandler.UpdateProfile)
		r.With(requireAuth).Post("/change-password", authHandler.ChangePassword)
	})

	// Catalog routes
	r.Route("/api/games", func(r chi.Router) {
		r.Get("/", catalogHandler.List)
		r.Get("/autocomplete", catalogHandler.Autocomplete)
		r.Get("/{id}", catalogHandler.Get)
		r.Get("/{id}/cover", catalogHandler.GetCover)
		r.With(requireAuth).Post("/", catalogHandler.Create)
		r.With(requireAuth).Patch("/{id}", catalogHandler.Update)
		r.With(requireAuth).Delete("/{id}", catalogHandler.Delete)
		r.With(requireAuth).Post("/{id}/cover", catalogHandler.UploadCover)
	})

	// Library routes
	r.Route("/api/userGames", func(r chi.Router) {
		r.Get("/", libraryHandler.GetLibrary)
		r.Get("/stats", libraryHandler.GetStats)
		r.With(requireAuth).Post("/", libraryHandler.Add)
		r.With(requireAuth).Patch("/{id}", libraryHandler.Update)
		r.With(requireAuth).Delete("/{id}", libraryHandler.Delete)
	})

	// Review routes
	r.Route("/api/reviews", func(r chi.Router) {
		r.Get("/", reviewHandler.List)
		r.With(requireAuth).Post("/", reviewHandler.Create)
		r.With(requireAuth).Patch("/{id}", reviewHandler.Update)
		r.With(requireAuth).Delete("/{id}", reviewHandler.Delete)
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("Backend listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
