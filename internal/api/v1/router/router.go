package router

import (
	"context"
	"net/http"
	"strings"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/mongodb"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *mongo.Client, error) {
	logger.Info().Msg("Router initialized")
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	// 1. Open MongoDB connection (connection pooling)
	client, err := mongodb.Connect(context.Background(), cfg.MongoURI)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to MongoDB")
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")
	db := client.Database(cfg.MongoDatabase)

	// 2. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 3. Initialize repositories & services & handlers
	userRepo := repository.NewUserRepo(db)
	subRepo := repository.NewSubscriptionRepo(db)
	deletedRepo := repository.NewDeletedUserRepo(db)
	sessionRepo := repository.NewSessionRepo(db)

	userSvc := service.NewUserService(userRepo, subRepo, deletedRepo, logger)
	subSvc := service.NewSubscriptionService(subRepo, userRepo, logger)
	stripeSvc := service.NewStripeService(cfg, userRepo, subSvc, logger)
	sessionSvc := service.NewSessionService(sessionRepo, userRepo, logger)

	clerkHandler, err := handler.NewClerkWebhookHandler(userSvc, cfg.ClerkWebhookSecret, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize Clerk webhook verifier")
		return nil, nil, err
	}
	userHandler := handler.NewUserHandler(userSvc, validate)
	subHandler := handler.NewSubscriptionHandler(stripeSvc, subSvc, validate, logger)
	sessionHandler := handler.NewSessionHandler(sessionSvc, validate)
	adminHandler := handler.NewAdminHandler(userSvc, logger)

	// 4. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.ClerkJWTKey)
	adminMiddleware := middleware.AdminMiddleware(cfg.AdminUserIDs, logger)

	// 5. Create ServeMux router
	mux := http.NewServeMux()

	// Create a subrouter for API v1 with the /v1 prefix
	apiV1Mux := http.NewServeMux()
	clerkHandler.RegisterRoutes(apiV1Mux)
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	subHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	sessionHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	adminHandler.RegisterRoutes(apiV1Mux, authMiddleware, adminMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// 6. Apply CORS middleware
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), client, nil
}
