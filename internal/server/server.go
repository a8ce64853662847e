// Package server contains the HTTP handlers for the feed API.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	_ "snapfeed/docs" // swagger docs
	"snapfeed/internal/broker"
	"snapfeed/internal/cache"
	"snapfeed/internal/config"
	"snapfeed/internal/database"
	"snapfeed/internal/featureflags"
	"snapfeed/internal/firebaseapp"
	"snapfeed/internal/identity"
	"snapfeed/internal/ingest"
	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/repository"
	"snapfeed/internal/search"
	"snapfeed/internal/service"
	"snapfeed/internal/storage"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already-initialized collaborators of a Server.
type Deps struct {
	DB        *gorm.DB
	Firestore *firestore.Client
	Redis     *redis.Client
	Posts     repository.PostRepository
	Comments  repository.CommentRepository
	Verifier  identity.Verifier
	Uploader  storage.Uploader
	Meili     *search.Meili
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	firestore      *firestore.Client
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	verifier       identity.Verifier
	minter         *identity.JWT
	broker         *broker.Broker
	pipeline       *ingest.Pipeline
	meili          *search.Meili
	featureFlags   *featureflags.Manager
	postService    *service.PostService
}

// NewServer creates a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	deps := Deps{}

	var fbApp *firebase.App
	if cfg.StoreDriver == config.StoreFirestore || cfg.IdentityProvider == config.IdentityFirebase {
		app, err := firebaseapp.New(ctx, firebaseapp.Options{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		fbApp = app
	}

	if cfg.StoreDriver == config.StoreFirestore {
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		deps.Firestore = client
		deps.Posts = repository.NewFirestorePostRepository(client)
		deps.Comments = repository.NewFirestoreCommentRepository(client)
	} else {
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		deps.DB = db
		deps.Posts = repository.NewPostRepository(db)
		deps.Comments = repository.NewCommentRepository(db)
	}

	cache.InitRedis(cfg.RedisURL)
	deps.Redis = cache.GetClient()

	if cfg.IdentityProvider == config.IdentityFirebase {
		v, err := identity.NewFirebaseFromApp(ctx, fbApp)
		if err != nil {
			return nil, err
		}
		deps.Verifier = v
	} else {
		deps.Verifier = identity.NewJWT(cfg.JWTSecret, identity.DefaultTokenTTL)
	}

	if cfg.StorageDriver == config.StorageMinio {
		up, err := storage.NewMinio(ctx, storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioBaseURL(),
		})
		if err != nil {
			return nil, err
		}
		deps.Uploader = up
	} else {
		deps.Uploader = storage.NewCloudinary(cfg.CloudinaryUploadURL, nil)
	}

	if cfg.MeiliURL != "" {
		deps.Meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
	}

	return NewServerWithDeps(cfg, deps)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes the store and cache.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Posts == nil || deps.Comments == nil {
		return nil, fmt.Errorf("post and comment repositories are required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("identity verifier is required")
	}

	// Initialize Prometheus metrics
	prom := middleware.InitMetrics("snapfeed-api")

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		firestore:      deps.Firestore,
		redis:          deps.Redis,
		promMiddleware: prom,
		verifier:       deps.Verifier,
		meili:          deps.Meili,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	if j, ok := deps.Verifier.(*identity.JWT); ok {
		s.minter = j
	}

	// Search is public, so the flag is evaluated once for the anonymous caller.
	var index search.Index
	if deps.Meili != nil && s.featureFlags.Enabled(featureflags.CaptionSearch, "") {
		index = deps.Meili
	}
	searchService := search.NewService(index, deps.Posts)
	s.postService = service.NewPostService(deps.Posts, deps.Comments, searchService,
		service.WithObjectOrigins(cfg.ObjectOrigins()...))

	s.broker = broker.New(deps.Verifier, brokerCredentials(cfg))

	uploader := deps.Uploader
	if uploader == nil {
		uploader = storage.NewCloudinary(cfg.CloudinaryUploadURL, nil)
	}
	s.pipeline = ingest.New(s.broker, uploader, s.postService,
		ingest.WithDelay(cfg.UploadDelay()),
		ingest.WithReload(s.postService.Reload),
	)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS must run before anything that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// The broker checks credentials itself so configuration gaps surface before auth.
	api.Post("/uploads/signature", middleware.RateLimit(
		s.redis, 60, time.Minute, "upload_signature"), s.IssueUploadSignature)

	// Public post routes (browse/search)
	publicPosts := api.Group("/posts")
	publicPosts.Get("/", s.GetPosts)
	publicPosts.Get("/search", middleware.RateLimit(
		s.redis, 30, time.Minute, "search"), s.SearchPosts)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	publicPosts.Get("/:id/comments", s.GetComments)
	publicPosts.Get("/:id/download", s.DownloadPost)
	publicPosts.Get("/:id", s.GetPost)

	// Protected routes
	protected := api.Group("", s.AuthRequired())
	protected.Get("/feature-flags", s.GetFeatureFlags)

	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 30, time.Minute, "create_post"), s.CreatePost)
	posts.Post("/upload", middleware.RateLimit(
		s.redis, 10, time.Minute, "upload_post"), s.UploadPost)
	posts.Post("/:id/comments", middleware.RateLimit(
		s.redis, 20, time.Minute, "create_comment"), s.CreateComment)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. The cache is optional; only
// the feed store decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	switch {
	case s.db != nil:
		sqlDB, err := s.db.DB()
		if err != nil {
			storeStatus = "unhealthy"
		} else if err := sqlDB.PingContext(ctx); err != nil {
			storeStatus = "unhealthy"
		}
	case s.firestore == nil:
		storeStatus = "external"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	searchStatus := "disabled"
	if s.meili != nil {
		searchStatus = "unhealthy"
		if s.meili.Healthy() {
			searchStatus = "healthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if storeStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"store":  storeStatus,
			"redis":  redisStatus,
			"search": searchStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware. It stores the verified
// identity, its user ID and the raw token in locals.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := identity.BearerToken(c.Get("Authorization"))
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError())
		}

		id, err := s.verifier.Verify(c.UserContext(), token)
		if err != nil || id == nil || id.UserID == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		c.Locals("userID", id.UserID)
		c.Locals("identity", id)
		c.Locals("token", token)
		// Sync to UserContext for logging and downstream services
		c.SetUserContext(middleware.WithUserID(c.UserContext(), id.UserID))

		return c.Next()
	}
}

// App builds the Fiber app with middleware and routes.
func (s *Server) App() *fiber.App {
	maxBody := (s.config.UploadMaxFiles*s.config.UploadMaxSizeMB + 1) * 1024 * 1024
	app := fiber.New(fiber.Config{
		AppName:   "Snapfeed API",
		BodyLimit: maxBody,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "Unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.App()
	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if s.meili != nil {
		s.meili.Close()
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				log.Printf("error closing sql DB: %v", cerr)
			}
		}
	}

	if s.firestore != nil {
		if ferr := s.firestore.Close(); ferr != nil {
			log.Printf("error closing firestore: %v", ferr)
		}
	}

	cache.Close()

	log.Println("Server shutdown complete")
	return nil
}

// brokerCredentials picks the account tickets are signed with for the active
// storage driver. For MinIO the bucket stands in for the cloud name.
func brokerCredentials(cfg *config.Config) broker.Credentials {
	if cfg.StorageDriver == config.StorageMinio {
		return broker.Credentials{
			CloudName: cfg.MinioBucket,
			APIKey:    cfg.MinioAccessKey,
			APISecret: cfg.MinioSecretKey,
		}
	}
	return broker.Credentials{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
	}
}
