package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm/logger"

	"github.com/sagarchada-pai/task-management-system/internal/config"
	"github.com/sagarchada-pai/task-management-system/internal/database"
	"github.com/sagarchada-pai/task-management-system/internal/handlers"
	"github.com/sagarchada-pai/task-management-system/internal/middleware"
	"github.com/sagarchada-pai/task-management-system/internal/monitoring"
	"github.com/sagarchada-pai/task-management-system/internal/repositories"
	"github.com/sagarchada-pai/task-management-system/internal/services"
)

type Application struct {
	Config *config.Config
	DB     *database.Pool
	Redis  *redis.Client
	Router *gin.Engine
	Server *http.Server

	AuthService     services.AuthService
	RegisterService services.RegisterService
	UserService     services.UserService
	ProjectService  services.ProjectService
	TaskService     services.TaskService
	CommentService  services.CommentService
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	app.setupRoutes()
	app.startServer()
}

func initializeApplication(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}

	log.Printf("starting task management system (%s)", cfg.Server.Environment)

	logLevel := logger.Warn
	if !cfg.IsProduction() {
		logLevel = logger.Info
	}
	pool, err := database.NewPool(cfg.Database, logLevel)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	app.DB = pool
	log.Println("database connected")

	migrationConfig := &repositories.MigrationConfig{
		MigrationsPath: cfg.Database.MigrationsPath,
		DBName:         cfg.Database.Name,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
	if err := repositories.RunMigrations(pool.DB, migrationConfig); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable: %v (falling back to in-memory rate limiting)", err)
		} else {
			app.Redis = redisClient
			log.Println("redis connected")
		}
	}

	app.AuthService = services.NewAuthService(cfg.JWT)
	app.RegisterService = services.NewRegisterService()
	app.UserService = services.NewUserService()
	app.ProjectService = services.NewProjectService()
	app.TaskService = services.NewTaskService()
	app.CommentService = services.NewCommentService()

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		return app.DB.Health()
	})
	if app.Redis != nil {
		monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}

	return app, nil
}

func (app *Application) setupRoutes() {
	r := gin.New()

	r.Use(gin.Logger())
	r.Use(middleware.RecoveryWithLog())
	r.Use(middleware.SecureHeader())
	r.Use(monitoring.MetricsMiddleware())

	// Rate limiting: one shared budget per client across instances when
	// Redis is available, a per-instance token bucket otherwise.
	if app.Redis != nil {
		limiter := middleware.NewDistributedRateLimiter(app.Redis)
		r.Use(limiter.Middleware("api", middleware.RateLimit{
			Rate:    app.Config.RateLimit.RequestsPerMin,
			Window:  time.Minute,
			KeyFunc: middleware.IPKeyFunc,
		}))
	} else {
		limit := rate.Limit(float64(app.Config.RateLimit.RequestsPerMin) / 60.0)
		r.Use(middleware.RateLimiter(limit, app.Config.RateLimit.BurstSize))
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     app.Config.CORS.Origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", monitoring.HealthHandler())
	r.GET("/ready", monitoring.ReadinessHandler())
	r.GET("/live", monitoring.LivenessHandler())
	r.GET("/metrics", monitoring.MetricsHandler())

	v1 := r.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	{
		authHandler := handlers.NewAuthHandler(app.DB.DB, app.AuthService)
		registerHandler := handlers.NewRegisterHandler(app.DB.DB, app.RegisterService)

		authRoutes.POST("/register", registerHandler.Registration)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.Refresh)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(app.DB.DB, middleware.AuthConfig{Secret: app.Config.JWT.Secret}))
	{
		projectHandler := handlers.NewProjectHandler(app.DB.DB, app.ProjectService)
		projectRoutes := protected.Group("/projects")
		{
			projectRoutes.GET("", projectHandler.GetProjects)
			projectRoutes.POST("", projectHandler.CreateProject)
			projectRoutes.GET("/:id", projectHandler.GetProjectByID)
			projectRoutes.PUT("/:id", projectHandler.UpdateProject)
			projectRoutes.DELETE("/:id", projectHandler.DeleteProject)
		}

		taskHandler := handlers.NewTaskHandler(app.DB.DB, app.TaskService, app.CommentService)
		taskRoutes := protected.Group("/tasks")
		{
			taskRoutes.GET("", taskHandler.GetTasks)
			taskRoutes.POST("", taskHandler.CreateTask)
			taskRoutes.GET("/:id", taskHandler.GetTaskByID)
			taskRoutes.PUT("/:id", taskHandler.UpdateTask)
			taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
			taskRoutes.POST("/:id/comments", taskHandler.CreateComment)
			taskRoutes.GET("/:id/comments", taskHandler.GetComments)
		}

		userHandler := handlers.NewUserHandler(app.DB.DB, app.UserService)
		userRoutes := protected.Group("/users")
		{
			userRoutes.GET("/me", userHandler.GetProfile)
			userRoutes.PUT("/me", userHandler.UpdateProfile)
			userRoutes.GET("", middleware.RequireSuperuser(), userHandler.GetUsers)
		}
	}

	app.Router = r
}

func (app *Application) startServer() {
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.Server.Shutdown(ctx); err != nil {
			log.Printf("server forced to shutdown: %v", err)
		}

		app.cleanup()
	}()

	log.Printf("server listening on %s", addr)
	if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed to start: %v", err)
	}
}

func (app *Application) cleanup() {
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			log.Printf("error closing database: %v", err)
		}
	}
	log.Println("server stopped")
}
