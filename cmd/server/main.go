package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hkaraki/herfa/internal/api"
	"github.com/hkaraki/herfa/internal/config"
	"github.com/hkaraki/herfa/internal/db"
	"github.com/hkaraki/herfa/internal/middleware"
	"github.com/hkaraki/herfa/internal/observ"
	"github.com/hkaraki/herfa/internal/repository/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no request deadline; connecting takes as long as it takes.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	relationshipRepo := postgres.NewRelationshipStore(pool)
	conversationRepo := postgres.NewConversationStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	api.RegisterValidations()

	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())
	srv.Use(middleware.CORS(cfg.AllowedOrigins))

	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, cfg.TokenTTL, logger)
	userHandler := api.NewUserHandler(userRepo, logger)
	managedHandler := api.NewManagedHandler(userRepo, relationshipRepo, logger)
	messageHandler := api.NewMessageHandler(userRepo, conversationRepo, messageRepo, logger)

	// Health check stays public so load balancers can reach it.
	srv.GET("/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	root := srv.Group("/api")

	authGroup := root.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/verify", authHandler.Verify)
	}

	authed := root.Group("")
	authed.Use(middleware.AuthMiddleware(cfg.JWTSecret, userRepo))

	users := authed.Group("/users")
	{
		users.GET("/specialists", userHandler.ListSpecialists)
		users.GET("/clients", userHandler.ListClients)
		users.PUT("/availability", userHandler.UpdateAvailability)
		users.PATCH("/needed-specialists", userHandler.UpdateNeededSpecialists)
	}

	managed := authed.Group("/managed")
	{
		managed.POST("/specialists", managedHandler.AddSpecialist)
		managed.GET("/specialists", managedHandler.ListSpecialists)
		managed.DELETE("/specialists/:id", managedHandler.RemoveSpecialist)
		managed.PATCH("/relationships/specialist/:id/status", managedHandler.UpdateSpecialistStatus)

		managed.POST("/clients", managedHandler.AddClient)
		managed.GET("/clients", managedHandler.ListClients)
		managed.DELETE("/clients/:id", managedHandler.RemoveClient)
		managed.PATCH("/relationships/client/:id/status", managedHandler.UpdateClientStatus)
	}

	messages := authed.Group("/messages")
	{
		messages.GET("/conversations", messageHandler.ListConversations)
		messages.POST("/conversation", messageHandler.CreateConversation)
		messages.GET("/conversation/:id", messageHandler.GetMessages)
		messages.PATCH("/conversation/:id/read", messageHandler.MarkConversationRead)
		messages.POST("", messageHandler.SendMessage)
		messages.PATCH("/:id/read", messageHandler.MarkMessageRead)
	}

	logger.Info("starting herfa API",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	if err := srv.Run(":" + cfg.Port); err != nil {
		return fmt.Errorf("run server: %w", err)
	}
	return nil
}
