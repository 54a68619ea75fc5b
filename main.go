package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"microfin-service/internal/database"
	"microfin-service/internal/handlers"
	"microfin-service/internal/middleware"
	"microfin-service/internal/services"
	"microfin-service/internal/worker"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found in current directory, trying parent")
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found, using system environment variables")
		}
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}

	// Initialize Database
	database.Connect()
	database.Migrate()
	database.Seed()
	db := database.DB

	// Init Services
	clientService := services.NewClientService(db)
	transactionService := services.NewTransactionService(db)
	configService := services.NewCommissionConfigService(db)
	commissionService := services.NewCommissionService(db, configService)

	// Redis/Asynq Client
	redisAddr := os.Getenv("REDIS_URL")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer asynqClient.Close()

	// Handlers
	authHandler := handlers.NewAuthHandler(db)
	clientHandler := handlers.NewClientHandler(clientService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	commissionHandler := handlers.NewCommissionHandler(commissionService, configService, asynqClient)

	// Initialize Gin
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Microfin back-office service",
		})
	})

	r.POST("/auth/login", authHandler.Login)
	r.POST("/auth/logout", authHandler.Logout)

	api := r.Group("/", middleware.RequireAuth())

	api.POST("/clients", clientHandler.Create)
	api.GET("/clients", clientHandler.List)
	api.GET("/clients/generate-matricule", clientHandler.GenerateMatricule)
	api.POST("/clients/batch-upload", clientHandler.BatchUpload)
	api.GET("/clients/:id", clientHandler.Get)
	api.PUT("/clients/:id", clientHandler.Update)
	api.DELETE("/clients/:id", clientHandler.Delete)

	api.POST("/transactions", transactionHandler.Create)
	api.GET("/transactions", transactionHandler.List)
	api.DELETE("/transactions/:id", transactionHandler.Delete)

	api.POST("/commissions/calculate", commissionHandler.Calculate)
	api.POST("/commissions/calculate-async", commissionHandler.CalculateAsync)
	api.GET("/commissions", commissionHandler.List)
	api.GET("/commissions/summary", commissionHandler.Summary)
	api.GET("/commissions/config", commissionHandler.GetConfig)
	api.PUT("/commissions/config", commissionHandler.PutConfig)

	// Monthly commission run, enqueued for the worker
	commissionService.StartScheduler(asynqClient, func(mois, annee int, clientIDs []uint) (*asynq.Task, error) {
		task, _, err := worker.NewCalculatePeriodTask(mois, annee, clientIDs)
		return task, err
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("HTTP Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
