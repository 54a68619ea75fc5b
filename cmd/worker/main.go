package main

import (
	"log"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"microfin-service/internal/database"
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

	// Initialize Database
	database.Connect()
	db := database.DB

	configService := services.NewCommissionConfigService(db)
	commissionService := services.NewCommissionService(db, configService)

	redisAddr := os.Getenv("REDIS_URL")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	log.Println("Commission worker starting...")
	worker.StartWorker(asynq.RedisClientOpt{Addr: redisAddr}, commissionService)
}
