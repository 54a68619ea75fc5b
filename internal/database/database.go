package database

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"microfin-service/internal/models"
)

var DB *gorm.DB

func Connect() {
	var err error
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)

	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	log.Println("Database connection established")
}

func Migrate() {
	err := DB.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Transaction{},
		&models.CommissionTier{},
		&models.Commission{},
	)
	if err != nil {
		log.Fatal("Failed to migrate database: ", err)
	}
	log.Println("Database migration completed")
}

// Seed creates the admin account from ADMIN_USERNAME/ADMIN_PASSWORD and a
// default commission tier table when none exists yet. Existing rows are
// never overwritten.
func Seed() {
	if err := SeedDB(DB); err != nil {
		log.Fatal("Failed to seed database: ", err)
	}
}

func SeedDB(db *gorm.DB) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username != "" && password != "" {
		var count int64
		if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			if err := db.Create(&models.User{Username: username, Password: string(hash)}).Error; err != nil {
				return err
			}
			log.Printf("Seeded admin user %q", username)
		}
	}

	var tierCount int64
	if err := db.Model(&models.CommissionTier{}).Count(&tierCount).Error; err != nil {
		return err
	}
	if tierCount == 0 {
		if err := db.Create(DefaultTiers()).Error; err != nil {
			return err
		}
		log.Println("Seeded default commission tiers")
	}

	return nil
}

// DefaultTiers is the initial rate table: flat amounts per deposit bracket,
// open-ended above 500000.
func DefaultTiers() []models.CommissionTier {
	f := func(v float64) *float64 { return &v }
	return []models.CommissionTier{
		{Position: 1, MontantMin: 0, MontantMax: f(50000), Montant: f(1000)},
		{Position: 2, MontantMin: 50000, MontantMax: f(200000), Montant: f(2000)},
		{Position: 3, MontantMin: 200000, MontantMax: f(500000), Montant: f(4000)},
		{Position: 4, MontantMin: 500000, MontantMax: nil, Montant: f(7500)},
	}
}
