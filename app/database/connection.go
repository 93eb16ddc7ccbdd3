package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"PosPrint/app/config"
	"PosPrint/app/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}

// buildPostgresDSN constructs the connection string from environment variables.
// Priority: DATABASE_URL > individual variables (DB_HOST, DB_PORT, etc.)
func buildPostgresDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		log.Printf("Using DATABASE_URL for database connection")
		return dsn
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		return "" // no postgres configured, caller falls back to sqlite
	}

	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")
	sslmode := os.Getenv("DB_SSLMODE")

	if port == "" {
		port = "5432"
	}
	if user == "" {
		user = "postgres"
	}
	if dbname == "" {
		dbname = "posprint"
	}
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	log.Printf("Built database connection: host=%s port=%s dbname=%s sslmode=%s",
		host, port, dbname, sslmode)

	return dsn
}

// sqlitePath resolves the local database file, creating its directory
func sqlitePath(cfg *config.AppConfig) string {
	dataPath := ""
	if cfg != nil {
		dataPath = cfg.System.DataPath
	}
	if dataPath == "" {
		dataPath = config.DefaultDataPath()
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		log.Printf("Warning: could not create data directory %s: %v", dataPath, err)
		dataPath = "."
	}
	return filepath.Join(dataPath, "posprint.db")
}

// Initialize sets up the database connection using environment variables only
func Initialize() error {
	return InitializeWithConfig(nil)
}

// InitializeWithConfig opens postgres when one is configured and falls back
// to a local sqlite file otherwise, then runs migrations and seeds
func InitializeWithConfig(cfg *config.AppConfig) error {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt: true,
	}

	var err error
	if dsn := buildPostgresDSN(); dsn != "" {
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Println("Connected to PostgreSQL database")
	} else {
		path := sqlitePath(cfg)
		db, err = gorm.Open(sqlite.Open(path), gormConfig)
		if err != nil {
			return fmt.Errorf("failed to open local database %s: %w", path, err)
		}
		log.Printf("Using local database at %s", path)
	}

	if err := Migrate(); err != nil {
		return err
	}
	if err := Seed(); err != nil {
		return err
	}

	return nil
}

// Migrate runs schema migrations for all models
func Migrate() error {
	err := db.AutoMigrate(
		&models.BusinessConfig{},
		&models.PrinterConfig{},
		&models.PrintJob{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Seed creates the default business identity on first run
func Seed() error {
	var count int64
	if err := db.Model(&models.BusinessConfig{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check business config: %w", err)
	}
	if count > 0 {
		return nil
	}

	business := models.BusinessConfig{
		Name:         "My Restaurant",
		TaxMode:      models.TaxModeSingle,
		ThankYouNote: "Thank you, visit again!",
	}
	if err := db.Create(&business).Error; err != nil {
		return fmt.Errorf("failed to seed business config: %w", err)
	}
	log.Println("Seeded default business configuration")
	return nil
}

// Close shuts down the underlying connection pool
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
