package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cleaning-booking-server/models"
)

// Initialize opens the Postgres connection, configures the pool and runs
// migrations.
func Initialize(url string) (*gorm.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("DB_URL is required. Set DB_URL to a valid Postgres URL")
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("✅ Successfully connected to database")

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("✅ Database migrations completed successfully")

	if err := SeedRanks(db); err != nil {
		return nil, fmt.Errorf("failed to seed ranks: %w", err)
	}
	return db, nil
}

func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Rank{},
		&models.User{},
		&models.Address{},
		&models.Reservation{},
		&models.Chat{},
		&models.ChatMessage{},
		&models.Notification{},
		&models.RefreshToken{},
	); err != nil {
		return err
	}
	return migrateChatMessageOrdering(db)
}

// migrateChatMessageOrdering adds the composite index thread pages are
// read through.
func migrateChatMessageOrdering(db *gorm.DB) error {
	const index = "idx_chat_messages_chat_created"
	if db.Migrator().HasIndex(&models.ChatMessage{}, index) {
		return nil
	}
	if err := db.Exec("CREATE INDEX " + index + " ON chat_messages (chat_id, created_at DESC)").Error; err != nil {
		log.Printf("❌ Failed to create %s: %v", index, err)
		return err
	}
	log.Printf("✅ Created index %s", index)
	return nil
}
