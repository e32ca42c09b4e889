package db

import (
	"fmt"
	"task-server/entities"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN is a private in-memory SQLite database. It lives exactly as long
// as the single pooled connection, which is never recycled.
const MemoryDSN = ":memory:"

func Connect(dsn string, log zerolog.Logger) (Database, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}

	log.Info().Str("dsn", dsn).Msg("opening user database")

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Every new connection to :memory: would see an empty database.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.AutoMigrate(&entities.User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info().Msg("user database ready")

	return &GormDatabase{DB: db}, nil
}
