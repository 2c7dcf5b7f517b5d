// Package database opens the SQLite store shared by the server and the CLI.
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/axellelanca/clicktrail/internal/models"
)

// pragmas are appended to plain file names. Concurrent writers wait up to 5s on the lock.
const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Open connects to the SQLite database at name and applies the pool limit.
func Open(name string, maxOpenConns int) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn(name)), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}
	return db, nil
}

// OpenMemory opens a private in-memory database, mostly for tests. A single
// connection keeps every query on the same memory database.
func OpenMemory(name string) (*gorm.DB, error) {
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), 1)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the links and clicks tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Link{}, &models.Click{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dsn(name string) string {
	if strings.HasPrefix(name, "file:") || strings.Contains(name, "_pragma=") {
		return name
	}
	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return name + sep + pragmas
}
