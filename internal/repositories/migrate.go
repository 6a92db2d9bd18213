package repositories

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"
)

type MigrationConfig struct {
	MigrationsPath string
	DBName         string
	MaxRetries     int
	RetryDelay     time.Duration
}

func DefaultMigrationConfig() *MigrationConfig {
	return &MigrationConfig{
		MigrationsPath: "file://migrations",
		DBName:         "task_manager",
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
}

// RunMigrations applies any pending SQL migrations at startup.
func RunMigrations(db *gorm.DB, config *MigrationConfig) error {
	if config == nil {
		config = DefaultMigrationConfig()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := waitForDatabase(sqlDB, config.MaxRetries, config.RetryDelay); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		DatabaseName:    config.DBName,
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(config.MigrationsPath, config.DBName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	err = m.Up()
	if err != nil {
		if err == migrate.ErrNoChange {
			log.Println("database schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	log.Printf("database migrated to version %d (dirty: %v)", version, dirty)

	return nil
}

func waitForDatabase(db *sql.DB, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := db.Ping(); err == nil {
			return nil
		}
		if i < maxRetries-1 {
			log.Printf("database not ready, retrying in %v (attempt %d/%d)", retryDelay, i+1, maxRetries)
			time.Sleep(retryDelay)
		}
	}
	return fmt.Errorf("database not ready after %d attempts", maxRetries)
}
