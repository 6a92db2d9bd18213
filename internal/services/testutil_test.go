package services

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sagarchada-pai/task-management-system/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// A second connection would see its own empty :memory: database.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.Comment{},
		&models.Token{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{
		Email:          email,
		HashedPassword: "not-a-real-hash",
		FullName:       "Test User",
		IsActive:       true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestProject(t *testing.T, db *gorm.DB, ownerID uint, name string) models.Project {
	t.Helper()
	project := models.Project{
		Name:    name,
		OwnerID: ownerID,
	}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return project
}

func createTestTask(t *testing.T, db *gorm.DB, projectID, createdBy uint, title string) models.Task {
	t.Helper()
	task := models.Task{
		Title:     title,
		Status:    models.StatusTodo,
		ProjectID: projectID,
		CreatedBy: createdBy,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}
	return task
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}

func uniqueEmail(i int) string {
	return fmt.Sprintf("user%d@example.com", i)
}
