package db

import (
	"fmt"

	"github.com/aiforge/aiforge/internal/models"
	"gorm.io/gorm"
)

// Migrate applies schema migrations for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.ProviderCredential{},
		&models.Usage{},
		&models.Project{},
		&models.Reminder{},
		&models.Notification{},
		&models.CalendarEvent{},
	)
}
