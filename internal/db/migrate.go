package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/worshipd/worshipd/internal/models"
)

// Migrate creates or updates the schema for every model.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Membership{},
		&models.Music{},
		&models.Setlist{},
		&models.SetlistEntry{},
		&models.Session{},
	)
}
