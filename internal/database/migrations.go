package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/feelize/platform/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.IdentityRevocation{},
		&models.Affiliate{},
		&models.Referral{},
		&models.Project{},
		&models.Task{},
		&models.Message{},
		&models.Activity{},
		&models.Meeting{},
		&models.Engineer{},
	)
}

// SeedOptions controls start-up data provisioning.
type SeedOptions struct {
	// AdminEmails are guaranteed to exist with the admin access level.
	AdminEmails []string
}

// SeedData provisions the configured administrator accounts. Existing users are promoted,
// missing ones are created as shadow users that bind to an identity on first login.
func SeedData(db *gorm.DB, opts SeedOptions) error {
	for _, raw := range opts.AdminEmails {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" {
			continue
		}

		var user models.User
		err := db.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{Email: email, AccessLevel: models.AccessAdmin}
			if err := db.Create(&user).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case user.AccessLevel != models.AccessAdmin:
			if err := db.Model(&user).Update("access_level", models.AccessAdmin).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
