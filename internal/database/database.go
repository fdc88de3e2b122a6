package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/huddle/server/internal/config"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/pkg/logger"
	"github.com/huddle/server/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig, admin config.AdminSeedConfig) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(cfg), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := seedAdminUser(db, admin); err != nil {
		return nil, err
	}

	return db, nil
}

func dialector(cfg config.DBConfig) gorm.Dialector {
	if cfg.Driver == "sqlite" {
		return sqlite.Open(cfg.SQLitePath)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
	return postgres.Open(dsn)
}

// Migrate creates or updates every table and upgrades event rows written in
// the flat-location shape.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	return upgradeEventSchema(db)
}

func upgradeEventSchema(db *gorm.DB) error {
	migrator := db.Migrator()
	if migrator.HasColumn(&models.Event{}, "location") {
		if err := db.Exec(
			"UPDATE events SET location_name = location WHERE location_name IS NULL OR location_name = ''",
		).Error; err != nil {
			return fmt.Errorf("copying legacy event locations: %w", err)
		}
		if err := db.Exec("ALTER TABLE events DROP COLUMN location").Error; err != nil {
			return fmt.Errorf("dropping legacy event location column: %w", err)
		}
	}

	result := db.Model(&models.Event{}).
		Where("schema_version < ?", models.EventSchemaVersion).
		Update("schema_version", models.EventSchemaVersion)
	if result.Error != nil {
		return fmt.Errorf("upgrading event schema version: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		logger.Info("event_schema_upgraded", map[string]interface{}{
			"rows":    result.RowsAffected,
			"version": models.EventSchemaVersion,
		})
	}
	return nil
}

func seedAdminUser(db *gorm.DB, cfg config.AdminSeedConfig) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	admin := models.User{
		Name:         "Platform Admin",
		Email:        strings.ToLower(strings.TrimSpace(cfg.Email)),
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	logger.Info("admin_user_seeded", map[string]interface{}{"email": admin.Email})
	return nil
}
