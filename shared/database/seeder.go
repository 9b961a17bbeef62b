package database

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"expoboard-backend/shared/config"
	"expoboard-backend/shared/database/models"
	utils "expoboard-backend/shared/utils/auth"
)

// SeedDatabase seeds the database with initial data
func SeedDatabase() error {
	log.Println("🌱 Checking database seed data...")

	settingsCreated, err := seedSystemSettings()
	if err != nil {
		return err
	}

	if settingsCreated > 0 {
		log.Printf("✅ Database seeding completed (%d system settings created)", settingsCreated)
	} else {
		log.Println("✅ Database seed data is up to date")
	}

	// Create super admin from config
	if err := CreateSuperAdminFromConfig(); err != nil {
		return err
	}

	return nil
}

// seedSystemSettings creates default system settings
func seedSystemSettings() (int, error) {
	settings := []models.SystemSetting{
		{Key: models.SettingMaintenanceMode, Value: "false"},
	}

	created := 0
	for _, setting := range settings {
		var existing models.SystemSetting
		err := DB.Where("key = ?", setting.Key).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := DB.Create(&setting).Error; err != nil {
				return created, err
			}
			created++
		} else if err != nil {
			return created, err
		}
	}

	return created, nil
}

// CreateSuperAdminFromConfig creates the super admin profile if it does not exist
func CreateSuperAdminFromConfig() error {
	cfg := config.GetConfig()

	var existing models.Profile
	err := DB.Where("email = ?", cfg.SuperAdminEmail).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashedPassword, err := utils.HashPassword(cfg.SuperAdminPassword)
	if err != nil {
		return err
	}

	admin := models.Profile{
		Email:       cfg.SuperAdminEmail,
		Password:    hashedPassword,
		Role:        models.RoleAdmin,
		DisplayName: "Super Admin",
	}

	if err := DB.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Super admin created: %s", cfg.SuperAdminEmail)
	return nil
}
