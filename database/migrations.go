package database

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"captain/models"
)

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Page{},
		&models.Tag{},
		&models.MenuItem{},
		&models.Media{},
		&models.Settings{},
	)

	if err != nil {
		log.Printf("Error running migrations: %v", err)
		return err
	}

	if err := seedSettings(db); err != nil {
		log.Printf("Error seeding settings: %v", err)
		return err
	}

	log.Println("Migrations completed successfully")
	return nil
}

// seedSettings creates the settings row on first start.
func seedSettings(db *gorm.DB) error {
	var settings models.Settings
	err := db.First(&settings).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return db.Create(&models.Settings{
		Title:        "Captain",
		Subtitle:     "A blog",
		Timezone:     "UTC",
		Theme:        "default",
		PostsPerPage: 10,
	}).Error
}
