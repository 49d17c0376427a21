package common

import (
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func ConnectDb(dbFile string) (*gorm.DB, error) {
	log.Println("attemptConnectDb: sqlite db:", dbFile)

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Println("Error opening sqlite db: " + err.Error())
		return nil, err
	}
	log.Println("opened sqlite db at:", dbFile)
	return db, nil
}
