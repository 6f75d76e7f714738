package models

import (
	"log"

	"github.com/mittera/rolltrack_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Roll{},
		&Movement{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
