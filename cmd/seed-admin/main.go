// seed-admin creates or updates the shared warehouse login.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//   APP_USER=warehouse APP_PASS=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mittera/rolltrack_backend/config"
	"github.com/mittera/rolltrack_backend/models"
)

func main() {
	ctx := context.Background()

	username := os.Getenv("APP_USER")
	if username == "" {
		username = "warehouse"
	}
	password := os.Getenv("APP_PASS")
	if password == "" {
		fmt.Fprintln(os.Stderr, "APP_PASS is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	user, err := models.UpsertUser(ctx, username, "Warehouse", password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded login %q (id=%d)\n", user.Username, user.ID)
}
