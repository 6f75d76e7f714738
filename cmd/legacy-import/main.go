// legacy-import is the one-time offline migration from the historical
// ad-hoc schema into the canonical one. The old database accumulated
// several column layouts over the years (movements timestamped in
// ts_utc or moved_at, rolls with nullable weight/location); the live
// application used to branch on whichever columns existed. That
// branching lives here now, runs once, and the server never sees a
// legacy layout.
//
// Usage:
//   LEGACY_DATABASE_URL=postgres://... DATABASE_URL=postgres://... \
//     go run ./cmd/legacy-import --dry-run
//   LEGACY_DATABASE_URL=postgres://... DATABASE_URL=postgres://... \
//     go run ./cmd/legacy-import --dry-run=false --confirm=IMPORT
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mittera/rolltrack_backend/config"
	"github.com/mittera/rolltrack_backend/models"
	"github.com/mittera/rolltrack_backend/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type legacyRoll struct {
	RollID    string `gorm:"column:roll_id"`
	PaperType string `gorm:"column:paper_type"`
	Weight    *int   `gorm:"column:weight"`
	Location  string `gorm:"column:location"`
	Warehouse string `gorm:"column:warehouse"`
}

type legacyMovement struct {
	RollID  string `gorm:"column:roll_id"`
	Action  string `gorm:"column:action"`
	FromWh  string `gorm:"column:from_wh"`
	ToWh    string `gorm:"column:to_wh"`
	FromLoc string `gorm:"column:from_loc"`
	ToLoc   string `gorm:"column:to_loc"`
	MovedAt string `gorm:"column:moved_at"`
}

func tableColumns(db *gorm.DB, table string) (map[string]bool, error) {
	var names []string
	err := db.Raw(
		"SELECT column_name FROM information_schema.columns WHERE table_name = ?",
		table,
	).Scan(&names).Error
	if err != nil {
		return nil, err
	}
	cols := make(map[string]bool, len(names))
	for _, n := range names {
		cols[n] = true
	}
	return cols, nil
}

// canonicalLocation maps a legacy (warehouse, location) pair. Legacy
// rows used warehouse='USED', location='USED' for spent rolls and kept
// the sub-location in "location" otherwise.
func canonicalLocation(warehouse, location string) (models.WarehouseCode, string, error) {
	wh, err := models.ParseWarehouseCode(warehouse)
	if err != nil {
		return "", "", fmt.Errorf("unknown legacy warehouse %q", warehouse)
	}
	if wh.IsTerminal() {
		return wh, "", nil
	}
	return wh, utils.Clean(location), nil
}

func main() {
	dryRun := flag.Bool("dry-run", true, "Show counts only (no writes)")
	confirm := flag.String("confirm", "", "Type IMPORT to proceed when dry-run=false")
	flag.Parse()

	if !*dryRun && strings.TrimSpace(*confirm) != "IMPORT" {
		fmt.Fprintln(os.Stderr, "set --confirm=IMPORT to proceed")
		os.Exit(1)
	}

	legacyDSN := strings.TrimSpace(os.Getenv("LEGACY_DATABASE_URL"))
	if legacyDSN == "" {
		fmt.Fprintln(os.Stderr, "LEGACY_DATABASE_URL is required")
		os.Exit(1)
	}
	legacyDB, err := gorm.Open(postgres.Open(legacyDSN), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect legacy database: %v\n", err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	moveCols, err := tableColumns(legacyDB, "movements")
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect movements: %v\n", err)
		os.Exit(1)
	}
	tsCol := ""
	switch {
	case moveCols["ts_utc"]:
		tsCol = "ts_utc"
	case moveCols["moved_at"]:
		tsCol = "moved_at"
	}

	var legacyRolls []legacyRoll
	if err := legacyDB.Raw("SELECT roll_id, paper_type, weight, location, warehouse FROM rolls").Scan(&legacyRolls).Error; err != nil {
		fmt.Fprintf(os.Stderr, "read legacy rolls: %v\n", err)
		os.Exit(1)
	}

	var legacyMovements []legacyMovement
	if tsCol != "" {
		q := fmt.Sprintf("SELECT roll_id, action, from_wh, to_wh, from_loc, to_loc, %s AS moved_at FROM movements ORDER BY id", tsCol)
		if err := legacyDB.Raw(q).Scan(&legacyMovements).Error; err != nil {
			fmt.Fprintf(os.Stderr, "read legacy movements: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("legacy rolls: %d, legacy movements: %d (timestamp column: %q)\n",
		len(legacyRolls), len(legacyMovements), tsCol)
	if *dryRun {
		return
	}

	models.MigrateTable()

	tx := db.Begin()
	for _, lr := range legacyRolls {
		wh, sub, err := canonicalLocation(lr.Warehouse, lr.Location)
		if err != nil {
			tx.Rollback()
			fmt.Fprintf(os.Stderr, "roll %s: %v\n", lr.RollID, err)
			os.Exit(1)
		}
		weight := 1
		if lr.Weight != nil && *lr.Weight > 0 {
			weight = *lr.Weight
		}
		roll := models.Roll{
			RollID:       utils.NormalizeID(lr.RollID),
			MaterialType: utils.Clean(lr.PaperType),
			Weight:       weight,
			Warehouse:    wh,
			SubLocation:  sub,
		}
		if err := tx.Exec(
			"INSERT INTO rolls (roll_id, material_type, weight, warehouse, sub_location, created_at) VALUES (?, ?, ?, ?, ?, NOW()) ON CONFLICT (roll_id) DO NOTHING",
			roll.RollID, roll.MaterialType, roll.Weight, roll.Warehouse, roll.SubLocation,
		).Error; err != nil {
			tx.Rollback()
			fmt.Fprintf(os.Stderr, "import roll %s: %v\n", roll.RollID, err)
			os.Exit(1)
		}
	}
	// Legacy rows stored the terminal marker in both columns
	// (warehouse='USED', location='USED'); canonically the terminal
	// sub-location is empty.
	mapSub := func(wh, loc string) string {
		if parsed, err := models.ParseWarehouseCode(wh); err == nil && parsed.IsTerminal() {
			return ""
		}
		return utils.Clean(loc)
	}
	for _, lm := range legacyMovements {
		action := strings.TrimSpace(lm.Action)
		if action == "" {
			action = "LEGACY"
		}
		if err := tx.Exec(
			"INSERT INTO movements (roll_id, from_warehouse, from_sub_location, to_warehouse, to_sub_location, action, created_at) VALUES (?, ?, ?, ?, ?, ?, COALESCE(NULLIF(?, '')::timestamptz, NOW()))",
			utils.NormalizeID(lm.RollID), lm.FromWh, mapSub(lm.FromWh, lm.FromLoc), lm.ToWh, mapSub(lm.ToWh, lm.ToLoc), action, lm.MovedAt,
		).Error; err != nil {
			tx.Rollback()
			fmt.Fprintf(os.Stderr, "import movement for %s: %v\n", lm.RollID, err)
			os.Exit(1)
		}
	}
	if err := tx.Commit().Error; err != nil {
		fmt.Fprintf(os.Stderr, "commit: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("import complete")
}
