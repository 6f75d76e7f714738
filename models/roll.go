package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mittera/rolltrack_backend/config"
	"github.com/mittera/rolltrack_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Roll is one physical unit of trackable material. Its location is a
// single authoritative field pair (warehouse, sub_location); nothing
// else in the system derives or caches it.
type Roll struct {
	RollID       string        `gorm:"size:64;primary_key" json:"roll_id"`
	MaterialType string        `gorm:"size:100;not null" json:"material_type"`
	Weight       int           `gorm:"not null" json:"weight"`
	Warehouse    WarehouseCode `gorm:"size:10;not null;index:idx_rolls_wh_sub,priority:1" json:"warehouse"`
	SubLocation  string        `gorm:"size:10;index:idx_rolls_wh_sub,priority:2" json:"sub_location"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// WeightInput accepts the weight as a JSON number or as the string form
// scales emit ("2945.0"). Malformed or non-positive values parse to 0
// and fail the weight check downstream.
type WeightInput int

func (w *WeightInput) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	*w = WeightInput(utils.ParseWeight(s))
	return nil
}

type NewRoll struct {
	RollID       string      `json:"roll_id" binding:"required"`
	MaterialType string      `json:"material_type" binding:"required"`
	Weight       WeightInput `json:"weight" binding:"required"`
	Warehouse    string      `json:"warehouse" binding:"required"`
	SubLocation  string      `json:"sub_location" binding:"required"`
}

type EditRollInput struct {
	MaterialType string      `json:"material_type" binding:"required"`
	Weight       WeightInput `json:"weight" binding:"required"`
	Warehouse    string      `json:"warehouse" binding:"required"`
	SubLocation  string      `json:"sub_location"`
}

// WarehouseTotals is the aggregate row shown on the inventory screen.
type WarehouseTotals struct {
	Count       int64 `json:"count"`
	TotalWeight int64 `json:"total_weight"`
}

func normalizeRollID(s string) string {
	return utils.NormalizeID(s)
}

// lockRoll fetches a roll FOR UPDATE inside the caller's transaction so
// concurrent moves of the same roll serialize on the row lock.
func lockRoll(tx *gorm.DB, rollID string) (*Roll, error) {
	var roll Roll
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("roll_id = ?", rollID).
		Take(&roll).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRollNotFound
		}
		return nil, err
	}
	return &roll, nil
}

// CreateRoll registers a new roll and writes its ADD ledger entry in the
// same transaction. By convention the birth entry's from side equals the
// initial location.
func CreateRoll(ctx context.Context, input *NewRoll) (*Roll, error) {
	rollID := normalizeRollID(input.RollID)
	materialType := utils.Clean(input.MaterialType)
	if rollID == "" || materialType == "" {
		return nil, fmt.Errorf("%w: roll id and material type are required", ErrInvalidInput)
	}
	if input.Weight <= 0 {
		return nil, ErrInvalidWeight
	}
	wh, err := ParseWarehouseCode(input.Warehouse)
	if err != nil {
		return nil, err
	}
	sub := utils.Clean(input.SubLocation)
	if err := validateCreateLocation(wh, sub); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var count int64
	if err := tx.Model(&Roll{}).Where("roll_id = ?", rollID).Count(&count).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if count > 0 {
		tx.Rollback()
		return nil, ErrDuplicateID
	}

	roll := Roll{
		RollID:       rollID,
		MaterialType: materialType,
		Weight:       int(input.Weight),
		Warehouse:    wh,
		SubLocation:  sub,
	}
	if err := tx.Create(&roll).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := appendMovement(tx, rollID, ActionAdd, wh, sub, wh, sub); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &roll, nil
}

func GetRoll(ctx context.Context, rollID string) (*Roll, error) {
	rollID = normalizeRollID(rollID)

	db := config.GetDB()
	var roll Roll
	err := db.WithContext(ctx).Where("roll_id = ?", rollID).Take(&roll).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRollNotFound
		}
		return nil, err
	}
	return &roll, nil
}

// EditRoll updates all mutable fields at once. An EDIT_MOVE ledger entry
// is appended only when the location actually changed; material/weight
// edits keep the ledger a pure location history.
func EditRoll(ctx context.Context, rollID string, input *EditRollInput) (*Roll, error) {
	rollID = normalizeRollID(rollID)
	materialType := utils.Clean(input.MaterialType)
	if materialType == "" {
		return nil, fmt.Errorf("%w: material type is required", ErrInvalidInput)
	}
	if input.Weight <= 0 {
		return nil, ErrInvalidWeight
	}
	wh, err := ParseWarehouseCode(input.Warehouse)
	if err != nil {
		return nil, err
	}
	sub := utils.Clean(input.SubLocation)
	if wh.IsTerminal() {
		sub = ""
	}
	if err := validateLocation(wh, sub); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	roll, err := lockRoll(tx, rollID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	locationChanged := roll.Warehouse != wh || roll.SubLocation != sub
	// Editing one terminal state into another is not a legal transition;
	// the roll has to be restored to a warehouse first.
	if locationChanged && roll.Warehouse.IsTerminal() && wh.IsTerminal() {
		tx.Rollback()
		return nil, ErrAlreadyTerminal
	}

	fromWH, fromSub := roll.Warehouse, roll.SubLocation
	err = tx.Model(roll).Updates(map[string]interface{}{
		"material_type": materialType,
		"weight":        int(input.Weight),
		"warehouse":     wh,
		"sub_location":  sub,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if locationChanged {
		if err := appendMovement(tx, rollID, ActionEditMove, fromWH, fromSub, wh, sub); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	roll.MaterialType = materialType
	roll.Weight = int(input.Weight)
	roll.Warehouse = wh
	roll.SubLocation = sub
	return roll, nil
}

// DeleteRoll permanently removes a roll. The DELETE ledger entry is
// written first, referencing the last known location; the history rows
// stay behind after the roll row is gone.
func DeleteRoll(ctx context.Context, rollID string) (*Roll, error) {
	rollID = normalizeRollID(rollID)

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	roll, err := lockRoll(tx, rollID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := appendMovement(tx, rollID, ActionDelete, roll.Warehouse, roll.SubLocation, "", ""); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Delete(&Roll{}, "roll_id = ?", rollID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return roll, nil
}

// ListRolls returns the rolls in a warehouse, optionally narrowed to one
// sub-location, in deterministic display order.
func ListRolls(ctx context.Context, warehouse string, subLocation *string) ([]*Roll, error) {
	wh, err := ParseWarehouseCode(warehouse)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	return listRolls(db.WithContext(ctx), wh, subLocation)
}

func listRolls(dbCtx *gorm.DB, wh WarehouseCode, subLocation *string) ([]*Roll, error) {
	dbCtx = dbCtx.Where("warehouse = ?", wh)
	if subLocation != nil && *subLocation != "" {
		if err := validateLocation(wh, *subLocation); err != nil {
			return nil, err
		}
		dbCtx = dbCtx.Where("sub_location = ?", *subLocation)
	}
	var results []*Roll
	err := dbCtx.Order("material_type, sub_location, roll_id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetWarehouseTotals returns the count and total weight for a warehouse.
func GetWarehouseTotals(ctx context.Context, warehouse string) (*WarehouseTotals, error) {
	wh, err := ParseWarehouseCode(warehouse)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	return warehouseTotals(db.WithContext(ctx), wh)
}

func warehouseTotals(dbCtx *gorm.DB, wh WarehouseCode) (*WarehouseTotals, error) {
	var totals WarehouseTotals
	err := dbCtx.Model(&Roll{}).
		Select("COUNT(*) AS count, COALESCE(SUM(weight), 0) AS total_weight").
		Where("warehouse = ?", wh).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// ListRollsWithTotals runs the list and the aggregate in a single read
// transaction so the totals always match the listed rows.
func ListRollsWithTotals(ctx context.Context, warehouse string, subLocation *string) ([]*Roll, *WarehouseTotals, error) {
	wh, err := ParseWarehouseCode(warehouse)
	if err != nil {
		return nil, nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, nil, tx.Error
	}

	rolls, err := listRolls(tx, wh, subLocation)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	totals, err := warehouseTotals(tx, wh)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, nil, err
	}
	return rolls, totals, nil
}

// SearchRollsByMaterial does a case-insensitive substring match over
// material types across all locations.
func SearchRollsByMaterial(ctx context.Context, query string) ([]*Roll, error) {
	query = utils.Clean(query)
	if query == "" {
		return nil, nil
	}

	db := config.GetDB()
	var results []*Roll
	err := db.WithContext(ctx).
		Where("material_type ILIKE ?", "%"+query+"%").
		Order("material_type, warehouse, sub_location, roll_id").
		Limit(config.SearchLimit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
