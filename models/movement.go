package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mittera/rolltrack_backend/config"
	"gorm.io/gorm"
)

// Movement is one append-only ledger entry capturing a location
// transition. Rows are never updated or deleted; they are kept even
// after the roll itself is permanently deleted so the audit trail
// survives (roll_id is deliberately not a foreign key).
type Movement struct {
	ID              int64          `gorm:"primary_key" json:"id"`
	RollID          string         `gorm:"size:64;index;not null" json:"roll_id"`
	FromWarehouse   WarehouseCode  `gorm:"size:10" json:"from_warehouse"`
	FromSubLocation string         `gorm:"size:10" json:"from_sub_location"`
	ToWarehouse     WarehouseCode  `gorm:"size:10" json:"to_warehouse"`
	ToSubLocation   string         `gorm:"size:10" json:"to_sub_location"`
	Action          MovementAction `gorm:"size:20;not null" json:"action"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

// appendMovement writes a ledger entry inside the caller's transaction.
// A failing ledger write must fail the enclosing location update too,
// so the error is always propagated.
func appendMovement(tx *gorm.DB, rollID string, action MovementAction,
	fromWH WarehouseCode, fromSub string, toWH WarehouseCode, toSub string) error {

	movement := Movement{
		RollID:          rollID,
		FromWarehouse:   fromWH,
		FromSubLocation: fromSub,
		ToWarehouse:     toWH,
		ToSubLocation:   toSub,
		Action:          action,
	}
	return tx.Create(&movement).Error
}

// ListMovementsForRoll returns a roll's full movement history, oldest first.
func ListMovementsForRoll(ctx context.Context, rollID string) ([]*Movement, error) {
	rollID = normalizeRollID(rollID)
	if rollID == "" {
		return nil, ErrRollNotFound
	}

	db := config.GetDB()
	var results []*Movement
	err := db.WithContext(ctx).
		Where("roll_id = ?", rollID).
		Order("created_at, id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListMovementsBetween returns all movements in [from, to), oldest first.
func ListMovementsBetween(ctx context.Context, from time.Time, to time.Time) ([]*Movement, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: time range is empty", ErrInvalidInput)
	}

	db := config.GetDB()
	var results []*Movement
	err := db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at, id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
