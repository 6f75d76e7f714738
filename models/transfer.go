package models

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/mittera/rolltrack_backend/config"
	"github.com/mittera/rolltrack_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type moveOptions struct {
	// expectedFrom asserts the roll's current warehouse before moving
	// (directional transfer).
	expectedFrom *WarehouseCode
	// requireTerminalSource asserts the roll is currently in a terminal
	// location (restore).
	requireTerminalSource bool
}

// moveRollTx performs one atomic location flip inside the caller's
// transaction: lock current state, validate the transition, write the
// new state, append the ledger entry. There is no in-transit state.
func moveRollTx(tx *gorm.DB, rollID string, toWH WarehouseCode, toSub string,
	action MovementAction, opts moveOptions) (*Roll, error) {

	roll, err := lockRoll(tx, rollID)
	if err != nil {
		return nil, err
	}

	if opts.expectedFrom != nil && roll.Warehouse != *opts.expectedFrom {
		return nil, ErrLocationMismatch
	}
	if opts.requireTerminalSource && !roll.Warehouse.IsTerminal() {
		return nil, ErrLocationMismatch
	}
	if err := validateLocation(toWH, toSub); err != nil {
		return nil, err
	}
	// Terminal to terminal is disallowed: a spent roll has to be
	// restored to a warehouse before it can be re-consumed.
	if roll.Warehouse.IsTerminal() && toWH.IsTerminal() {
		return nil, ErrAlreadyTerminal
	}

	fromWH, fromSub := roll.Warehouse, roll.SubLocation
	err = tx.Model(roll).Updates(map[string]interface{}{
		"warehouse":    toWH,
		"sub_location": toSub,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := appendMovement(tx, rollID, action, fromWH, fromSub, toWH, toSub); err != nil {
		return nil, err
	}

	roll.Warehouse = toWH
	roll.SubLocation = toSub
	return roll, nil
}

// moveRoll wraps moveRollTx in its own transaction.
func moveRoll(ctx context.Context, rollID string, toWH WarehouseCode, toSub string,
	action MovementAction, opts moveOptions) (*Roll, error) {

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	roll, err := moveRollTx(tx, rollID, toWH, toSub, action, opts)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return roll, nil
}

// MoveRoll updates a roll's location with a caller-supplied action tag.
// expectedFrom, when non-nil, asserts the current warehouse first.
func MoveRoll(ctx context.Context, rollID string, toWarehouse string, toSub string,
	action MovementAction, expectedFrom *WarehouseCode) (*Roll, error) {

	toWH, err := ParseWarehouseCode(toWarehouse)
	if err != nil {
		return nil, err
	}
	return moveRoll(ctx, normalizeRollID(rollID), toWH, utils.Clean(toSub),
		action, moveOptions{expectedFrom: expectedFrom})
}

// TransferRoll is the directional cross-warehouse move. The roll must
// currently be in fromWarehouse; same-warehouse shuffles between
// sub-locations go through EditRoll instead.
func TransferRoll(ctx context.Context, rollID string, fromWarehouse string, toWarehouse string, toSub string) (*Roll, error) {
	fromWH, err := ParseWarehouseCode(fromWarehouse)
	if err != nil {
		return nil, err
	}
	toWH, err := ParseWarehouseCode(toWarehouse)
	if err != nil {
		return nil, err
	}
	if !fromWH.IsStorage() || !toWH.IsStorage() || fromWH == toWH {
		return nil, ErrInvalidLocation
	}
	return moveRoll(ctx, normalizeRollID(rollID), toWH, utils.Clean(toSub),
		ActionTransfer, moveOptions{expectedFrom: &fromWH})
}

// ConsumeRoll moves a roll to the CONSUMED terminal location.
func ConsumeRoll(ctx context.Context, rollID string) (*Roll, error) {
	return moveRoll(ctx, normalizeRollID(rollID), WarehouseConsumed, "",
		ActionConsume, moveOptions{})
}

// RemoveRoll moves a roll to the USED terminal location.
func RemoveRoll(ctx context.Context, rollID string) (*Roll, error) {
	return moveRoll(ctx, normalizeRollID(rollID), WarehouseUsed, "",
		ActionRemoveToTerminal, moveOptions{})
}

// RestoreRoll brings a terminal roll back into a warehouse. The target
// sub-location is explicit; the terminal state is cleared.
func RestoreRoll(ctx context.Context, rollID string, toWarehouse string, toSub string) (*Roll, error) {
	toWH, err := ParseWarehouseCode(toWarehouse)
	if err != nil {
		return nil, err
	}
	if !toWH.IsStorage() {
		return nil, ErrInvalidLocation
	}
	return moveRoll(ctx, normalizeRollID(rollID), toWH, utils.Clean(toSub),
		ActionRestore, moveOptions{requireTerminalSource: true})
}

// BatchMoveResult reports per-item outcomes of a batch move. Scanned
// batches commonly contain typos or already-removed ids; valid moves
// commit even when some items fail.
type BatchMoveResult struct {
	Moved   []string `json:"moved"`
	Missing []string `json:"missing"`
	Skipped []string `json:"skipped"`
}

// BatchMoveRolls applies a move to each id in its own transaction.
// Missing ids and rolls already in a terminal location are reported,
// not escalated. The destination is validated up front: a bad target
// location fails the whole batch before anything moves.
func BatchMoveRolls(ctx context.Context, rollIDs []string, toWarehouse string, toSub string, action MovementAction) (*BatchMoveResult, error) {
	toWH, err := ParseWarehouseCode(toWarehouse)
	if err != nil {
		return nil, err
	}
	toSub = utils.Clean(toSub)
	if err := validateLocation(toWH, toSub); err != nil {
		return nil, err
	}

	// Normalize before deduping so "r1" and "R1 " collapse to one move.
	ids := make([]string, 0, len(rollIDs))
	for _, id := range rollIDs {
		if id := normalizeRollID(id); id != "" {
			ids = append(ids, id)
		}
	}
	ids = utils.UniqueSlice(ids)

	// Best-effort guard against a double-submitted scanner batch. DB row
	// locks stay authoritative; when Redis is down we proceed anyway.
	logger := config.GetLogger()
	if locker := config.GetRedisLock(); locker != nil {
		lock, lockErr := locker.Obtain(ctx, "BatchMove:"+string(toWH)+":"+toSub, 30*time.Second, nil)
		if lockErr == nil {
			defer lock.Release(ctx)
		} else if lockErr != redislock.ErrNotObtained {
			config.LogError(logger, "transfer.go", "BatchMoveRolls", "redislock.Obtain", nil, lockErr)
		}
	}

	db := config.GetDB()
	result := &BatchMoveResult{}
	for _, rollID := range ids {
		tx := db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return nil, tx.Error
		}
		_, err := moveRollTx(tx, rollID, toWH, toSub, action, moveOptions{})
		switch err {
		case nil:
			if err := tx.Commit().Error; err != nil {
				return nil, err
			}
			result.Moved = append(result.Moved, rollID)
		case ErrRollNotFound:
			tx.Rollback()
			result.Missing = append(result.Missing, rollID)
		case ErrAlreadyTerminal:
			tx.Rollback()
			result.Skipped = append(result.Skipped, rollID)
		default:
			tx.Rollback()
			return nil, err
		}
	}

	logger.WithFields(logrus.Fields{
		"to_warehouse": toWH,
		"moved":        len(result.Moved),
		"missing":      len(result.Missing),
		"skipped":      len(result.Skipped),
	}).Info("batch move applied")

	return result, nil
}
