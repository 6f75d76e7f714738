package models

import (
	"strings"
)

type WarehouseCode string

const (
	WarehouseWH1      WarehouseCode = "WH1"
	WarehouseWH2      WarehouseCode = "WH2"
	WarehouseUsed     WarehouseCode = "USED"
	WarehouseConsumed WarehouseCode = "CONSUMED"
)

// ParseWarehouseCode normalizes user input into a known warehouse code.
func ParseWarehouseCode(s string) (WarehouseCode, error) {
	switch WarehouseCode(strings.ToUpper(strings.TrimSpace(s))) {
	case WarehouseWH1:
		return WarehouseWH1, nil
	case WarehouseWH2:
		return WarehouseWH2, nil
	case WarehouseUsed:
		return WarehouseUsed, nil
	case WarehouseConsumed:
		return WarehouseConsumed, nil
	default:
		return "", ErrInvalidLocation
	}
}

// IsTerminal reports whether the code is an end state (no sub-location).
func (c WarehouseCode) IsTerminal() bool {
	return c == WarehouseUsed || c == WarehouseConsumed
}

// IsStorage reports whether the code is one of the physical warehouses.
func (c WarehouseCode) IsStorage() bool {
	return c == WarehouseWH1 || c == WarehouseWH2
}

type MovementAction string

const (
	ActionAdd              MovementAction = "ADD"
	ActionTransfer         MovementAction = "TRANSFER"
	ActionConsume          MovementAction = "CONSUME"
	ActionRemoveToTerminal MovementAction = "REMOVE_TO_TERMINAL"
	ActionBatchRemove      MovementAction = "BATCH_REMOVE"
	ActionRestore          MovementAction = "RESTORE"
	ActionEditMove         MovementAction = "EDIT_MOVE"
	ActionDelete           MovementAction = "DELETE"
)
