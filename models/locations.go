package models

// Sub-location codes are fixed per warehouse. WH1 racks were renumbered
// in 2023 which is why 11 and 13..15 are missing.
var warehouseSubLocations = map[WarehouseCode][]string{
	WarehouseWH1: {"02", "03", "04", "05", "06", "07", "08", "09", "10", "12", "16", "17", "18", "19"},
	WarehouseWH2: {"20", "21", "22", "23", "24", "25", "26", "27", "28", "29", "30"},
}

// SubLocationsFor returns the valid sub-location codes for a warehouse.
// Terminal locations have none.
func SubLocationsFor(wh WarehouseCode) []string {
	subs := warehouseSubLocations[wh]
	out := make([]string, len(subs))
	copy(out, subs)
	return out
}

func StorageWarehouses() []WarehouseCode {
	return []WarehouseCode{WarehouseWH1, WarehouseWH2}
}

func TerminalWarehouses() []WarehouseCode {
	return []WarehouseCode{WarehouseUsed, WarehouseConsumed}
}

// validateLocation checks a (warehouse, sub-location) pair jointly:
// a storage warehouse requires a sub-location from its own set, a
// terminal location must not carry one.
func validateLocation(wh WarehouseCode, sub string) error {
	if wh.IsTerminal() {
		if sub != "" {
			return ErrInvalidLocation
		}
		return nil
	}
	subs, ok := warehouseSubLocations[wh]
	if !ok {
		return ErrInvalidLocation
	}
	for _, s := range subs {
		if s == sub {
			return nil
		}
	}
	return ErrInvalidLocation
}

// validateCreateLocation additionally forbids creating a roll directly
// in a terminal location.
func validateCreateLocation(wh WarehouseCode, sub string) error {
	if !wh.IsStorage() {
		return ErrInvalidLocation
	}
	return validateLocation(wh, sub)
}
