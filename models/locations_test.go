package models

import "testing"

func TestParseWarehouseCode(t *testing.T) {
	cases := map[string]WarehouseCode{
		"WH1":      WarehouseWH1,
		"wh2":      WarehouseWH2,
		" used ":   WarehouseUsed,
		"Consumed": WarehouseConsumed,
	}
	for in, want := range cases {
		got, err := ParseWarehouseCode(in)
		if err != nil {
			t.Fatalf("ParseWarehouseCode(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseWarehouseCode(%q) = %q, want %q", in, got, want)
		}
	}
	for _, in := range []string{"", "WH3", "warehouse1", "USED2"} {
		if _, err := ParseWarehouseCode(in); err != ErrInvalidLocation {
			t.Fatalf("ParseWarehouseCode(%q): expected ErrInvalidLocation, got %v", in, err)
		}
	}
}

func TestValidateLocationClosure(t *testing.T) {
	// every enumerated pair is valid
	for _, wh := range StorageWarehouses() {
		for _, sub := range SubLocationsFor(wh) {
			if err := validateLocation(wh, sub); err != nil {
				t.Fatalf("validateLocation(%s, %s): %v", wh, sub, err)
			}
		}
	}
	for _, wh := range TerminalWarehouses() {
		if err := validateLocation(wh, ""); err != nil {
			t.Fatalf("validateLocation(%s, \"\"): %v", wh, err)
		}
	}
}

func TestValidateLocationRejectsCrossWarehouseSubs(t *testing.T) {
	// WH2 codes are not valid in WH1 and vice versa
	for _, sub := range SubLocationsFor(WarehouseWH2) {
		if err := validateLocation(WarehouseWH1, sub); err != ErrInvalidLocation {
			t.Fatalf("WH1/%s: expected ErrInvalidLocation, got %v", sub, err)
		}
	}
	for _, sub := range SubLocationsFor(WarehouseWH1) {
		if err := validateLocation(WarehouseWH2, sub); err != ErrInvalidLocation {
			t.Fatalf("WH2/%s: expected ErrInvalidLocation, got %v", sub, err)
		}
	}
	// renumbered rack codes stay invalid
	for _, sub := range []string{"01", "11", "13", "14", "15", "31", "USED"} {
		if err := validateLocation(WarehouseWH1, sub); err != ErrInvalidLocation {
			t.Fatalf("WH1/%s: expected ErrInvalidLocation, got %v", sub, err)
		}
	}
}

func TestValidateLocationTerminalNeverCarriesSub(t *testing.T) {
	for _, wh := range TerminalWarehouses() {
		for _, sub := range []string{"02", "20", "USED"} {
			if err := validateLocation(wh, sub); err != ErrInvalidLocation {
				t.Fatalf("%s/%s: expected ErrInvalidLocation, got %v", wh, sub, err)
			}
		}
	}
}

func TestValidateCreateLocationForbidsTerminal(t *testing.T) {
	for _, wh := range TerminalWarehouses() {
		if err := validateCreateLocation(wh, ""); err != ErrInvalidLocation {
			t.Fatalf("create in %s: expected ErrInvalidLocation, got %v", wh, err)
		}
	}
	if err := validateCreateLocation(WarehouseWH1, "02"); err != nil {
		t.Fatalf("create in WH1/02: %v", err)
	}
}
