package models_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mittera/rolltrack_backend/models"
)

// These paths all fail before any storage access.

func TestCreateRollRequiresIDAndMaterial(t *testing.T) {
	_, err := models.CreateRoll(context.Background(), &models.NewRoll{
		RollID:       "   ",
		MaterialType: "Kraft",
		Weight:       100,
		Warehouse:    "WH1",
		SubLocation:  "02",
	})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("whitespace roll id: expected ErrInvalidInput, got %v", err)
	}
}

func TestEditRollRequiresMaterial(t *testing.T) {
	_, err := models.EditRoll(context.Background(), "R1", &models.EditRollInput{
		MaterialType: "  ",
		Weight:       100,
		Warehouse:    "WH1",
		SubLocation:  "02",
	})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("empty material type: expected ErrInvalidInput, got %v", err)
	}
}

func TestListMovementsBetweenRejectsEmptyRange(t *testing.T) {
	now := time.Now()
	_, err := models.ListMovementsBetween(context.Background(), now, now)
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("empty range: expected ErrInvalidInput, got %v", err)
	}
}

func TestWeightInputForms(t *testing.T) {
	cases := []struct {
		name string
		body string
		want models.WeightInput
	}{
		{"number", `{"weight": 2945}`, 2945},
		{"scale string", `{"weight": "2945.0"}`, 2945},
		{"fraction dropped", `{"weight": "2945.7"}`, 2945},
		{"malformed", `{"weight": "abc"}`, 0},
		{"negative", `{"weight": "-5"}`, 0},
		{"empty", `{"weight": ""}`, 0},
	}
	for _, tc := range cases {
		var input struct {
			Weight models.WeightInput `json:"weight"`
		}
		if err := json.Unmarshal([]byte(tc.body), &input); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.name, err)
		}
		if input.Weight != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, input.Weight, tc.want)
		}
	}
}
