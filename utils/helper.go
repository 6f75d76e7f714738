package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Clean trims surrounding whitespace from user-supplied text.
func Clean(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeID uppercases and trims a roll id for lookup and equality.
// Scanner input is inconsistent about case and leading spaces.
func NormalizeID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseWeight parses a weight form value into whole pounds.
// Scales frequently send "2945.0"; the fraction is dropped.
// Returns 0 when the value is empty, malformed or not positive.
func ParseWeight(s string) int {
	s = Clean(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	w := int(f)
	if w <= 0 {
		return 0
	}
	return w
}

var idSeparators = regexp.MustCompile(`[\s,;]+`)

// SplitScanList splits a pasted/scanned blob of roll ids on whitespace,
// commas and semicolons, dropping empties and duplicates (order kept).
func SplitScanList(raw string) []string {
	parts := idSeparators.Split(raw, -1)
	seen := make(map[string]struct{}, len(parts))
	var ids []string
	for _, p := range parts {
		id := NormalizeID(p)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func UniqueSlice[T comparable](s []T) []T {
	seen := make(map[T]struct{}, len(s))
	var out []T
	for _, v := range s {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
