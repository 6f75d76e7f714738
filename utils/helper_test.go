package utils

import (
	"reflect"
	"testing"
)

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"  r100 ":   "R100",
		"R100":      "R100",
		"\tr2-0a\n": "R2-0A",
		"   ":       "",
	}
	for in, want := range cases {
		if got := NormalizeID(in); got != want {
			t.Fatalf("NormalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseWeight(t *testing.T) {
	cases := map[string]int{
		"2945":    2945,
		"2945.0":  2945,
		" 2945.7": 2945,
		"0":       0,
		"-12":     0,
		"abc":     0,
		"":        0,
	}
	for in, want := range cases {
		if got := ParseWeight(in); got != want {
			t.Fatalf("ParseWeight(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSplitScanList(t *testing.T) {
	raw := "r100, R101;R102\nr100\t r103 ,,"
	want := []string{"R100", "R101", "R102", "R103"}
	if got := SplitScanList(raw); !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitScanList = %v, want %v", got, want)
	}
	if got := SplitScanList("  ,; "); got != nil {
		t.Fatalf("SplitScanList(blank) = %v, want nil", got)
	}
}
