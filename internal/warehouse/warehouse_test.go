package warehouse

import (
	"math"
	"testing"
	"time"
)

func TestRowCoercion(t *testing.T) {
	row := NewRow(
		[]string{"goal", "Rank", "FM_GOAL", "MARKET", "NOTES", "PCT", "BYTES", "BAD"},
		[]any{int64(12), "7", 3.9, "Denver", nil, "42.5", []byte("15"), "n/a"},
	)

	if v, ok := row.Int("GOAL"); !ok || v != 12 {
		t.Errorf("GOAL = %d, %v; want 12, true", v, ok)
	}
	if v, ok := row.Int("rank"); !ok || v != 7 {
		t.Errorf("RANK = %d, %v; want 7, true", v, ok)
	}
	if v, ok := row.Int("FM_GOAL"); !ok || v != 3 {
		t.Errorf("FM_GOAL = %d, %v; want 3 (truncated), true", v, ok)
	}
	if v, ok := row.Int("BYTES"); !ok || v != 15 {
		t.Errorf("BYTES = %d, %v; want 15, true", v, ok)
	}
	if _, ok := row.Int("BAD"); ok {
		t.Error("non-numeric text should not coerce to int")
	}
	if _, ok := row.Int("NOTES"); ok {
		t.Error("NULL should not coerce to int")
	}
	if !row.Null("NOTES") || !row.Null("MISSING") {
		t.Error("NULL and missing columns should report Null")
	}
	if v, ok := row.String("market"); !ok || v != "Denver" {
		t.Errorf("MARKET = %q, %v; want Denver, true", v, ok)
	}
}

func TestRowIntRejectsNaN(t *testing.T) {
	row := Row{"GOAL": math.NaN()}
	if _, ok := row.Int("GOAL"); ok {
		t.Error("NaN should not coerce to int")
	}
}

func TestRowTime(t *testing.T) {
	want := time.Date(2024, 9, 18, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		val  any
	}{
		{"time", want},
		{"rfc3339", "2024-09-18T14:30:00Z"},
		{"sqlite", "2024-09-18 14:30:00+00:00"},
		{"naive", "2024-09-18 14:30:00"},
		{"bytes", []byte("2024-09-18T14:30:00Z")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Row{"AT": tt.val}.Time("at")
			if !ok {
				t.Fatalf("Time(%v) not ok", tt.val)
			}
			if !got.Equal(want) {
				t.Errorf("Time(%v) = %v, want %v", tt.val, got, want)
			}
		})
	}

	if _, ok := (Row{"AT": "yesterday"}).Time("AT"); ok {
		t.Error("unparseable text should not coerce to time")
	}
}
