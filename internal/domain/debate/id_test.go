package debate

import (
	"strings"
	"testing"
)

func TestNewDebateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewDebateID()
		if err != nil {
			t.Fatalf("NewDebateID() error = %v", err)
		}
		if !ValidDebateID(id) {
			t.Errorf("NewDebateID() = %q, fails validation", id)
		}
		if seen[id] {
			t.Errorf("NewDebateID() produced duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestValidDebateID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "db_AbCd1234-_efGh56", true},
		{"missing prefix", "AbCd1234-_efGh56xx", false},
		{"too short", "db_AbCd1234", false},
		{"too long", "db_" + strings.Repeat("a", 17), false},
		{"illegal character", "db_AbCd1234+_efGh5", false},
		{"empty", "", false},
		{"prefix only", "db_", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidDebateID(tt.id); got != tt.want {
				t.Errorf("ValidDebateID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}
