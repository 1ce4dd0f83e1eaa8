package sharecode

import (
	"strings"
	"testing"
)

func TestNewShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := New()
		if err != nil {
			t.Fatalf("New error = %v", err)
		}
		if len(code) != 8 {
			t.Fatalf("New produced %d characters", len(code))
		}
		if !Valid(code) {
			t.Fatalf("New produced invalid code %q", code)
		}
		if strings.ContainsAny(code, "0OIl1") {
			t.Fatalf("code %q contains ambiguous characters", code)
		}
		seen[code] = true
	}
	if len(seen) < 95 {
		t.Errorf("only %d distinct codes in 100 draws", len(seen))
	}
}

func TestNewWithLength(t *testing.T) {
	for _, n := range []int{MinLength, 10, MaxLength} {
		code, err := NewWithLength(n)
		if err != nil {
			t.Fatalf("NewWithLength(%d) error = %v", n, err)
		}
		if len(code) != n {
			t.Errorf("NewWithLength(%d) produced %d characters", n, len(code))
		}
	}
	for _, n := range []int{0, MinLength - 1, MaxLength + 1} {
		if _, err := NewWithLength(n); err == nil {
			t.Errorf("NewWithLength(%d) accepted an out-of-range length", n)
		}
	}
}

func TestNewDrawsUniformly(t *testing.T) {
	// Folding a raw byte onto the 56-character alphabet would overweight
	// the first 256 mod 56 = 32 characters by a quarter. With rejection
	// sampling the average frequency of that prefix stays within noise of
	// the rest.
	counts := make(map[byte]int)
	for i := 0; i < 5_000; i++ {
		code, err := New()
		if err != nil {
			t.Fatalf("New error = %v", err)
		}
		for j := 0; j < len(code); j++ {
			counts[code[j]]++
		}
	}

	split := 256 % len(alphabet)
	var prefix, suffix float64
	for i := 0; i < len(alphabet); i++ {
		if i < split {
			prefix += float64(counts[alphabet[i]])
		} else {
			suffix += float64(counts[alphabet[i]])
		}
	}
	prefix /= float64(split)
	suffix /= float64(len(alphabet) - split)
	if ratio := prefix / suffix; ratio < 0.9 || ratio > 1.1 {
		t.Errorf("prefix/suffix frequency ratio = %.3f, want close to 1", ratio)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"default shape", "abcd2345", true},
		{"minimum length", "abc234", true},
		{"maximum length", "abcdefgh2345", true},
		{"too short", "ab234", false},
		{"too long", "abcdefghj23456", false},
		{"ambiguous zero", "abcd0345", false},
		{"ambiguous ell", "abcdl345", false},
		{"punctuation", "abcd-345", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.code); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
