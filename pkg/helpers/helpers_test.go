package helpers

import (
	"bytes"
	"testing"
)

func TestGenerateSecureRandom(t *testing.T) {
	a, err := GenerateSecureRandom(32)
	if err != nil {
		t.Fatalf("GenerateSecureRandom: %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("len = %d, want 32", len(a))
	}

	b, err := GenerateSecureRandom(32)
	if err != nil {
		t.Fatalf("GenerateSecureRandom: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two draws returned identical bytes")
	}

	empty, err := GenerateSecureRandom(0)
	if err != nil {
		t.Fatalf("GenerateSecureRandom(0): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("len = %d, want 0", len(empty))
	}
}

func TestConstantTimeCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want bool
	}{
		{"equal", []byte{1, 2, 3}, []byte{1, 2, 3}, true},
		{"differ", []byte{1, 2, 3}, []byte{1, 2, 4}, false},
		{"length mismatch", []byte{1, 2}, []byte{1, 2, 3}, false},
		{"both empty", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConstantTimeCompare(tt.a, tt.b); got != tt.want {
				t.Errorf("ConstantTimeCompare = %v, want %v", got, tt.want)
			}
		})
	}
}
