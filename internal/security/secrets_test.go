package security

import (
	"strings"
	"testing"
)

func TestValidateSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"generated-looking secret", "xK9mP2vL8qR5tY7wA3bN6cD1eF4gH0jZ", false},
		{"long random base64", "YWJjZGVmZ2hpamtsbW5vcHFyc3R1dnd4eXoxMjM0NTY3ODkw", false},

		{"too short", "short", true},
		{"empty", "", true},
		{"placeholder", "replace-with-secret", true},
		{"placeholder long", strings.Repeat("changeme", 8), true},
		{"low entropy", strings.Repeat("a", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSecret(tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateSecret(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}

	if len(secret) < MinSecretLength {
		t.Errorf("generated secret too short: %d chars", len(secret))
	}

	// A generated secret must pass its own validation
	if err := ValidateSecret(secret); err != nil {
		t.Errorf("generated secret failed validation: %v", err)
	}

	// Two secrets should never collide
	other, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}
	if secret == other {
		t.Error("two generated secrets are identical")
	}
}

func TestShannonEntropy(t *testing.T) {
	if e := shannonEntropy(""); e != 0 {
		t.Errorf("entropy of empty string = %f, want 0", e)
	}

	if e := shannonEntropy("aaaaaaaa"); e != 0 {
		t.Errorf("entropy of repeated char = %f, want 0", e)
	}

	low := shannonEntropy("abababab")
	high := shannonEntropy("xK9mP2vL8qR5tY7w")
	if low >= high {
		t.Errorf("expected repeated pattern entropy (%f) < random entropy (%f)", low, high)
	}
}
