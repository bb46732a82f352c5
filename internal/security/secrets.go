package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

const (
	// MinSecretLength is the minimum allowed length for webhook secrets.
	MinSecretLength = 32

	// MinEntropy is the minimum Shannon entropy threshold for secrets.
	MinEntropy = 3.0
)

var placeholderSecrets = map[string]bool{
	"replace-with-secret":             true,
	"github-webhook-password":         true,
	"skill-metadata-webhook-secret":   true,
	"topsecret":                       true,
	"secret":                          true,
	"password":                        true,
	"changeme":                        true,
	"min-32-char-webhook-secret-here": true,
}

// ValidateSecret ensures a webhook secret meets minimum requirements:
// long enough, not a placeholder, and with enough Shannon entropy that it
// was plausibly generated rather than typed.
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("secret too short (minimum %d characters, got %d)", MinSecretLength, len(secret))
	}

	secretLower := strings.ToLower(secret)
	if placeholderSecrets[secretLower] {
		return fmt.Errorf("secret appears to be a placeholder value, please use a real secret")
	}
	if strings.Contains(secretLower, "replace") || strings.Contains(secretLower, "changeme") {
		return fmt.Errorf("secret appears to be a placeholder value")
	}

	if entropy := shannonEntropy(secret); entropy < MinEntropy {
		return fmt.Errorf("secret has insufficient entropy (%.2f < %.2f) - use a more random secret", entropy, MinEntropy)
	}

	return nil
}

// GenerateSecret creates a cryptographically secure random secret,
// returned as a base64-encoded string of at least MinSecretLength characters.
func GenerateSecret() (string, error) {
	bytes := make([]byte, 33)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// shannonEntropy computes the Shannon entropy of a string.
// Higher values indicate more randomness.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, c := range s {
		freq[c]++
	}

	var entropy float64
	length := float64(len(s))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}

	return entropy
}
