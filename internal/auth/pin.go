// internal/auth/pin.go
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const hashPrefix = "argon2id$"

// HashPIN generates a salted Argon2id hash of the PIN, encoded as
// argon2id$<salt>$<hash> so it can be stored in an environment variable.
func HashPIN(pin string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(pin), salt, 1, 64*1024, 4, 32)

	return hashPrefix + base64.StdEncoding.EncodeToString(salt) + "$" + base64.StdEncoding.EncodeToString(hash), nil
}

// VerifyPIN compares a PIN with an encoded hash in constant time.
func VerifyPIN(pin, encoded string) (bool, error) {
	rest, ok := strings.CutPrefix(encoded, hashPrefix)
	if !ok {
		return false, fmt.Errorf("unsupported hash format")
	}
	saltPart, hashPart, ok := strings.Cut(rest, "$")
	if !ok {
		return false, fmt.Errorf("malformed hash")
	}

	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	hash, err := base64.StdEncoding.DecodeString(hashPart)
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	comparisonHash := argon2.IDKey([]byte(pin), salt, 1, 64*1024, 4, uint32(len(hash)))

	return subtle.ConstantTimeCompare(hash, comparisonHash) == 1, nil
}

// IsHashed reports whether s is already an encoded PIN hash.
func IsHashed(s string) bool {
	return strings.HasPrefix(s, hashPrefix)
}
