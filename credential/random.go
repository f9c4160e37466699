package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/google/uuid"
)

const (
	tokenRawSize     = 24 // 192 bits
	sessionIDRawSize = 32 // 256 bits
)

// GenerateToken returns a single-use secret for verification and reset links,
// base64url encoded without padding.
func GenerateToken() (string, error) {
	var raw [tokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// GenerateSessionID returns a 256-bit random identifier, lowercase hex.
func GenerateSessionID() (string, error) {
	var raw [sessionIDRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// HashToken returns the SHA-256 hex digest stored in place of a raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewUserID returns a random (v4) UUID string.
func NewUserID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id has the shape produced by GenerateSessionID.
func ValidSessionID(id string) bool {
	if len(id) != sessionIDRawSize*2 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
