package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

var (
	// ErrEmptyPassword is returned by Hash when the plaintext is empty.
	ErrEmptyPassword = errors.New("password must not be empty")
)

var encoding = base64.RawStdEncoding

// Config holds the Argon2id cost parameters. Every hash produced by one
// [Argon2] instance uses the same parameters.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the parameters used when the engine is built without
// explicit password settings.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  32,
		KeyLength:   32,
	}
}

// Argon2 hashes and verifies passwords with Argon2id.
//
// Argon2 is immutable after construction and safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

// Config returns the active cost parameters.
func (a *Argon2) Config() Config {
	return a.config
}

// Hash derives a key from password using a fresh random salt. Both values are
// returned base64 encoded (standard alphabet, no padding) and must be stored
// together.
func (a *Argon2) Hash(password string) (hash string, salt string, err error) {
	// Password processing uses raw string bytes exactly as provided (no Unicode normalization).
	if password == "" {
		return "", "", ErrEmptyPassword
	}

	rawSalt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, rawSalt); err != nil {
		return "", "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		rawSalt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return encoding.EncodeToString(key), encoding.EncodeToString(rawSalt), nil
}

// Verify recomputes the key for password with the stored salt and compares it
// in constant time. Malformed inputs report false rather than an error.
func (a *Argon2) Verify(password, hash, salt string) bool {
	if a == nil || password == "" || hash == "" || salt == "" {
		return false
	}

	rawSalt, err := encoding.DecodeString(salt)
	if err != nil || len(rawSalt) < int(minSaltLength) {
		return false
	}
	expected, err := encoding.DecodeString(hash)
	if err != nil || len(expected) == 0 {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password),
		rawSalt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}
