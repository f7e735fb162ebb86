// Package fieldcrypt reveals field-level encrypted personal data.
//
// Encrypted values are stored as hex(iv):hex(tag):hex(ciphertext) using
// AES-256-GCM. Anything that does not have that shape is treated as
// plaintext and returned unchanged, and a value that has the shape but
// fails to decrypt is also returned unchanged: a bad field must never make
// a record disappear from a listing.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"stall-backend/internal/metrics"

	"golang.org/x/crypto/scrypt"
)

const (
	ivSize  = 12
	tagSize = 16
)

var keySalt = []byte("stallmarket.fieldcrypt.v1")

// Revealer is the read side used by the services.
type Revealer interface {
	Reveal(value string) string
}

// Cipher implements Revealer. A Cipher built from an empty key is a
// pass-through: it reveals nothing and refuses to encrypt.
type Cipher struct {
	aead cipher.AEAD
}

// New derives the AES key from the configured secret with scrypt.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return &Cipher{}, nil
	}

	key, err := scrypt.Key([]byte(secret), keySalt, 1<<14, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive field key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init aes: %w", err)
	}
	aead, err := cipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// LooksEncrypted is the shape heuristic: three colon-separated hex parts
// with a 12-byte iv and 16-byte tag.
func LooksEncrypted(value string) bool {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return false
	}
	if len(parts[0]) != ivSize*2 || len(parts[1]) != tagSize*2 || len(parts[2]) == 0 {
		return false
	}
	for _, p := range parts {
		if len(p)%2 != 0 || !isHex(p) {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// Reveal never fails. Decryption errors are logged and counted.
func (c *Cipher) Reveal(value string) string {
	if c == nil || c.aead == nil || !LooksEncrypted(value) {
		return value
	}
	plain, err := c.Decrypt(value)
	if err != nil {
		metrics.ObserveDecryptFailure()
		slog.Warn("field decryption failed, returning stored value", "error", err)
		return value
	}
	return plain
}

// Decrypt is the strict variant used by tests and tooling.
func (c *Cipher) Decrypt(value string) (string, error) {
	if c == nil || c.aead == nil {
		return "", errors.New("field encryption key not configured")
	}
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return "", errors.New("value is not in iv:tag:ciphertext form")
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode tag: %w", err)
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(iv) != ivSize || len(tag) != tagSize {
		return "", errors.New("unexpected iv or tag length")
	}

	plain, err := c.aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plain), nil
}

// Encrypt produces the stored form. Empty strings are stored as-is.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if c == nil || c.aead == nil {
		return "", errors.New("field encryption key not configured")
	}
	if plain == "" {
		return "", nil
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plain), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// RevealAll reveals each field in place, independently of the others.
func RevealAll(r Revealer, fields ...*string) {
	if r == nil {
		return
	}
	for _, f := range fields {
		if f != nil && *f != "" {
			*f = r.Reveal(*f)
		}
	}
}

// Passthrough reveals nothing; used when no key is configured in tests.
type Passthrough struct{}

func (Passthrough) Reveal(value string) string { return value }
