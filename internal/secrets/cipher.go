// Package secrets seals and opens token bundles with AES-256-GCM.
//
// A sealed bundle is the only form a live Xero credential takes at rest, so
// the cipher is authenticated: a tag that fails verification is surfaced as
// ErrIntegrity and never decoded further.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bobmcallan/ledgerlink/internal/models"
)

const (
	// KeySize is the required AES-256 key length in bytes.
	KeySize = 32

	ivSize  = 12
	tagSize = 16
)

var (
	// ErrKeyConfig indicates a missing or mis-sized encryption key.
	ErrKeyConfig = errors.New("encryption key must be exactly 32 bytes")

	// ErrIntegrity indicates ciphertext that failed tag verification —
	// tampering or a key mismatch. Never retried.
	ErrIntegrity = errors.New("ciphertext failed authentication")
)

// DecodeKey decodes a base64 key from configuration and validates its size.
// An empty or malformed value is a startup fault, not a runtime error.
func DecodeKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: key not configured", ErrKeyConfig)
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", ErrKeyConfig)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrKeyConfig, len(key))
	}
	return key, nil
}

// Seal serializes and encrypts a token bundle under key, generating a fresh
// random 96-bit IV per call. Ciphertext, IV, and tag are returned base64
// encoded so they can be persisted as independent columns.
func Seal(bundle *models.TokenBundle, key []byte) (*models.SealedBundle, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize token bundle: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	// GCM appends the tag to the ciphertext; split it for storage.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return &models.SealedBundle{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Tag:        base64.StdEncoding.EncodeToString(tag),
	}, nil
}

// Open verifies and decrypts a sealed bundle. Tag verification failure is
// returned as ErrIntegrity; there is no fallback to treating the ciphertext
// as plaintext.
func Open(sealed *models.SealedBundle, key []byte) (*models.TokenBundle, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(sealed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed ciphertext", ErrIntegrity)
	}
	iv, err := base64.StdEncoding.DecodeString(sealed.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed iv", ErrIntegrity)
	}
	tag, err := base64.StdEncoding.DecodeString(sealed.Tag)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed tag", ErrIntegrity)
	}
	if len(iv) != ivSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrIntegrity, ivSize)
	}

	plaintext, err := aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, ErrIntegrity
	}

	var bundle models.TokenBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode token bundle: %w", err)
	}
	return &bundle, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrKeyConfig, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return aead, nil
}
