package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/bobmcallan/ledgerlink/internal/models"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := testKey(t)
	bundle := &models.TokenBundle{
		AccessToken:  "access-abc123",
		RefreshToken: "refresh-def456",
		ExpiresIn:    1800,
	}

	sealed, err := Seal(bundle, key)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if sealed.Ciphertext == "" || sealed.IV == "" || sealed.Tag == "" {
		t.Fatal("expected non-empty ciphertext, iv, and tag")
	}

	got, err := Open(sealed, key)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if *got != *bundle {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, bundle)
	}
}

func TestSeal_FreshIVPerCall(t *testing.T) {
	key := testKey(t)
	bundle := &models.TokenBundle{AccessToken: "a", RefreshToken: "r", ExpiresIn: 1800}

	first, err := Seal(bundle, key)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	second, err := Seal(bundle, key)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if first.IV == second.IV {
		t.Error("expected a fresh iv per call")
	}
	if first.Ciphertext == second.Ciphertext {
		t.Error("expected distinct ciphertexts for distinct ivs")
	}
}

// flipBit decodes a base64 field, flips one bit, and re-encodes it.
func flipBit(t *testing.T, encoded string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode field: %v", err)
	}
	raw[0] ^= 0x01
	return base64.StdEncoding.EncodeToString(raw)
}

func TestOpen_TamperDetection(t *testing.T) {
	key := testKey(t)
	bundle := &models.TokenBundle{AccessToken: "a", RefreshToken: "r", ExpiresIn: 1800}

	sealed, err := Seal(bundle, key)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(s models.SealedBundle) models.SealedBundle
	}{
		{"ciphertext", func(s models.SealedBundle) models.SealedBundle {
			s.Ciphertext = flipBit(t, s.Ciphertext)
			return s
		}},
		{"iv", func(s models.SealedBundle) models.SealedBundle {
			s.IV = flipBit(t, s.IV)
			return s
		}},
		{"tag", func(s models.SealedBundle) models.SealedBundle {
			s.Tag = flipBit(t, s.Tag)
			return s
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mutated := tc.mutate(*sealed)
			_, err := Open(&mutated, key)
			if !errors.Is(err, ErrIntegrity) {
				t.Errorf("expected ErrIntegrity, got %v", err)
			}
		})
	}
}

func TestOpen_WrongKey(t *testing.T) {
	key := testKey(t)
	other := testKey(t)
	bundle := &models.TokenBundle{AccessToken: "a", RefreshToken: "r", ExpiresIn: 1800}

	sealed, err := Seal(bundle, key)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	_, err = Open(sealed, other)
	if !errors.Is(err, ErrIntegrity) {
		t.Errorf("expected ErrIntegrity for wrong key, got %v", err)
	}
}

func TestSeal_BadKeySize(t *testing.T) {
	bundle := &models.TokenBundle{AccessToken: "a", RefreshToken: "r"}
	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := Seal(bundle, make([]byte, size))
		if !errors.Is(err, ErrKeyConfig) {
			t.Errorf("key size %d: expected ErrKeyConfig, got %v", size, err)
		}
	}
}

func TestDecodeKey(t *testing.T) {
	valid := base64.StdEncoding.EncodeToString(make([]byte, KeySize))

	key, err := DecodeKey(valid)
	if err != nil {
		t.Fatalf("DecodeKey failed: %v", err)
	}
	if len(key) != KeySize {
		t.Errorf("expected %d-byte key, got %d", KeySize, len(key))
	}

	for _, bad := range []string{"", "not-base64!!!", base64.StdEncoding.EncodeToString(make([]byte, 16))} {
		if _, err := DecodeKey(bad); !errors.Is(err, ErrKeyConfig) {
			t.Errorf("DecodeKey(%q): expected ErrKeyConfig, got %v", bad, err)
		}
	}
}
