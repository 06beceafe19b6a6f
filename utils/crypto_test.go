package utils

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var (
	testKeyV1 = hex.EncodeToString(bytes.Repeat([]byte{0x11}, 32))
	testKeyV2 = hex.EncodeToString(bytes.Repeat([]byte{0x22}, 32))
)

func TestNewCipherValidation(t *testing.T) {
	if _, err := NewCipher(testKeyV1, 1); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	if _, err := NewCipher("not-hex", 1); err == nil {
		t.Error("non-hex key accepted")
	}
	if _, err := NewCipher(hex.EncodeToString([]byte("short")), 1); err == nil {
		t.Error("short key accepted")
	}
	if _, err := NewCipher(testKeyV1, 0); err == nil {
		t.Error("version 0 accepted")
	}
	if _, err := NewCipher(testKeyV1, 256); err == nil {
		t.Error("version 256 accepted")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCipher(testKeyV1, 1)
	if err != nil {
		t.Fatal(err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("decrypt inverts encrypt", prop.ForAll(
		func(plain string) bool {
			ct, err := c.Encrypt([]byte(plain))
			if err != nil {
				return false
			}
			pt, err := c.Decrypt(ct)
			return err == nil && string(pt) == plain
		},
		gen.AnyString(),
	))

	properties.Property("ciphertexts are versioned and nonce-unique", prop.ForAll(
		func(plain string) bool {
			a, err1 := c.Encrypt([]byte(plain))
			b, err2 := c.Encrypt([]byte(plain))
			if err1 != nil || err2 != nil {
				return false
			}
			return a[0] == 1 && b[0] == 1 && !bytes.Equal(a, b)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestDecryptTamperDetection(t *testing.T) {
	c, err := NewCipher(testKeyV1, 1)
	if err != nil {
		t.Fatal(err)
	}
	ct, err := c.Encrypt([]byte("mt5-password"))
	if err != nil {
		t.Fatal(err)
	}

	ct[len(ct)-1] ^= 0xFF
	if _, err := c.Decrypt(ct); err == nil {
		t.Error("tampered ciphertext accepted")
	}
}

func TestDecryptErrors(t *testing.T) {
	c, err := NewCipher(testKeyV1, 1)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Decrypt(nil); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("empty ciphertext: %v", err)
	}
	if _, err := c.Decrypt([]byte{1, 2, 3}); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("truncated ciphertext: %v", err)
	}
	if _, err := c.Decrypt([]byte{99}); !errors.Is(err, ErrUnknownKeyVersion) {
		t.Errorf("unknown version: %v", err)
	}
}

func TestKeyRotation(t *testing.T) {
	old, err := NewCipher(testKeyV1, 1)
	if err != nil {
		t.Fatal(err)
	}
	ct, err := old.Encrypt([]byte("issued-before-rotation"))
	if err != nil {
		t.Fatal(err)
	}

	// after rotation new rows use v2, old rows stay readable via AddKey
	rotated, err := NewCipher(testKeyV2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rotated.Decrypt(ct); !errors.Is(err, ErrUnknownKeyVersion) {
		t.Fatalf("v1 ciphertext should be unreadable before AddKey: %v", err)
	}
	if err := rotated.AddKey(testKeyV1, 1); err != nil {
		t.Fatal(err)
	}

	pt, err := rotated.Decrypt(ct)
	if err != nil {
		t.Fatalf("rotated cipher failed on old ciphertext: %v", err)
	}
	if string(pt) != "issued-before-rotation" {
		t.Errorf("got %q", pt)
	}

	fresh, err := rotated.Encrypt([]byte("new"))
	if err != nil {
		t.Fatal(err)
	}
	if fresh[0] != 2 {
		t.Errorf("new ciphertext should use version 2, got %d", fresh[0])
	}
}
