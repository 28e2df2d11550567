// Package envelope implements authenticated envelope encryption for
// credential fields stored at rest. Every field is sealed with a data key
// derived from the platform master key and a per-write random salt, so two
// encryptions of the same value never produce the same ciphertext.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"donorplane/pkg/errutil"
)

const (
	ivSize     = 16
	saltSize   = 64
	tagSize    = 16
	keySize    = 32
	iterations = 100_000

	// MaskedSentinel replaces any value too short (or too sensitive) to
	// reveal a suffix of.
	MaskedSentinel = "****"
)

var (
	ErrMalformedEnvelope    = errutil.New(errutil.StatusUnprocessableEntity, "malformed credential envelope")
	ErrAuthenticationFailed = errutil.New(errutil.StatusUnprocessableEntity, "credential envelope failed authentication")
	ErrKeyDerivation        = errutil.New(errutil.StatusInternal, "encryption master key missing or malformed")
)

// ParseMasterKey accepts the master key either as a 64 character hex string
// or as a raw 32 byte string. Anything else is a configuration error the
// caller must treat as fatal.
func ParseMasterKey(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrKeyDerivation
	}
	if len(s) == hex.EncodedLen(keySize) {
		key, err := hex.DecodeString(s)
		if err == nil {
			return key, nil
		}
	}
	if len(s) == keySize {
		return []byte(s), nil
	}
	return nil, errutil.New(errutil.StatusInternal, "encryption master key missing or malformed",
		errutil.WithErr(fmt.Errorf("master key must be %d raw bytes or %d hex characters", keySize, hex.EncodedLen(keySize))))
}

func deriveKey(masterKey, salt []byte) ([]byte, error) {
	if len(masterKey) != keySize {
		return nil, errutil.New(errutil.StatusInternal, "encryption master key missing or malformed",
			errutil.WithErr(fmt.Errorf("master key length %d, want %d", len(masterKey), keySize)))
	}
	return pbkdf2.Key(masterKey, salt, iterations, keySize, sha256.New), nil
}

// Encrypt seals plaintext under a key derived from masterKey and a fresh
// salt, returning the iv:salt:tag:ciphertext envelope with each part
// base64 encoded. Key derivation is deliberately slow.
func Encrypt(plaintext string, masterKey []byte) (string, error) {
	if plaintext == "" {
		return "", errutil.BadRequest("cannot encrypt empty value")
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("iv gen: %w", err)
	}
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("salt gen: %w", err)
	}

	key, err := deriveKey(masterKey, salt)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("cipher init: %w", err)
	}
	aesgcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", fmt.Errorf("gcm init: %w", err)
	}

	sealed := aesgcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	enc := base64.StdEncoding.EncodeToString
	return strings.Join([]string{enc(iv), enc(salt), enc(tag), enc(ciphertext)}, ":"), nil
}

// Decrypt opens an envelope produced by Encrypt. Authentication failure is
// a hard stop: no partial plaintext is ever returned.
func Decrypt(env string, masterKey []byte) (string, error) {
	iv, salt, tag, ciphertext, err := split(env)
	if err != nil {
		return "", err
	}

	key, err := deriveKey(masterKey, salt)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errutil.New(errutil.StatusInternal, "encryption master key missing or malformed", errutil.WithErr(err))
	}
	aesgcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", fmt.Errorf("gcm init: %w", err)
	}

	plain, err := aesgcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrAuthenticationFailed
	}
	return string(plain), nil
}

// IsEnvelope reports whether s has the exact shape of a serialized
// envelope. The check is deliberately conservative (field count, base64
// validity, component lengths) so ordinary plaintext containing colons is
// never mistaken for ciphertext.
func IsEnvelope(s string) bool {
	_, _, _, _, err := split(s)
	return err == nil
}

func split(env string) (iv, salt, tag, ciphertext []byte, err error) {
	parts := strings.Split(env, ":")
	if len(parts) != 4 {
		return nil, nil, nil, nil, ErrMalformedEnvelope
	}
	decoded := make([][]byte, 4)
	for i, p := range parts {
		if p == "" {
			return nil, nil, nil, nil, ErrMalformedEnvelope
		}
		b, derr := base64.StdEncoding.DecodeString(p)
		if derr != nil {
			return nil, nil, nil, nil, ErrMalformedEnvelope
		}
		decoded[i] = b
	}
	if len(decoded[0]) != ivSize || len(decoded[1]) != saltSize || len(decoded[2]) != tagSize || len(decoded[3]) == 0 {
		return nil, nil, nil, nil, ErrMalformedEnvelope
	}
	return decoded[0], decoded[1], decoded[2], decoded[3], nil
}

// Mask returns a display-safe form of a credential: the last four
// characters preceded by the fence. Values of four characters or fewer
// collapse to the sentinel so nothing real is revealed.
func Mask(s string) string {
	if len(s) <= 4 {
		return MaskedSentinel
	}
	return MaskedSentinel + s[len(s)-4:]
}
