package envelope

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for _, plaintext := range []string{"sk_live_abc123", "x", "value:with:colons", strings.Repeat("a", 4096)} {
		env, err := Encrypt(plaintext, testKey)
		require.NoError(t, err)

		got, err := Decrypt(env, testKey)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	_, err := Encrypt("", testKey)
	require.Error(t, err)
}

func TestEncryptFreshness(t *testing.T) {
	a, err := Encrypt("pk_live_abc", testKey)
	require.NoError(t, err)
	b, err := Encrypt("pk_live_abc", testKey)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptWrongKey(t *testing.T) {
	env, err := Encrypt("sk_live_abc", testKey)
	require.NoError(t, err)

	other := []byte("ffffffffffffffffffffffffffffffff")
	_, err = Decrypt(env, other)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	env, err := Encrypt("sk_live_abc123", testKey)
	require.NoError(t, err)

	// flip one byte in the ciphertext and in the tag, separately
	for _, idx := range []int{2, 3} {
		parts := strings.Split(env, ":")
		raw, err := base64.StdEncoding.DecodeString(parts[idx])
		require.NoError(t, err)
		raw[0] ^= 0x01
		parts[idx] = base64.StdEncoding.EncodeToString(raw)

		_, err = Decrypt(strings.Join(parts, ":"), testKey)
		require.ErrorIs(t, err, ErrAuthenticationFailed)
	}
}

func TestDecryptMalformed(t *testing.T) {
	for _, env := range []string{
		"",
		"plaintext",
		"a:b:c",
		"a:b:c:d:e",
		"not-base64!:YWJj:YWJj:YWJj",
		"value:with:three:colons",
	} {
		_, err := Decrypt(env, testKey)
		require.ErrorIs(t, err, ErrMalformedEnvelope, "input %q", env)
	}
}

func TestDecryptBadMasterKey(t *testing.T) {
	env, err := Encrypt("sk_live_abc", testKey)
	require.NoError(t, err)

	_, err = Decrypt(env, []byte("short"))
	require.ErrorIs(t, err, ErrKeyDerivation)

	_, err = Decrypt(env, nil)
	require.ErrorIs(t, err, ErrKeyDerivation)
}

func TestIsEnvelope(t *testing.T) {
	env, err := Encrypt("sk_live_abc", testKey)
	require.NoError(t, err)
	require.True(t, IsEnvelope(env))

	require.False(t, IsEnvelope("sk_live_abc"))
	require.False(t, IsEnvelope("value:with:three:colons"))
	require.False(t, IsEnvelope("YWJj:YWJj:YWJj:YWJj")) // valid base64, wrong lengths
	require.False(t, IsEnvelope(""))
}

func TestParseMasterKey(t *testing.T) {
	raw := parseMasterKeyOK(t, string(testKey))
	require.Equal(t, testKey, raw)

	hexKey := hex.EncodeToString(testKey)
	parsed := parseMasterKeyOK(t, hexKey)
	require.Equal(t, testKey, parsed)

	_, err := ParseMasterKey("")
	require.ErrorIs(t, err, ErrKeyDerivation)

	_, err = ParseMasterKey("too-short")
	require.Error(t, err)
}

func parseMasterKeyOK(t *testing.T, s string) []byte {
	t.Helper()
	key, err := ParseMasterKey(s)
	require.NoError(t, err)
	return key
}

func TestMask(t *testing.T) {
	require.Equal(t, "****c123", Mask("sk_live_abc123"))
	require.Equal(t, "****", Mask("abcd"))
	require.Equal(t, "****", Mask(""))
	require.Equal(t, "****bcde", Mask("abcde"))
}
