package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
	if len(key1) != KeySize {
		t.Errorf("expected %d byte key, got %d", KeySize, len(key1))
	}
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	password := []byte("secret-password")

	if bytes.Equal(DeriveKey(password, []byte("salt-1")), DeriveKey(password, []byte("salt-2"))) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	require.Len(t, salt, SaltSize)

	key := DeriveKey([]byte("pw"), salt)

	sealed, err := Seal([]byte("eyJhbGciOi.access"), key)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), "access")

	plain, err := Open(sealed, key)
	require.NoError(t, err)
	require.Equal(t, "eyJhbGciOi.access", string(plain))
}

func TestSeal_UsesFreshNonce(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("salt"))

	a, err := Seal([]byte("same"), key)
	require.NoError(t, err)
	b, err := Seal([]byte("same"), key)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestOpen_WrongKeyFails(t *testing.T) {
	sealed, err := Seal([]byte("token"), DeriveKey([]byte("a"), []byte("salt")))
	require.NoError(t, err)

	_, err = Open(sealed, DeriveKey([]byte("b"), []byte("salt")))
	require.Error(t, err)
}

func TestOpen_Malformed(t *testing.T) {
	_, err := Open([]byte{1, 2, 3}, DeriveKey([]byte("a"), []byte("salt")))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestSeal_BadKeyLength(t *testing.T) {
	_, err := Seal([]byte("x"), []byte("short"))
	require.Error(t, err)
}
