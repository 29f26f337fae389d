package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer(DeriveSealerKey("sealer-test-key"))
	require.NoError(t, err)
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	s := newTestSealer(t)
	secret := []byte("JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP")
	aad := []byte("mfa-secret:user-1")

	env, err := s.Seal(secret, aad)
	require.NoError(t, err)
	require.Len(t, env.IV, SealerIVSize)
	require.Len(t, env.Tag, SealerTagSize)
	require.NotContains(t, string(env.Ciphertext), string(secret))

	out, err := s.Open(env, aad)
	require.NoError(t, err)
	require.Equal(t, secret, out)
}

func TestSealer_FreshIVPerSeal(t *testing.T) {
	s := newTestSealer(t)

	a, err := s.Seal([]byte("same"), nil)
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"), nil)
	require.NoError(t, err)

	require.False(t, bytes.Equal(a.IV, b.IV))
	require.False(t, bytes.Equal(a.Ciphertext, b.Ciphertext) && bytes.Equal(a.Tag, b.Tag))
}

func TestSealer_TamperingFails(t *testing.T) {
	s := newTestSealer(t)
	aad := []byte("mfa-secret:user-1")

	env, err := s.Seal([]byte("a secret worth keeping"), aad)
	require.NoError(t, err)

	flip := func(b []byte, i int) []byte {
		out := bytes.Clone(b)
		out[i] ^= 0x01
		return out
	}

	t.Run("ciphertext", func(t *testing.T) {
		for i := range env.Ciphertext {
			bad := env
			bad.Ciphertext = flip(env.Ciphertext, i)
			_, err := s.Open(bad, aad)
			require.ErrorIs(t, err, ErrDecryptFailed)
		}
	})

	t.Run("iv", func(t *testing.T) {
		bad := env
		bad.IV = flip(env.IV, 0)
		_, err := s.Open(bad, aad)
		require.ErrorIs(t, err, ErrDecryptFailed)
	})

	t.Run("tag", func(t *testing.T) {
		bad := env
		bad.Tag = flip(env.Tag, SealerTagSize-1)
		_, err := s.Open(bad, aad)
		require.ErrorIs(t, err, ErrDecryptFailed)
	})

	t.Run("additional data", func(t *testing.T) {
		_, err := s.Open(env, []byte("mfa-secret:user-2"))
		require.ErrorIs(t, err, ErrDecryptFailed)
	})

	t.Run("truncated iv", func(t *testing.T) {
		bad := env
		bad.IV = env.IV[:4]
		_, err := s.Open(bad, aad)
		require.ErrorIs(t, err, ErrEnvelope)
	})
}

func TestSealer_WrongKey(t *testing.T) {
	a := newTestSealer(t)
	b, err := NewSealer(DeriveSealerKey("another-key"))
	require.NoError(t, err)

	env, err := a.Seal([]byte("secret"), nil)
	require.NoError(t, err)

	_, err = b.Open(env, nil)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestSealer_FailsClosedWithoutKey(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	require.ErrorIs(t, err, ErrSealerKey)

	var s *Sealer
	_, err = s.Seal([]byte("x"), nil)
	require.ErrorIs(t, err, ErrSealerDisabled)
	_, err = s.Open(Envelope{}, nil)
	require.ErrorIs(t, err, ErrSealerDisabled)
}

func TestEnvelope_EncodeParse(t *testing.T) {
	s := newTestSealer(t)
	env, err := s.Seal([]byte("transport"), []byte("mfa-setup:a@example.com"))
	require.NoError(t, err)

	parsed, err := ParseEnvelope(env.Encode())
	require.NoError(t, err)
	require.Equal(t, env, parsed)

	for _, bad := range []string{"", "a.b", "!!.b.c", "a.b.c.d"} {
		_, err := ParseEnvelope(bad)
		require.ErrorIs(t, err, ErrEnvelope, bad)
	}
}
