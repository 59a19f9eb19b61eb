package security

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpener(t *testing.T) *Opener {
	t.Helper()
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	o, err := NewOpener(priv)
	require.NoError(t, err)
	require.Equal(t, pub, o.PublicKey())
	return o
}

func TestSealOpen(t *testing.T) {
	o := newTestOpener(t)
	plaintext := []byte("14/03/2024, 10:00 - Alice: секрет 😀")

	env, err := Seal(o.PublicKey(), plaintext)
	require.NoError(t, err)

	got, err := o.Open(env)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	again, err := Seal(o.PublicKey(), plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, env.Ciphertext, again.Ciphertext)
	assert.NotEqual(t, env.ClientPublicKey, again.ClientPublicKey)
}

func TestOpen_Failures(t *testing.T) {
	o := newTestOpener(t)
	env, err := Seal(o.PublicKey(), []byte("hello"))
	require.NoError(t, err)

	testCases := []struct {
		name   string
		mutate func(e *Envelope)
	}{
		{"поврежденный шифртекст", func(e *Envelope) {
			raw, _ := base64.StdEncoding.DecodeString(e.Ciphertext)
			raw[0] ^= 0xff
			e.Ciphertext = base64.StdEncoding.EncodeToString(raw)
		}},
		{"короткий nonce", func(e *Envelope) { e.Nonce = base64.StdEncoding.EncodeToString(make([]byte, 12)) }},
		{"не base64", func(e *Envelope) { e.Ciphertext = "%%%" }},
		{"неверный ключ клиента", func(e *Envelope) { e.ClientPublicKey = "c2hvcnQ=" }},
		{"чужой ключ клиента", func(e *Envelope) {
			_, pub, _ := GenerateKeyPair()
			e.ClientPublicKey = pub
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			broken := env
			tc.mutate(&broken)
			_, err := o.Open(broken)
			assert.ErrorIs(t, err, ErrDecrypt)
		})
	}

	t.Run("другой сервер", func(t *testing.T) {
		other := newTestOpener(t)
		_, err := other.Open(env)
		assert.ErrorIs(t, err, ErrDecrypt)
	})
}

func TestKeys(t *testing.T) {
	_, err := NewOpener("not a key")
	assert.ErrorIs(t, err, ErrBadKey)

	_, err = Seal("c2hvcnQ=", []byte("x"))
	assert.ErrorIs(t, err, ErrBadKey)
}
