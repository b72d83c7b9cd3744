package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	secret := "s3cret"
	body := []byte(`{"type":"payment","data":{"id":123}}`)

	t.Run("valid signature", func(t *testing.T) {
		sig := Sign(secret, body)
		assert.NoError(t, VerifySignature(secret, body, sig))
	})

	t.Run("missing secret", func(t *testing.T) {
		err := VerifySignature("", body, Sign(secret, body))
		assert.ErrorIs(t, err, ErrMissingSecret)
	})

	t.Run("missing signature", func(t *testing.T) {
		err := VerifySignature(secret, body, "")
		assert.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		sig := Sign("other-secret", body)
		err := VerifySignature(secret, body, sig)
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := Sign(secret, body)
		tampered := append([]byte{}, body...)
		tampered[len(tampered)-2] = '4'
		err := VerifySignature(secret, tampered, sig)
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("signature is deterministic", func(t *testing.T) {
		require.Equal(t, Sign(secret, body), Sign(secret, body))
	})
}
