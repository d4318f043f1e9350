package qr_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffles/internal/raffle/qr"
)

func sampleProof() qr.TicketProof {
	return qr.TicketProof{
		Ticket:      "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Raffle:      "4ZEPy6oo8oHzbU6bkiY2m8pLb7aNzyzZaMpAZ6CeZQQf",
		Participant: "BPFLoaderUpgradeab1e11111111111111111111111",
		Slot:        42,
		IssuedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGenerateEncryptedQR(t *testing.T) {
	gen := qr.NewQRGenerator("test-secret-key")

	png, err := gen.GenerateEncryptedQR(sampleProof(), 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	gen := qr.NewQRGenerator("test-secret-key")

	encrypted, err := gen.Encrypt(sampleProof())
	require.NoError(t, err)

	again, err := gen.Encrypt(sampleProof())
	require.NoError(t, err)
	assert.NotEqual(t, encrypted, again, "each encryption uses a fresh nonce")

	proof, err := gen.DecryptQRData(encrypted)
	require.NoError(t, err)
	assert.Equal(t, sampleProof(), *proof)
}

func TestDecryptRejectsForeignPayloads(t *testing.T) {
	gen := qr.NewQRGenerator("test-secret-key")
	other := qr.NewQRGenerator("another-secret")

	encrypted, err := other.Encrypt(sampleProof())
	require.NoError(t, err)

	for name, payload := range map[string]string{
		"wrong key":  encrypted,
		"not base64": "%%%",
		"too short":  "AAAA",
		"empty":      "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := gen.DecryptQRData(payload)
			assert.ErrorIs(t, err, qr.ErrInvalidPayload)
		})
	}
}
