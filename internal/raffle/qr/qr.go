// Package qr renders a ticket as a QR code carrying an encrypted proof of
// ownership that the raffle node can later read back.
package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidPayload = errors.New("invalid qr payload")

// TicketProof is what a ticket QR code encodes.
type TicketProof struct {
	Ticket      string    `json:"ticket"`
	Raffle      string    `json:"raffle"`
	Participant string    `json:"participant"`
	Slot        uint64    `json:"slot"`
	IssuedAt    time.Time `json:"issued_at"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// Encrypt returns the URL-safe ciphertext that the QR code carries.
func (q *QRGenerator) Encrypt(proof TicketProof) (string, error) {
	data, err := json.Marshal(proof)
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

// GenerateEncryptedQR renders proof as a size x size PNG.
func (q *QRGenerator) GenerateEncryptedQR(proof TicketProof, size int) ([]byte, error) {
	encrypted, err := q.Encrypt(proof)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(encrypted, qrcode.Medium, size)
}

// DecryptQRData reverses Encrypt.
func (q *QRGenerator) DecryptQRData(encrypted string) (*TicketProof, error) {
	data, err := decryptAES(encrypted, q.secret)
	if err != nil {
		return nil, err
	}
	var proof TicketProof
	if err := json.Unmarshal(data, &proof); err != nil {
		return nil, ErrInvalidPayload
	}
	if proof.Ticket == "" || proof.Raffle == "" {
		return nil, ErrInvalidPayload
	}
	return &proof, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encryptAES(data []byte, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrInvalidPayload
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	return data, nil
}
