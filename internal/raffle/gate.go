package raffle

import (
	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/models"
)

// IsAuthority reports whether key created the raffle.
func IsAuthority(r *models.Raffle, key solana.PublicKey) bool {
	return r.Authority.Equals(key)
}

// IsOpen reports whether tickets may still be bought at now (Unix seconds).
func IsOpen(r *models.Raffle, now int64) bool {
	return now < r.Ends
}
