package ledger

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

const (
	AccountStorageOverhead = 128
	LamportsPerByteYear    = 3480
	ExemptionThresholdYrs  = 2

	// MaxRecentBlockhashes is how many slots a blockhash stays usable.
	MaxRecentBlockhashes = 150
)

// MinimumBalance is the rent-exempt reserve for an account holding dataLen bytes.
func MinimumBalance(dataLen int) uint64 {
	return uint64(AccountStorageOverhead+dataLen) * LamportsPerByteYear * ExemptionThresholdYrs
}

// GenesisBlockhash seeds the chain at slot 0.
func GenesisBlockhash() solana.Hash {
	return solana.Hash(sha256.Sum256([]byte("ms-raffles genesis")))
}

// NextBlockhash chains prev with the signature that produced the new slot.
func NextBlockhash(prev solana.Hash, sig solana.Signature, slot uint64) solana.Hash {
	h := sha256.New()
	h.Write(prev[:])
	h.Write(sig[:])
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], slot)
	h.Write(buf[:])
	var out solana.Hash
	copy(out[:], h.Sum(nil))
	return out
}
