// Package draw selects raffle winners from a committed ticket set and a
// blockhash, so anyone holding the same inputs computes the same winners.
package draw

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/gagliardetto/solana-go"
)

// Entry is one ticket and the wallet that bought it.
type Entry struct {
	Ticket      solana.PublicKey `json:"ticket"`
	Participant solana.PublicKey `json:"participant"`
}

type Result struct {
	Commitment [32]byte `json:"commitment"`
	Seed       [32]byte `json:"seed"`
	Winners    []Entry  `json:"winners"`
}

// Sort orders entries by ticket key, in place.
func Sort(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Ticket[:], entries[j].Ticket[:]) < 0
	})
}

// Commitment hashes the ticket keys of sorted entries.
func Commitment(sorted []Entry) [32]byte {
	h := sha256.New()
	for _, e := range sorted {
		h.Write(e.Ticket[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func Seed(blockhash solana.Hash, commitment [32]byte) [32]byte {
	h := sha256.New()
	h.Write(blockhash[:])
	h.Write(commitment[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Select draws up to winners distinct tickets. Entries are copied and sorted
// first, so the caller's order does not matter.
func Select(entries []Entry, blockhash solana.Hash, winners int) Result {
	pool := append([]Entry(nil), entries...)
	Sort(pool)

	res := Result{Commitment: Commitment(pool)}
	res.Seed = Seed(blockhash, res.Commitment)

	k := winners
	if k > len(pool) {
		k = len(pool)
	}
	if k < 0 {
		k = 0
	}
	for i := 0; i < k; i++ {
		j := i + int(draw(res.Seed, uint64(i))%uint64(len(pool)-i))
		pool[i], pool[j] = pool[j], pool[i]
	}
	res.Winners = pool[:k]
	return res
}

func draw(seed [32]byte, round uint64) uint64 {
	var buf [40]byte
	copy(buf[:32], seed[:])
	binary.LittleEndian.PutUint64(buf[32:], round)
	sum := sha256.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[:8])
}
