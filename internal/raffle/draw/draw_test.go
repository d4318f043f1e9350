package draw_test

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffles/internal/raffle/draw"
)

func entries(n int) []draw.Entry {
	out := make([]draw.Entry, n)
	for i := range out {
		out[i] = draw.Entry{Ticket: solana.NewWallet().PublicKey(), Participant: solana.NewWallet().PublicKey()}
	}
	return out
}

func TestSelectIsDeterministic(t *testing.T) {
	pool := entries(20)
	hash := solana.Hash{1, 2, 3}

	first := draw.Select(pool, hash, 3)

	// Test case: input order does not change the outcome
	reversed := make([]draw.Entry, len(pool))
	for i := range pool {
		reversed[len(pool)-1-i] = pool[i]
	}
	second := draw.Select(reversed, hash, 3)
	assert.Equal(t, first, second)

	// Test case: a different blockhash gives a different seed
	other := draw.Select(pool, solana.Hash{9}, 3)
	assert.Equal(t, first.Commitment, other.Commitment)
	assert.NotEqual(t, first.Seed, other.Seed)
}

func TestSelectWithoutReplacement(t *testing.T) {
	pool := entries(10)
	res := draw.Select(pool, solana.Hash{4}, 10)
	require.Len(t, res.Winners, 10)

	seen := make(map[solana.PublicKey]bool)
	for _, w := range res.Winners {
		assert.False(t, seen[w.Ticket])
		seen[w.Ticket] = true
	}
}

func TestSelectCapsAtTicketCount(t *testing.T) {
	assert.Len(t, draw.Select(entries(2), solana.Hash{}, 5).Winners, 2)
	assert.Empty(t, draw.Select(nil, solana.Hash{}, 1).Winners)
}

func TestCommitmentDependsOnTicketSet(t *testing.T) {
	pool := entries(4)
	draw.Sort(pool)
	full := draw.Commitment(pool)
	partial := draw.Commitment(pool[:3])
	assert.NotEqual(t, full, partial)
}
