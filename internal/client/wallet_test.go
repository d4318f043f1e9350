package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffles/internal/client"
	"ms-raffles/internal/ledger"
	"ms-raffles/internal/logger"
	"ms-raffles/internal/raffle"
	"ms-raffles/internal/runtime"
	"ms-raffles/internal/system"
)

const (
	startUnix = 1_700_000_000
	oneSOL    = 1_000_000_000
)

var programID = solana.MustPublicKeyFromBase58("4ZEPy6oo8oHzbU6bkiY2m8pLb7aNzyzZaMpAZ6CeZQQf")

func setupRuntime(t *testing.T) (*runtime.Runtime, *runtime.ManualClock) {
	clock := runtime.NewManualClock(time.Unix(startUnix, 0))
	rt := runtime.New(ledger.NewMemoryStore(), clock, logger.NewDiscard(),
		system.NewProgram(),
		raffle.NewProgram(programID, logger.NewDiscard()),
	)
	return rt, clock
}

func fund(t *testing.T, rt *runtime.Runtime) solana.PrivateKey {
	key := solana.NewWallet().PrivateKey
	_, err := rt.Airdrop(context.Background(), key.PublicKey(), 10*oneSOL)
	require.NoError(t, err)
	return key
}

func raffleArgs(ends int64) raffle.CreateRaffleArgs {
	return raffle.CreateRaffleArgs{
		Price:       1_000_000,
		Ends:        ends,
		Title:       "Wallet raffle",
		Description: "Bought in batches",
		Image:       "https://images.example.com/w.png",
		Winners:     1,
	}
}

func TestWalletLifecycle(t *testing.T) {
	ctx := context.Background()
	rt, clock := setupRuntime(t)
	w := client.NewWallet(rt, programID, logger.NewDiscard())

	authority := fund(t, rt)
	participant := fund(t, rt)

	raffleKey, receipt, err := w.CreateRaffle(ctx, authority, raffleArgs(startUnix+60))
	require.NoError(t, err)
	assert.NotZero(t, receipt.Slot)

	// Test case: 30 purchases need two transactions
	slotBefore := receipt.Slot
	tickets, err := w.BuyTickets(ctx, participant, raffleKey, authority.PublicKey(), 30)
	require.NoError(t, err)
	assert.Len(t, tickets, 30)

	block, err := rt.LatestBlockhash(ctx)
	require.NoError(t, err)
	assert.Equal(t, slotBefore+2, block.Slot)

	acc, err := rt.GetAccount(ctx, raffleKey)
	require.NoError(t, err)
	r, err := raffle.DecodeRaffle(acc.Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), r.Tickets)

	// Test case: purchases after the end fail and buy nothing
	clock.Advance(2 * time.Minute)
	bought, err := w.BuyTickets(ctx, participant, raffleKey, authority.PublicKey(), 1)
	assert.ErrorIs(t, err, raffle.ErrRaffleEnded)
	assert.Empty(t, bought)

	_, err = w.EndRaffle(ctx, authority, raffleKey)
	require.NoError(t, err)
	_, err = rt.GetAccount(ctx, raffleKey)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	before, err := rt.Balance(ctx, participant.PublicKey())
	require.NoError(t, err)
	_, err = w.CloseTicket(ctx, participant, tickets[0], raffleKey)
	require.NoError(t, err)
	after, err := rt.Balance(ctx, participant.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, before+ledger.MinimumBalance(raffle.TicketSize), after)
}

func TestBuyTicketsRejectsNonPositiveCount(t *testing.T) {
	rt, _ := setupRuntime(t)
	w := client.NewWallet(rt, programID, logger.NewDiscard())
	_, err := w.BuyTickets(context.Background(), solana.NewWallet().PrivateKey, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), 0)
	assert.Error(t, err)
}

// staleNode fails the first submit with an expired blockhash.
type staleNode struct {
	*runtime.Runtime
	failures int
	submits  int
}

func (n *staleNode) Submit(ctx context.Context, tx *runtime.Transaction) (*runtime.Receipt, error) {
	n.submits++
	if n.failures > 0 {
		n.failures--
		return nil, ledger.ErrBlockhashNotFound
	}
	return n.Runtime.Submit(ctx, tx)
}

func TestWalletRetriesExpiredBlockhash(t *testing.T) {
	ctx := context.Background()
	rt, _ := setupRuntime(t)
	node := &staleNode{Runtime: rt, failures: 1}
	w := client.NewWallet(node, programID, logger.NewDiscard())

	_, _, err := w.CreateRaffle(ctx, fund(t, rt), raffleArgs(startUnix+60))
	require.NoError(t, err)
	assert.Equal(t, 2, node.submits)

	// Test case: a second expiry in a row is returned
	node.failures = 2
	node.submits = 0
	_, _, err = w.CreateRaffle(ctx, fund(t, rt), raffleArgs(startUnix+60))
	assert.ErrorIs(t, err, ledger.ErrBlockhashNotFound)
	assert.Equal(t, 2, node.submits)
}
