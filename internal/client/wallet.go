// Package client builds, signs and submits raffle transactions, either
// in-process against a runtime or over the node's HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/ledger"
	"ms-raffles/internal/logger"
	"ms-raffles/internal/raffle"
	"ms-raffles/internal/runtime"
)

// MaxPurchasesPerTx caps the purchase instructions packed into one transaction.
const MaxPurchasesPerTx = 25

// Node accepts signed transactions. *runtime.Runtime and *HTTPClient both
// satisfy it.
type Node interface {
	LatestBlockhash(ctx context.Context) (*ledger.Block, error)
	Submit(ctx context.Context, tx *runtime.Transaction) (*runtime.Receipt, error)
}

type Wallet struct {
	Node      Node
	ProgramID solana.PublicKey
	Logger    *logger.Logger
}

func NewWallet(node Node, programID solana.PublicKey, log *logger.Logger) *Wallet {
	return &Wallet{Node: node, ProgramID: programID, Logger: log}
}

// send signs ixs over a fresh blockhash and submits them. An expired
// blockhash is retried once with a newer one.
func (w *Wallet) send(ctx context.Context, keys []solana.PrivateKey, ixs ...runtime.Instruction) (*runtime.Receipt, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		block, err := w.Node.LatestBlockhash(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch blockhash: %w", err)
		}
		tx := runtime.NewTransaction(block.Blockhash, ixs...)
		if err := tx.Sign(keys...); err != nil {
			return nil, err
		}
		receipt, err := w.Node.Submit(ctx, tx)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ledger.ErrBlockhashNotFound) {
			return nil, err
		}
		w.Logger.Warn("CLIENT", fmt.Sprintf("blockhash %s expired, retrying", block.Blockhash))
		lastErr = err
	}
	return nil, lastErr
}

// CreateRaffle creates a raffle under a freshly generated account key.
func (w *Wallet) CreateRaffle(ctx context.Context, authority solana.PrivateKey, args raffle.CreateRaffleArgs) (solana.PublicKey, *runtime.Receipt, error) {
	account, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	ix := raffle.NewCreateRaffleInstruction(w.ProgramID, args, authority.PublicKey(), account.PublicKey())
	receipt, err := w.send(ctx, []solana.PrivateKey{authority, account}, ix)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	w.Logger.Info("CLIENT", fmt.Sprintf("created raffle %s", account.PublicKey()))
	return account.PublicKey(), receipt, nil
}

// BuyTickets purchases n tickets for participant, at most MaxPurchasesPerTx
// per transaction. Tickets bought by batches that committed before a failure
// are returned with the error.
func (w *Wallet) BuyTickets(ctx context.Context, participant solana.PrivateKey, raffleKey, authority solana.PublicKey, n int) ([]solana.PublicKey, error) {
	if n < 1 {
		return nil, fmt.Errorf("ticket count must be positive, got %d", n)
	}
	var bought []solana.PublicKey
	for remaining := n; remaining > 0; {
		batch := remaining
		if batch > MaxPurchasesPerTx {
			batch = MaxPurchasesPerTx
		}

		keys := []solana.PrivateKey{participant}
		ixs := make([]runtime.Instruction, 0, batch)
		tickets := make([]solana.PublicKey, 0, batch)
		for i := 0; i < batch; i++ {
			ticket, err := solana.NewRandomPrivateKey()
			if err != nil {
				return bought, err
			}
			keys = append(keys, ticket)
			tickets = append(tickets, ticket.PublicKey())
			ixs = append(ixs, raffle.NewPurchaseTicketInstruction(w.ProgramID, authority, participant.PublicKey(), raffleKey, ticket.PublicKey()))
		}

		if _, err := w.send(ctx, keys, ixs...); err != nil {
			return bought, fmt.Errorf("purchase of %d tickets failed after %d bought: %w", batch, len(bought), err)
		}
		bought = append(bought, tickets...)
		remaining -= batch
	}
	w.Logger.Info("CLIENT", fmt.Sprintf("bought %d tickets for raffle %s", len(bought), raffleKey))
	return bought, nil
}

func (w *Wallet) EndRaffle(ctx context.Context, authority solana.PrivateKey, raffleKey solana.PublicKey) (*runtime.Receipt, error) {
	ix := raffle.NewEndRaffleInstruction(w.ProgramID, authority.PublicKey(), raffleKey)
	return w.send(ctx, []solana.PrivateKey{authority}, ix)
}

func (w *Wallet) CloseTicket(ctx context.Context, participant solana.PrivateKey, ticket, raffleKey solana.PublicKey) (*runtime.Receipt, error) {
	ix := raffle.NewCloseTicketAccountInstruction(w.ProgramID, participant.PublicKey(), ticket, raffleKey)
	return w.send(ctx, []solana.PrivateKey{participant}, ix)
}
