package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/ledger"
	"ms-raffles/internal/models"
	"ms-raffles/internal/raffle"
	"ms-raffles/internal/raffle/db"
	"ms-raffles/internal/raffle/draw"
)

// GetDraw returns the recorded draw of raffleKey.
func (s *RaffleService) GetDraw(ctx context.Context, raffleKey solana.PublicKey) (*models.DrawResult, error) {
	return s.DB.GetDrawResult(ctx, raffleKey.String())
}

// DrawWinners selects the winners of an ended raffle from its tickets and the
// blockhash of the first block produced at or after its end. The first draw is
// recorded and every later call returns it.
func (s *RaffleService) DrawWinners(ctx context.Context, raffleKey solana.PublicKey) (*models.DrawResult, error) {
	recorded, err := s.DB.GetDrawResult(ctx, raffleKey.String())
	if err == nil {
		return recorded, nil
	}
	if !errors.Is(err, db.ErrDrawNotFound) {
		return nil, err
	}

	view, err := s.GetRaffle(ctx, raffleKey)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if raffle.IsOpen(&view.Raffle, now) {
		return nil, fmt.Errorf("%w: ends at %d", ErrRaffleOpen, view.Ends)
	}

	tickets, err := s.TicketsForRaffle(ctx, raffleKey, nil, ledger.Page{})
	if err != nil {
		return nil, err
	}
	entries := make([]draw.Entry, len(tickets))
	for i, t := range tickets {
		entries[i] = draw.Entry{Ticket: t.Address, Participant: t.Participant}
	}

	block, err := s.Ledger.BlockAfter(ctx, view.Ends)
	if errors.Is(err, ledger.ErrBlockhashNotFound) {
		return nil, fmt.Errorf("%w: raffle %s", ErrDrawNotReady, raffleKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read closing block: %w", err)
	}
	res := draw.Select(entries, block.Blockhash, int(view.Winners))

	result := &models.DrawResult{
		Raffle:      raffleKey.String(),
		Authority:   view.Authority.String(),
		Blockhash:   block.Blockhash.String(),
		Slot:        block.Slot,
		Commitment:  hex.EncodeToString(res.Commitment[:]),
		Seed:        hex.EncodeToString(res.Seed[:]),
		TicketCount: len(entries),
		DrawnAt:     time.Unix(now, 0).UTC(),
	}
	for _, w := range res.Winners {
		result.WinningTickets = append(result.WinningTickets, w.Ticket.String())
		result.WinningWallets = append(result.WinningWallets, w.Participant.String())
	}

	written, err := s.DB.SaveDrawResult(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("failed to record draw: %w", err)
	}
	if !written {
		return s.DB.GetDrawResult(ctx, raffleKey.String())
	}

	s.Logger.Info("RAFFLE", fmt.Sprintf("drew %d winners for raffle %s from %d tickets at slot %d",
		len(res.Winners), raffleKey, len(entries), block.Slot))

	if s.Events != nil {
		ev, err := models.NewRaffleEvent(raffle.EventWinnersDrawn, raffleKey.String(), "", block.Slot, result)
		if err != nil {
			return nil, err
		}
		s.Events.Publish(ctx, ev)
	}
	return result, nil
}
