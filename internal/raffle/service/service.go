// Package service is the read side of the raffle program: it rebuilds raffle
// and ticket views from the ledger on every query and records winner draws.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/ledger"
	"ms-raffles/internal/logger"
	"ms-raffles/internal/models"
	"ms-raffles/internal/raffle"
	"ms-raffles/internal/runtime"
)

var (
	ErrRaffleNotFound   = errors.New("raffle not found")
	ErrNotRaffleAccount = errors.New("account is not a raffle")
	ErrRaffleOpen       = errors.New("raffle is still open")
	ErrDrawNotReady     = errors.New("no block produced since the raffle ended")
)

const (
	StatusOpen  = "open"
	StatusEnded = "ended"
)

// Ledger is the read view of the account store.
type Ledger interface {
	GetAccount(ctx context.Context, key solana.PublicKey) (*ledger.Account, error)
	Scan(ctx context.Context, owner solana.PublicKey, filters []ledger.Filter, page ledger.Page) ([]*ledger.Account, error)
	BlockAfter(ctx context.Context, unixTime int64) (*ledger.Block, error)
}

// ProjectionDB stores what the ledger does not: draw results and daily sales.
type ProjectionDB interface {
	SaveDrawResult(ctx context.Context, result *models.DrawResult) (bool, error)
	GetDrawResult(ctx context.Context, raffle string) (*models.DrawResult, error)
	IncrementPurchaseCount(ctx context.Context, raffle string, timestamp time.Time) error
	GetPurchaseCounts(ctx context.Context, raffle string) ([]models.PurchaseCount, error)
}

// TicketCache is the advisory purchased-count cache.
type TicketCache interface {
	Get(ctx context.Context, raffle, owner string) (int, bool, error)
	Set(ctx context.Context, raffle, owner string, count int) error
	Add(ctx context.Context, raffle, owner string, n int) (int, bool, error)
	Invalidate(ctx context.Context, raffle, owner string) error
}

type RaffleView struct {
	Address  solana.PublicKey `json:"address"`
	Lamports uint64           `json:"lamports"`
	Status   string           `json:"status"`
	models.Raffle
}

type TicketView struct {
	Address     solana.PublicKey `json:"address"`
	Raffle      solana.PublicKey `json:"raffle"`
	Participant solana.PublicKey `json:"participant"`
	Lamports    uint64           `json:"lamports"`
}

type ParticipantCount struct {
	Participant string `json:"participant"`
	Tickets     int    `json:"tickets"`
}

type RaffleStats struct {
	Raffle       string                 `json:"raffle"`
	Tickets      int                    `json:"tickets"`
	Escrow       uint64                 `json:"escrow"`
	Participants []ParticipantCount     `json:"participants"`
	Daily        []models.PurchaseCount `json:"daily"`
}

type RaffleService struct {
	Ledger    Ledger
	DB        ProjectionDB
	Cache     TicketCache
	Events    *Dispatcher
	Clock     runtime.Clock
	ProgramID solana.PublicKey
	Logger    *logger.Logger
}

func NewRaffleService(l Ledger, db ProjectionDB, cache TicketCache, events *Dispatcher, clock runtime.Clock, programID solana.PublicKey, log *logger.Logger) *RaffleService {
	if clock == nil {
		clock = runtime.SystemClock{}
	}
	return &RaffleService{
		Ledger:    l,
		DB:        db,
		Cache:     cache,
		Events:    events,
		Clock:     clock,
		ProgramID: programID,
		Logger:    log,
	}
}

func (s *RaffleService) now() int64 { return s.Clock.Now().Unix() }

func (s *RaffleService) raffleView(acc *ledger.Account) (*RaffleView, error) {
	r, err := raffle.DecodeRaffle(acc.Data)
	if err != nil {
		return nil, err
	}
	status := StatusEnded
	if raffle.IsOpen(r, s.now()) {
		status = StatusOpen
	}
	return &RaffleView{Address: acc.Key, Lamports: acc.Lamports, Status: status, Raffle: *r}, nil
}

// GetRaffle decodes the raffle stored at key. A closed raffle is not found.
func (s *RaffleService) GetRaffle(ctx context.Context, key solana.PublicKey) (*RaffleView, error) {
	acc, err := s.Ledger.GetAccount(ctx, key)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRaffleNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	if !acc.Owner.Equals(s.ProgramID) {
		return nil, fmt.Errorf("%w: %s", ErrNotRaffleAccount, key)
	}
	view, err := s.raffleView(acc)
	if errors.Is(err, raffle.ErrCorruptAccount) {
		return nil, fmt.Errorf("%w: %s", ErrNotRaffleAccount, key)
	}
	return view, err
}

// ListRaffles returns live raffles in key order.
func (s *RaffleService) ListRaffles(ctx context.Context, page ledger.Page) ([]RaffleView, error) {
	accs, err := s.Ledger.Scan(ctx, s.ProgramID, raffle.RaffleFilters(), page)
	if err != nil {
		return nil, fmt.Errorf("failed to scan raffles: %w", err)
	}
	views := make([]RaffleView, 0, len(accs))
	for _, acc := range accs {
		view, err := s.raffleView(acc)
		if err != nil {
			s.Logger.Warn("RAFFLE", fmt.Sprintf("skipping unreadable raffle %s: %v", acc.Key, err))
			continue
		}
		views = append(views, *view)
	}
	return views, nil
}

// TicketsForRaffle pages through the tickets of raffleKey, optionally only
// those bought by owner.
func (s *RaffleService) TicketsForRaffle(ctx context.Context, raffleKey solana.PublicKey, owner *solana.PublicKey, page ledger.Page) ([]TicketView, error) {
	accs, err := s.Ledger.Scan(ctx, s.ProgramID, raffle.TicketFilters(raffleKey, owner), page)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tickets for raffle %s: %w", raffleKey, err)
	}
	views := make([]TicketView, 0, len(accs))
	for _, acc := range accs {
		ticket, err := raffle.DecodeTicket(acc.Data)
		if err != nil {
			s.Logger.Warn("RAFFLE", fmt.Sprintf("skipping unreadable ticket %s: %v", acc.Key, err))
			continue
		}
		views = append(views, TicketView{
			Address:     acc.Key,
			Raffle:      ticket.Raffle,
			Participant: ticket.Participant,
			Lamports:    acc.Lamports,
		})
	}
	return views, nil
}

// CountTickets counts tickets on the ledger. It is the authoritative count.
func (s *RaffleService) CountTickets(ctx context.Context, raffleKey solana.PublicKey, owner *solana.PublicKey) (int, error) {
	tickets, err := s.TicketsForRaffle(ctx, raffleKey, owner, ledger.Page{})
	if err != nil {
		return 0, err
	}
	return len(tickets), nil
}

// PurchasedCount answers from the cache when it can and refills it from the
// ledger when it cannot. Cache failures fall through to the ledger.
func (s *RaffleService) PurchasedCount(ctx context.Context, raffleKey, owner solana.PublicKey) (int, error) {
	if s.Cache != nil {
		n, ok, err := s.Cache.Get(ctx, raffleKey.String(), owner.String())
		if err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("ticket cache read failed: %v", err))
		} else if ok {
			return n, nil
		}
	}

	n, err := s.CountTickets(ctx, raffleKey, &owner)
	if err != nil {
		return 0, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, raffleKey.String(), owner.String(), n); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("ticket cache write failed: %v", err))
		}
	}
	return n, nil
}

// RecordPurchase updates the projections after n tickets were bought.
func (s *RaffleService) RecordPurchase(ctx context.Context, raffleKey, owner string, n int, at time.Time) error {
	for i := 0; i < n; i++ {
		if err := s.DB.IncrementPurchaseCount(ctx, raffleKey, at); err != nil {
			return fmt.Errorf("failed to record purchase for raffle %s: %w", raffleKey, err)
		}
	}
	if s.Cache != nil {
		if _, _, err := s.Cache.Add(ctx, raffleKey, owner, n); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("ticket cache update failed: %v", err))
		}
	}
	return nil
}

// ForgetPurchases drops the cached count of owner, whose tickets changed
// without a purchase.
func (s *RaffleService) ForgetPurchases(ctx context.Context, raffleKey, owner string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, raffleKey, owner); err != nil {
		s.Logger.Warn("REDIS", fmt.Sprintf("ticket cache invalidation failed: %v", err))
	}
}

// Stats summarises sales of a live raffle.
func (s *RaffleService) Stats(ctx context.Context, raffleKey solana.PublicKey) (*RaffleStats, error) {
	view, err := s.GetRaffle(ctx, raffleKey)
	if err != nil {
		return nil, err
	}
	tickets, err := s.TicketsForRaffle(ctx, raffleKey, nil, ledger.Page{})
	if err != nil {
		return nil, err
	}

	perParticipant := make(map[string]int)
	for _, t := range tickets {
		perParticipant[t.Participant.String()]++
	}
	participants := make([]ParticipantCount, 0, len(perParticipant))
	for p, n := range perParticipant {
		participants = append(participants, ParticipantCount{Participant: p, Tickets: n})
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].Tickets != participants[j].Tickets {
			return participants[i].Tickets > participants[j].Tickets
		}
		return participants[i].Participant < participants[j].Participant
	})

	daily, err := s.DB.GetPurchaseCounts(ctx, raffleKey.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase counts: %w", err)
	}

	var escrow uint64
	if rent := ledger.MinimumBalance(raffle.RaffleSize(view.Title, view.Description, view.Image)); view.Lamports > rent {
		escrow = view.Lamports - rent
	}

	return &RaffleStats{
		Raffle:       raffleKey.String(),
		Tickets:      len(tickets),
		Escrow:       escrow,
		Participants: participants,
		Daily:        daily,
	}, nil
}
