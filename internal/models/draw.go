package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// DrawResult records the one and only winner draw of a raffle.
type DrawResult struct {
	bun.BaseModel `bun:"table:draw_results"`

	Raffle      string    `bun:"raffle,pk" json:"raffle"`
	Authority   string    `bun:"authority,notnull" json:"authority"`
	Blockhash   string    `bun:"blockhash,notnull" json:"blockhash"`
	Slot        uint64    `bun:"slot,notnull" json:"slot"`
	Commitment  string    `bun:"commitment,notnull" json:"commitment"`
	Seed        string    `bun:"seed,notnull" json:"seed"`
	TicketCount int       `bun:"ticket_count,notnull" json:"ticket_count"`
	Winners     string    `bun:"winners" json:"-"`
	DrawnAt     time.Time `bun:"drawn_at,notnull" json:"drawn_at"`

	WinningTickets []string `bun:"-" json:"winning_tickets"`
	WinningWallets []string `bun:"-" json:"winning_wallets"`
}

// EncodeWinners flattens the winning ticket/participant pairs into Winners.
func (d *DrawResult) EncodeWinners() {
	pairs := make([]string, len(d.WinningTickets))
	for i := range d.WinningTickets {
		pairs[i] = d.WinningTickets[i] + ":" + d.WinningWallets[i]
	}
	d.Winners = strings.Join(pairs, ",")
}

// DecodeWinners restores WinningTickets and WinningWallets from Winners.
func (d *DrawResult) DecodeWinners() {
	d.WinningTickets = nil
	d.WinningWallets = nil
	if d.Winners == "" {
		return
	}
	for _, pair := range strings.Split(d.Winners, ",") {
		ticket, wallet, _ := strings.Cut(pair, ":")
		d.WinningTickets = append(d.WinningTickets, ticket)
		d.WinningWallets = append(d.WinningWallets, wallet)
	}
}
