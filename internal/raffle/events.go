package raffle

import "github.com/gagliardetto/solana-go"

const (
	EventRaffleCreated   = "raffle.created"
	EventTicketPurchased = "raffle.ticket_purchased"
	EventRaffleClosed    = "raffle.closed"
	EventTicketClosed    = "raffle.ticket_closed"
)

type RaffleCreated struct {
	Raffle    solana.PublicKey `json:"raffle"`
	Authority solana.PublicKey `json:"authority"`
	Title     string           `json:"title"`
	Price     uint64           `json:"price"`
	Ends      int64            `json:"ends"`
	Winners   uint32           `json:"winners"`
}

func (e *RaffleCreated) EventName() string { return EventRaffleCreated }
func (e *RaffleCreated) EventKey() string  { return e.Raffle.String() }

type TicketPurchased struct {
	Raffle      solana.PublicKey `json:"raffle"`
	Ticket      solana.PublicKey `json:"ticket"`
	Participant solana.PublicKey `json:"participant"`
	Price       uint64           `json:"price"`
	Tickets     uint32           `json:"tickets"`
}

func (e *TicketPurchased) EventName() string { return EventTicketPurchased }
func (e *TicketPurchased) EventKey() string  { return e.Raffle.String() }

type RaffleClosed struct {
	Raffle    solana.PublicKey `json:"raffle"`
	Authority solana.PublicKey `json:"authority"`
	Reclaimed uint64           `json:"reclaimed"`
	Tickets   uint32           `json:"tickets"`
}

func (e *RaffleClosed) EventName() string { return EventRaffleClosed }
func (e *RaffleClosed) EventKey() string  { return e.Raffle.String() }

type TicketClosed struct {
	Raffle      solana.PublicKey `json:"raffle"`
	Ticket      solana.PublicKey `json:"ticket"`
	Participant solana.PublicKey `json:"participant"`
	Reclaimed   uint64           `json:"reclaimed"`
}

func (e *TicketClosed) EventName() string { return EventTicketClosed }
func (e *TicketClosed) EventKey() string  { return e.Raffle.String() }

// EventWinnersDrawn is published by the read side when a draw is recorded.
const EventWinnersDrawn = "raffle.winners_drawn"
