// Package raffle is the on-chain raffle program: account layout, instruction
// handlers and the authority and time checks they share.
package raffle

import (
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/logger"
	"ms-raffles/internal/models"
	"ms-raffles/internal/runtime"
	"ms-raffles/internal/system"
)

type Program struct {
	id  solana.PublicKey
	log *logger.Logger
}

func NewProgram(id solana.PublicKey, log *logger.Logger) *Program {
	return &Program{id: id, log: log}
}

func (p *Program) ProgramID() solana.PublicKey { return p.id }

func (p *Program) Process(ictx *runtime.InvokeContext, data []byte) error {
	if len(data) < DiscriminatorLen {
		return runtime.ErrInvalidInstructionData
	}
	var disc [8]byte
	copy(disc[:], data[:DiscriminatorLen])
	args := data[DiscriminatorLen:]

	switch disc {
	case CreateRaffleDiscriminator:
		ictx.Log("Instruction: CreateRaffle")
		return p.createRaffle(ictx, args)
	case PurchaseTicketDiscriminator:
		ictx.Log("Instruction: PurchaseTicket")
		return p.purchaseTicket(ictx)
	case EndRaffleDiscriminator:
		ictx.Log("Instruction: EndRaffle")
		return p.endRaffle(ictx)
	case CloseTicketAccountDiscriminator:
		ictx.Log("Instruction: CloseTicketAccount")
		return p.closeTicketAccount(ictx)
	default:
		return runtime.ErrInvalidInstructionData
	}
}

func accounts(ictx *runtime.InvokeContext, n int) ([]*runtime.AccountInfo, error) {
	out := make([]*runtime.AccountInfo, n)
	for i := range out {
		acc, err := ictx.Account(i)
		if err != nil {
			return nil, err
		}
		out[i] = acc
	}
	return out, nil
}

// loadRaffle decodes a raffle account this program owns.
func (p *Program) loadRaffle(acc *runtime.AccountInfo) (*models.Raffle, error) {
	if !acc.Exists() {
		return nil, fmt.Errorf("%w: raffle %s", runtime.ErrAccountNotFound, acc.Key)
	}
	if !acc.Owner.Equals(p.id) {
		return nil, fmt.Errorf("%w: raffle %s", runtime.ErrInvalidAccountOwner, acc.Key)
	}
	return DecodeRaffle(acc.Data)
}

func (p *Program) loadTicket(acc *runtime.AccountInfo) (*models.Ticket, error) {
	if !acc.Exists() {
		return nil, fmt.Errorf("%w: ticket %s", runtime.ErrAccountNotFound, acc.Key)
	}
	if !acc.Owner.Equals(p.id) {
		return nil, fmt.Errorf("%w: ticket %s", runtime.ErrInvalidAccountOwner, acc.Key)
	}
	return DecodeTicket(acc.Data)
}

func checkSystemProgram(acc *runtime.AccountInfo) error {
	if !acc.Key.Equals(system.ProgramID) {
		return fmt.Errorf("%w: expected system program, got %s", runtime.ErrIncorrectProgramID, acc.Key)
	}
	return nil
}

func validateArgs(args *CreateRaffleArgs, now int64) error {
	switch {
	case args.Ends <= now:
		return fmt.Errorf("%w: ends %d is not after %d", ErrInputError, args.Ends, now)
	case args.Winners < 1:
		return fmt.Errorf("%w: winners must be at least 1", ErrInputError)
	case utf8.RuneCountInString(args.Title) > MaxTitleLen:
		return fmt.Errorf("%w: title longer than %d characters", ErrInputError, MaxTitleLen)
	case utf8.RuneCountInString(args.Description) > MaxDescriptionLen:
		return fmt.Errorf("%w: description longer than %d characters", ErrInputError, MaxDescriptionLen)
	case utf8.RuneCountInString(args.Image) > MaxImageLen:
		return fmt.Errorf("%w: image longer than %d characters", ErrInputError, MaxImageLen)
	}
	return nil
}

func (p *Program) createRaffle(ictx *runtime.InvokeContext, data []byte) error {
	accs, err := accounts(ictx, 3)
	if err != nil {
		return err
	}
	authority, raffleAcc, systemProgram := accs[0], accs[1], accs[2]
	if err := checkSystemProgram(systemProgram); err != nil {
		return err
	}
	if !authority.IsSigner || !raffleAcc.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}

	var args CreateRaffleArgs
	dec := bin.NewBinDecoder(data)
	if err := args.UnmarshalWithDecoder(dec); err != nil || dec.Remaining() > 0 {
		return fmt.Errorf("%w: create_raffle arguments", runtime.ErrInvalidInstructionData)
	}
	if err := validateArgs(&args, ictx.Now); err != nil {
		return err
	}

	r := &models.Raffle{
		Authority:   authority.Key,
		Ends:        args.Ends,
		Price:       args.Price,
		Title:       args.Title,
		Description: args.Description,
		Image:       args.Image,
		Winners:     args.Winners,
	}
	encoded, err := EncodeRaffle(r)
	if err != nil {
		return err
	}
	if err := allocate(ictx, authority, raffleAcc, len(encoded)); err != nil {
		return err
	}
	copy(raffleAcc.Data, encoded)

	ictx.Emit(&RaffleCreated{
		Raffle:    raffleAcc.Key,
		Authority: authority.Key,
		Title:     r.Title,
		Price:     r.Price,
		Ends:      r.Ends,
		Winners:   r.Winners,
	})
	p.log.Debug("RAFFLE", fmt.Sprintf("raffle %s created by %s", raffleAcc.Key, authority.Key))
	return nil
}

func (p *Program) purchaseTicket(ictx *runtime.InvokeContext) error {
	accs, err := accounts(ictx, 5)
	if err != nil {
		return err
	}
	authority, participant, raffleAcc, ticketAcc, systemProgram := accs[0], accs[1], accs[2], accs[3], accs[4]
	if err := checkSystemProgram(systemProgram); err != nil {
		return err
	}

	r, err := p.loadRaffle(raffleAcc)
	if err != nil {
		return err
	}
	if !raffleAcc.IsWritable {
		return runtime.ErrAccountNotWritable
	}
	if !IsAuthority(r, authority.Key) {
		return fmt.Errorf("%w: authority %s does not match raffle", ErrUnauthorized, authority.Key)
	}
	if !participant.IsSigner || !ticketAcc.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	if !IsOpen(r, ictx.Now) {
		return ErrRaffleEnded
	}
	if r.Tickets == ^uint32(0) {
		return runtime.ErrArithmeticOverflow
	}

	if err := allocate(ictx, participant, ticketAcc, TicketSize); err != nil {
		return err
	}
	ticket := &models.Ticket{Raffle: raffleAcc.Key, Participant: participant.Key}
	encoded, err := EncodeTicket(ticket)
	if err != nil {
		return err
	}
	copy(ticketAcc.Data, encoded)

	if err := collectFee(ictx, participant, raffleAcc, r.Price); err != nil {
		return err
	}

	r.Tickets++
	if encoded, err = EncodeRaffle(r); err != nil {
		return err
	}
	if len(encoded) != len(raffleAcc.Data) {
		return fmt.Errorf("%w: raffle size changed", ErrCorruptAccount)
	}
	copy(raffleAcc.Data, encoded)

	ictx.Emit(&TicketPurchased{
		Raffle:      raffleAcc.Key,
		Ticket:      ticketAcc.Key,
		Participant: participant.Key,
		Price:       r.Price,
		Tickets:     r.Tickets,
	})
	return nil
}

func (p *Program) endRaffle(ictx *runtime.InvokeContext) error {
	accs, err := accounts(ictx, 2)
	if err != nil {
		return err
	}
	authority, raffleAcc := accs[0], accs[1]

	r, err := p.loadRaffle(raffleAcc)
	if err != nil {
		return err
	}
	if !authority.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	if !IsAuthority(r, authority.Key) {
		return fmt.Errorf("%w: %s is not the raffle authority", ErrUnauthorized, authority.Key)
	}
	if !authority.IsWritable || !raffleAcc.IsWritable {
		return runtime.ErrAccountNotWritable
	}

	reclaimed, err := closeAccount(raffleAcc, authority)
	if err != nil {
		return err
	}
	ictx.Log("Closed raffle %s, returned %d lamports", raffleAcc.Key, reclaimed)
	ictx.Emit(&RaffleClosed{
		Raffle:    raffleAcc.Key,
		Authority: authority.Key,
		Reclaimed: reclaimed,
		Tickets:   r.Tickets,
	})
	return nil
}

func (p *Program) closeTicketAccount(ictx *runtime.InvokeContext) error {
	accs, err := accounts(ictx, 3)
	if err != nil {
		return err
	}
	participant, ticketAcc, raffleAcc := accs[0], accs[1], accs[2]

	ticket, err := p.loadTicket(ticketAcc)
	if err != nil {
		return err
	}
	if !participant.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	if !ticket.Participant.Equals(participant.Key) {
		return fmt.Errorf("%w: ticket belongs to %s", ErrUnauthorized, ticket.Participant)
	}
	if !ticket.Raffle.Equals(raffleAcc.Key) {
		return fmt.Errorf("%w: ticket references raffle %s", ErrInputError, ticket.Raffle)
	}
	if raffleAcc.Owner.Equals(p.id) && len(raffleAcc.Data) > 0 {
		return ErrRaffleActive
	}
	if !participant.IsWritable || !ticketAcc.IsWritable {
		return runtime.ErrAccountNotWritable
	}

	reclaimed, err := closeAccount(ticketAcc, participant)
	if err != nil {
		return err
	}
	ictx.Emit(&TicketClosed{
		Raffle:      ticket.Raffle,
		Ticket:      ticketAcc.Key,
		Participant: participant.Key,
		Reclaimed:   reclaimed,
	})
	return nil
}
