package raffle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/ledger"
	"ms-raffles/internal/models"
)

var ErrCorruptAccount = errors.New("corrupt account")

const (
	DiscriminatorLen = 8

	// RaffleHeaderSize is the discriminator plus the fixed-width fields.
	RaffleHeaderSize = DiscriminatorLen + 32 + 8 + 8 + 4 + 4
	TicketSize       = DiscriminatorLen + 32 + 32

	// Offsets into a ticket account, used for memcmp scans.
	TicketRaffleOffset      = DiscriminatorLen
	TicketParticipantOffset = DiscriminatorLen + 32

	MaxTitleLen       = 50
	MaxDescriptionLen = 100
	MaxImageLen       = 200
)

var (
	RaffleDiscriminator = accountDiscriminator("Raffle")
	TicketDiscriminator = accountDiscriminator("Ticket")
)

func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// RaffleSize is the exact account size for a raffle with these strings.
func RaffleSize(title, description, image string) int {
	return RaffleHeaderSize + 4 + len(title) + 4 + len(description) + 4 + len(image)
}

func EncodeRaffle(r *models.Raffle) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(RaffleDiscriminator[:])
	if err := r.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeRaffle(data []byte) (*models.Raffle, error) {
	r := new(models.Raffle)
	if err := decode(data, RaffleDiscriminator, r); err != nil {
		return nil, fmt.Errorf("raffle: %w", err)
	}
	return r, nil
}

func EncodeTicket(t *models.Ticket) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(TicketDiscriminator[:])
	if err := t.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeTicket(data []byte) (*models.Ticket, error) {
	t := new(models.Ticket)
	if err := decode(data, TicketDiscriminator, t); err != nil {
		return nil, fmt.Errorf("ticket: %w", err)
	}
	return t, nil
}

func decode(data []byte, disc [8]byte, v bin.BinaryUnmarshaler) error {
	if len(data) < DiscriminatorLen || !bytes.Equal(data[:DiscriminatorLen], disc[:]) {
		return fmt.Errorf("%w: discriminator mismatch", ErrCorruptAccount)
	}
	dec := bin.NewBinDecoder(data[DiscriminatorLen:])
	if err := v.UnmarshalWithDecoder(dec); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptAccount, err)
	}
	if dec.Remaining() > 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptAccount, dec.Remaining())
	}
	return nil
}

// TicketFilters selects ticket accounts of raffle, optionally narrowed to one
// participant.
func TicketFilters(raffle solana.PublicKey, participant *solana.PublicKey) []ledger.Filter {
	filters := []ledger.Filter{
		{Offset: 0, Bytes: TicketDiscriminator[:]},
		{Offset: TicketRaffleOffset, Bytes: raffle.Bytes()},
	}
	if participant != nil {
		filters = append(filters, ledger.Filter{Offset: TicketParticipantOffset, Bytes: participant.Bytes()})
	}
	return filters
}

// RaffleFilters selects raffle accounts.
func RaffleFilters() []ledger.Filter {
	return []ledger.Filter{{Offset: 0, Bytes: RaffleDiscriminator[:]}}
}
