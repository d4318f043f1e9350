package raffle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/models"
	"ms-raffles/internal/runtime"
	"ms-raffles/internal/system"
)

var (
	CreateRaffleDiscriminator       = instructionDiscriminator("create_raffle")
	PurchaseTicketDiscriminator     = instructionDiscriminator("purchase_ticket")
	EndRaffleDiscriminator          = instructionDiscriminator("end_raffle")
	CloseTicketAccountDiscriminator = instructionDiscriminator("close_ticket_account")
)

func instructionDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// CreateRaffleArgs are the Borsh encoded arguments of create_raffle.
type CreateRaffleArgs struct {
	Price       uint64
	Ends        int64
	Title       string
	Description string
	Image       string
	Winners     uint32
}

func (a *CreateRaffleArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(a.Price, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteInt64(a.Ends, binary.LittleEndian); err != nil {
		return err
	}
	for _, s := range []string{a.Title, a.Description, a.Image} {
		if err := models.WriteString(enc, s); err != nil {
			return err
		}
	}
	return enc.WriteUint32(a.Winners, binary.LittleEndian)
}

func (a *CreateRaffleArgs) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.Price, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if a.Ends, err = dec.ReadInt64(binary.LittleEndian); err != nil {
		return err
	}
	if a.Title, err = models.ReadString(dec); err != nil {
		return err
	}
	if a.Description, err = models.ReadString(dec); err != nil {
		return err
	}
	if a.Image, err = models.ReadString(dec); err != nil {
		return err
	}
	a.Winners, err = dec.ReadUint32(binary.LittleEndian)
	return err
}

func instructionData(disc [8]byte, args bin.BinaryMarshaler) []byte {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if args != nil {
		_ = args.MarshalWithEncoder(bin.NewBinEncoder(buf))
	}
	return buf.Bytes()
}

func NewCreateRaffleInstruction(programID solana.PublicKey, args CreateRaffleArgs, authority, raffle solana.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(authority, true, true),
			solana.NewAccountMeta(raffle, true, true),
			solana.NewAccountMeta(system.ProgramID, false, false),
		},
		Data: instructionData(CreateRaffleDiscriminator, &args),
	}
}

func NewPurchaseTicketInstruction(programID, authority, participant, raffle, ticket solana.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(authority, false, false),
			solana.NewAccountMeta(participant, true, true),
			solana.NewAccountMeta(raffle, true, false),
			solana.NewAccountMeta(ticket, true, true),
			solana.NewAccountMeta(system.ProgramID, false, false),
		},
		Data: instructionData(PurchaseTicketDiscriminator, nil),
	}
}

func NewEndRaffleInstruction(programID, authority, raffle solana.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(authority, true, true),
			solana.NewAccountMeta(raffle, true, false),
		},
		Data: instructionData(EndRaffleDiscriminator, nil),
	}
}

func NewCloseTicketAccountInstruction(programID, participant, ticket, raffle solana.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: programID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(participant, true, true),
			solana.NewAccountMeta(ticket, true, false),
			solana.NewAccountMeta(raffle, false, false),
		},
		Data: instructionData(CloseTicketAccountDiscriminator, nil),
	}
}
