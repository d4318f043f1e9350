package models

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Raffle is the state stored in a raffle account, after the 8-byte discriminator.
type Raffle struct {
	Authority   solana.PublicKey `json:"authority"`
	Ends        int64            `json:"ends"`
	Price       uint64           `json:"price"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
	Winners     uint32           `json:"winners"`
	Tickets     uint32           `json:"tickets"`
}

func (r *Raffle) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(r.Authority[:], false); err != nil {
		return err
	}
	if err := enc.WriteInt64(r.Ends, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteUint64(r.Price, binary.LittleEndian); err != nil {
		return err
	}
	for _, s := range []string{r.Title, r.Description, r.Image} {
		if err := WriteString(enc, s); err != nil {
			return err
		}
	}
	if err := enc.WriteUint32(r.Winners, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteUint32(r.Tickets, binary.LittleEndian)
}

func (r *Raffle) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if r.Authority, err = ReadPublicKey(dec); err != nil {
		return err
	}
	if r.Ends, err = dec.ReadInt64(binary.LittleEndian); err != nil {
		return err
	}
	if r.Price, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if r.Title, err = ReadString(dec); err != nil {
		return fmt.Errorf("title: %w", err)
	}
	if r.Description, err = ReadString(dec); err != nil {
		return fmt.Errorf("description: %w", err)
	}
	if r.Image, err = ReadString(dec); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	if r.Winners, err = dec.ReadUint32(binary.LittleEndian); err != nil {
		return err
	}
	r.Tickets, err = dec.ReadUint32(binary.LittleEndian)
	return err
}

// Ticket is the state stored in a ticket account, after the 8-byte discriminator.
type Ticket struct {
	Raffle      solana.PublicKey `json:"raffle"`
	Participant solana.PublicKey `json:"participant"`
}

func (t *Ticket) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(t.Raffle[:], false); err != nil {
		return err
	}
	return enc.WriteBytes(t.Participant[:], false)
}

func (t *Ticket) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if t.Raffle, err = ReadPublicKey(dec); err != nil {
		return err
	}
	t.Participant, err = ReadPublicKey(dec)
	return err
}

func WriteString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func ReadPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	raw, err := dec.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// ReadString reads a u32 length prefixed UTF-8 string, refusing lengths that
// run past the end of the buffer.
func ReadString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return "", err
	}
	if int64(n) > int64(dec.Remaining()) {
		return "", fmt.Errorf("declared length %d exceeds remaining %d bytes", n, dec.Remaining())
	}
	raw, err := dec.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("invalid utf-8")
	}
	return string(raw), nil
}
