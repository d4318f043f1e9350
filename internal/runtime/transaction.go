package runtime

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction is one program call inside a transaction.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []*solana.AccountMeta
	Data      []byte
}

// Transaction is an ordered list of instructions, signed by every account
// any instruction marks as a signer.
type Transaction struct {
	RecentBlockhash solana.Hash
	Instructions    []Instruction
	Signatures      []solana.Signature
}

func NewTransaction(recent solana.Hash, instructions ...Instruction) *Transaction {
	return &Transaction{RecentBlockhash: recent, Instructions: instructions}
}

// Signers lists the required signers in order of first appearance.
func (tx *Transaction) Signers() []solana.PublicKey {
	seen := make(map[solana.PublicKey]bool)
	var out []solana.PublicKey
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if meta.IsSigner && !seen[meta.PublicKey] {
				seen[meta.PublicKey] = true
				out = append(out, meta.PublicKey)
			}
		}
	}
	return out
}

// Message is the byte string every signer signs.
func (tx *Transaction) Message() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(tx.RecentBlockhash[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(uint32(len(tx.Instructions)), binary.LittleEndian); err != nil {
		return nil, err
	}
	for _, ix := range tx.Instructions {
		if err := enc.WriteBytes(ix.ProgramID[:], false); err != nil {
			return nil, err
		}
		if err := enc.WriteUint32(uint32(len(ix.Accounts)), binary.LittleEndian); err != nil {
			return nil, err
		}
		for _, meta := range ix.Accounts {
			if err := enc.WriteBytes(meta.PublicKey[:], false); err != nil {
				return nil, err
			}
			if err := enc.WriteBool(meta.IsSigner); err != nil {
				return nil, err
			}
			if err := enc.WriteBool(meta.IsWritable); err != nil {
				return nil, err
			}
		}
		if err := enc.WriteUint32(uint32(len(ix.Data)), binary.LittleEndian); err != nil {
			return nil, err
		}
		if err := enc.WriteBytes(ix.Data, false); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Sign signs the message with the keys matching Signers. Every signer must
// have a key.
func (tx *Transaction) Sign(keys ...solana.PrivateKey) error {
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	byPub := make(map[solana.PublicKey]solana.PrivateKey, len(keys))
	for _, k := range keys {
		byPub[k.PublicKey()] = k
	}
	signers := tx.Signers()
	sigs := make([]solana.Signature, len(signers))
	for i, pub := range signers {
		key, ok := byPub[pub]
		if !ok {
			return fmt.Errorf("%w: no key for %s", ErrMissingRequiredSignature, pub)
		}
		if sigs[i], err = key.Sign(msg); err != nil {
			return err
		}
	}
	tx.Signatures = sigs
	return nil
}

// Verify checks that every required signer produced a valid signature. The
// first signer pays for the transaction, so at least one is required.
func (tx *Transaction) Verify() error {
	signers := tx.Signers()
	if len(signers) == 0 {
		return fmt.Errorf("%w: transaction has no fee payer", ErrMissingRequiredSignature)
	}
	if len(tx.Signatures) != len(signers) {
		return fmt.Errorf("%w: want %d signatures, have %d", ErrMissingRequiredSignature, len(signers), len(tx.Signatures))
	}
	msg, err := tx.Message()
	if err != nil {
		return err
	}
	for i, pub := range signers {
		if !tx.Signatures[i].Verify(pub, msg) {
			return fmt.Errorf("%w: %s", ErrInvalidSignature, pub)
		}
	}
	return nil
}

// ID is the first signature, which identifies the transaction.
func (tx *Transaction) ID() solana.Signature {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}
	}
	return tx.Signatures[0]
}

type wireAccount struct {
	Pubkey     solana.PublicKey `json:"pubkey"`
	IsSigner   bool             `json:"is_signer"`
	IsWritable bool             `json:"is_writable"`
}

type wireInstruction struct {
	ProgramID solana.PublicKey `json:"program_id"`
	Accounts  []wireAccount    `json:"accounts"`
	Data      string           `json:"data"`
}

type wireTransaction struct {
	RecentBlockhash solana.Hash        `json:"recent_blockhash"`
	Instructions    []wireInstruction  `json:"instructions"`
	Signatures      []solana.Signature `json:"signatures"`
}

func (tx *Transaction) MarshalJSON() ([]byte, error) {
	w := wireTransaction{
		RecentBlockhash: tx.RecentBlockhash,
		Signatures:      tx.Signatures,
		Instructions:    make([]wireInstruction, len(tx.Instructions)),
	}
	for i, ix := range tx.Instructions {
		wi := wireInstruction{
			ProgramID: ix.ProgramID,
			Accounts:  make([]wireAccount, len(ix.Accounts)),
			Data:      base64.StdEncoding.EncodeToString(ix.Data),
		}
		for j, meta := range ix.Accounts {
			wi.Accounts[j] = wireAccount{Pubkey: meta.PublicKey, IsSigner: meta.IsSigner, IsWritable: meta.IsWritable}
		}
		w.Instructions[i] = wi
	}
	return json.Marshal(w)
}

func (tx *Transaction) UnmarshalJSON(raw []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	tx.RecentBlockhash = w.RecentBlockhash
	tx.Signatures = w.Signatures
	tx.Instructions = make([]Instruction, len(w.Instructions))
	for i, wi := range w.Instructions {
		data, err := base64.StdEncoding.DecodeString(wi.Data)
		if err != nil {
			return fmt.Errorf("instruction %d data: %w", i, err)
		}
		ix := Instruction{ProgramID: wi.ProgramID, Data: data, Accounts: make([]*solana.AccountMeta, len(wi.Accounts))}
		for j, wa := range wi.Accounts {
			ix.Accounts[j] = solana.NewAccountMeta(wa.Pubkey, wa.IsWritable, wa.IsSigner)
		}
		tx.Instructions[i] = ix
	}
	return nil
}
