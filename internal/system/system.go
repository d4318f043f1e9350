// Package system implements the native account allocator and lamport transfers.
package system

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/runtime"
)

// ProgramID is the system program address.
var ProgramID = solana.SystemProgramID

// Instruction indices, matching the native system program.
const (
	InstructionCreateAccount uint32 = 0
	InstructionAssign        uint32 = 1
	InstructionTransfer      uint32 = 2
)

// MaxAccountDataSize bounds a single allocation.
const MaxAccountDataSize = 10 * 1024 * 1024

type CreateAccountParams struct {
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

type Program struct{}

func NewProgram() *Program { return &Program{} }

func (p *Program) ProgramID() solana.PublicKey { return ProgramID }

func (p *Program) Process(ictx *runtime.InvokeContext, data []byte) error {
	dec := bin.NewBinDecoder(data)
	index, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return runtime.ErrInvalidInstructionData
	}
	switch index {
	case InstructionCreateAccount:
		var params CreateAccountParams
		if params.Lamports, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return runtime.ErrInvalidInstructionData
		}
		if params.Space, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return runtime.ErrInvalidInstructionData
		}
		raw, err := dec.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return runtime.ErrInvalidInstructionData
		}
		params.Owner = solana.PublicKeyFromBytes(raw)
		return p.createAccount(ictx, params)
	case InstructionAssign:
		raw, err := dec.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return runtime.ErrInvalidInstructionData
		}
		return p.assign(ictx, solana.PublicKeyFromBytes(raw))
	case InstructionTransfer:
		lamports, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return runtime.ErrInvalidInstructionData
		}
		return p.transfer(ictx, lamports)
	default:
		return runtime.ErrInvalidInstructionData
	}
}

func (p *Program) createAccount(ictx *runtime.InvokeContext, params CreateAccountParams) error {
	if params.Space > MaxAccountDataSize {
		return fmt.Errorf("%w: space %d", runtime.ErrInvalidInstructionData, params.Space)
	}
	funder, err := ictx.Account(0)
	if err != nil {
		return err
	}
	account, err := ictx.Account(1)
	if err != nil {
		return err
	}
	if !funder.IsSigner || !account.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	if !funder.IsWritable || !account.IsWritable {
		return runtime.ErrAccountNotWritable
	}
	if account.Exists() {
		ictx.Log("Create Account: account %s already in use", account.Key)
		return fmt.Errorf("%w: %s", runtime.ErrAccountAlreadyInUse, account.Key)
	}
	if account.Retired() {
		ictx.Log("Create Account: account %s was closed and cannot be reused", account.Key)
		return fmt.Errorf("%w: %s is retired", runtime.ErrAccountAlreadyInUse, account.Key)
	}
	if funder.Lamports < params.Lamports {
		ictx.Log("Transfer: insufficient lamports %d, need %d", funder.Lamports, params.Lamports)
		return runtime.ErrInsufficientFunds
	}

	funder.Lamports -= params.Lamports
	account.Lamports = params.Lamports
	account.Data = make([]byte, params.Space)
	account.Owner = params.Owner
	return nil
}

func (p *Program) assign(ictx *runtime.InvokeContext, owner solana.PublicKey) error {
	account, err := ictx.Account(0)
	if err != nil {
		return err
	}
	if !account.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	if !account.Owner.Equals(ProgramID) {
		return runtime.ErrInvalidAccountOwner
	}
	if account.Retired() {
		return fmt.Errorf("%w: %s is retired", runtime.ErrAccountAlreadyInUse, account.Key)
	}
	account.Owner = owner
	return nil
}

func (p *Program) transfer(ictx *runtime.InvokeContext, lamports uint64) error {
	from, err := ictx.Account(0)
	if err != nil {
		return err
	}
	to, err := ictx.Account(1)
	if err != nil {
		return err
	}
	if !from.IsSigner {
		return runtime.ErrMissingRequiredSignature
	}
	if !from.IsWritable || !to.IsWritable {
		return runtime.ErrAccountNotWritable
	}
	if len(from.Data) > 0 {
		ictx.Log("Transfer: `from` must not carry data")
		return runtime.ErrInvalidAccountOwner
	}
	if from.Lamports < lamports {
		ictx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return runtime.ErrInsufficientFunds
	}
	if to.Lamports > ^uint64(0)-lamports {
		return runtime.ErrArithmeticOverflow
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

// CreateAccountData encodes a CreateAccount instruction.
func CreateAccountData(params CreateAccountParams) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint32(InstructionCreateAccount, binary.LittleEndian)
	_ = enc.WriteUint64(params.Lamports, binary.LittleEndian)
	_ = enc.WriteUint64(params.Space, binary.LittleEndian)
	_ = enc.WriteBytes(params.Owner[:], false)
	return buf.Bytes()
}

// TransferData encodes a Transfer instruction.
func TransferData(lamports uint64) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint32(InstructionTransfer, binary.LittleEndian)
	_ = enc.WriteUint64(lamports, binary.LittleEndian)
	return buf.Bytes()
}

func AssignData(owner solana.PublicKey) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint32(InstructionAssign, binary.LittleEndian)
	_ = enc.WriteBytes(owner[:], false)
	return buf.Bytes()
}

// NewTransferInstruction moves lamports between two system accounts.
func NewTransferInstruction(lamports uint64, from, to solana.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(from, true, true),
			solana.NewAccountMeta(to, true, false),
		},
		Data: TransferData(lamports),
	}
}

// NewCreateAccountInstruction allocates a fresh account owned by owner.
func NewCreateAccountInstruction(params CreateAccountParams, funder, account solana.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(funder, true, true),
			solana.NewAccountMeta(account, true, true),
		},
		Data: CreateAccountData(params),
	}
}

// NewAssignInstruction hands a system account to owner.
func NewAssignInstruction(account, owner solana.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: ProgramID,
		Accounts: []*solana.AccountMeta{
			solana.NewAccountMeta(account, true, true),
		},
		Data: AssignData(owner),
	}
}
