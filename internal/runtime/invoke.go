package runtime

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/ledger"
)

// MaxInvokeDepth bounds nested program invocations.
const MaxInvokeDepth = 4

// AccountInfo is the mutable view of an account a program works on. The same
// key always resolves to the same AccountInfo within a transaction.
type AccountInfo struct {
	Key        solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Data       []byte
	IsSigner   bool
	IsWritable bool

	existed     bool
	retired     bool
	loadedOwner solana.PublicKey
}

// Exists reports whether the account holds any state.
func (a *AccountInfo) Exists() bool {
	return a.Lamports > 0 || len(a.Data) > 0 || !a.Owner.Equals(solana.SystemProgramID)
}

// Retired reports whether the key belonged to a program account that was
// closed. A retired key is never allocated again.
func (a *AccountInfo) Retired() bool { return a.retired }

// Program handles the instructions addressed to its id.
type Program interface {
	ProgramID() solana.PublicKey
	Process(ictx *InvokeContext, data []byte) error
}

// Event is a typed notification a program emits on success.
type Event interface {
	EventName() string
	EventKey() string
}

// InvokeContext is handed to a program for one instruction.
type InvokeContext struct {
	ctx       context.Context
	rt        *Runtime
	exec      *execution
	depth     int
	programID solana.PublicKey
	accounts  []*AccountInfo
	pre       []accountSnapshot

	// Now is the clock sample for the whole transaction, in Unix seconds.
	Now  int64
	Slot uint64
}

type accountSnapshot struct {
	info     *AccountInfo
	owner    solana.PublicKey
	lamports uint64
	data     []byte
}

func (c *InvokeContext) Context() context.Context { return c.ctx }

func (c *InvokeContext) ProgramID() solana.PublicKey { return c.programID }

// Account returns the i-th account of the instruction.
func (c *InvokeContext) Account(i int) (*AccountInfo, error) {
	if i < 0 || i >= len(c.accounts) {
		return nil, ErrNotEnoughAccountKeys
	}
	return c.accounts[i], nil
}

func (c *InvokeContext) NumAccounts() int { return len(c.accounts) }

// RentMinimum is the rent-exempt balance for dataLen bytes.
func (c *InvokeContext) RentMinimum(dataLen int) uint64 {
	return ledger.MinimumBalance(dataLen)
}

func (c *InvokeContext) Log(format string, args ...interface{}) {
	c.exec.logs = append(c.exec.logs, "Program log: "+fmt.Sprintf(format, args...))
}

func (c *InvokeContext) Emit(ev Event) {
	c.exec.events = append(c.exec.events, ev)
}

// Invoke calls another program with a subset of this instruction's accounts.
// Signer and writable privileges carry over unchanged.
func (c *InvokeContext) Invoke(programID solana.PublicKey, data []byte, accounts ...*AccountInfo) error {
	if c.depth+1 >= MaxInvokeDepth {
		return ErrCallDepth
	}
	program, ok := c.rt.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, programID)
	}
	// Changes made so far belong to the caller.
	if err := c.verify(); err != nil {
		return err
	}
	callee := &InvokeContext{
		ctx:       c.ctx,
		rt:        c.rt,
		exec:      c.exec,
		depth:     c.depth + 1,
		programID: programID,
		accounts:  accounts,
		Now:       c.Now,
		Slot:      c.Slot,
	}
	if err := callee.run(program, data); err != nil {
		return err
	}
	c.snapshot()
	return nil
}

func (c *InvokeContext) run(program Program, data []byte) error {
	c.exec.logs = append(c.exec.logs, fmt.Sprintf("Program %s invoke [%d]", c.programID, c.depth+1))
	c.snapshot()
	err := program.Process(c, data)
	if err == nil {
		err = c.verify()
	}
	if err != nil {
		c.exec.logs = append(c.exec.logs, fmt.Sprintf("Program %s failed: %v", c.programID, err))
		return err
	}
	c.exec.logs = append(c.exec.logs, fmt.Sprintf("Program %s success", c.programID))
	return nil
}

func (c *InvokeContext) snapshot() {
	c.pre = c.pre[:0]
	seen := make(map[*AccountInfo]bool, len(c.accounts))
	for _, info := range c.accounts {
		if seen[info] {
			continue
		}
		seen[info] = true
		c.pre = append(c.pre, accountSnapshot{
			info:     info,
			owner:    info.Owner,
			lamports: info.Lamports,
			data:     append([]byte(nil), info.Data...),
		})
	}
}

// verify enforces what a program may do to the accounts handed to it.
func (c *InvokeContext) verify() error {
	var before, after uint64
	for _, snap := range c.pre {
		info := snap.info
		before += snap.lamports
		after += info.Lamports

		dataChanged := !bytes.Equal(snap.data, info.Data)
		ownerChanged := !snap.owner.Equals(info.Owner)
		if !info.IsWritable && (dataChanged || ownerChanged || snap.lamports != info.Lamports) {
			return fmt.Errorf("%w: %s", ErrReadonlyAccountModified, info.Key)
		}
		owned := snap.owner.Equals(c.programID)
		if info.Lamports < snap.lamports && !owned {
			return fmt.Errorf("%w: %s", ErrExternalLamportSpend, info.Key)
		}
		if dataChanged && !owned {
			return fmt.Errorf("%w: %s", ErrExternalDataModified, info.Key)
		}
		if ownerChanged && (!owned || !isZeroed(info.Data)) {
			return fmt.Errorf("%w: %s", ErrModifiedProgramID, info.Key)
		}
	}
	if before != after {
		return ErrUnbalancedInstruction
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
