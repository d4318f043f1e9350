package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/ledger"
	"ms-raffles/internal/logger"
)

// Receipt describes a committed transaction.
type Receipt struct {
	Signature solana.Signature `json:"signature"`
	Slot      uint64           `json:"slot"`
	Blockhash solana.Hash      `json:"blockhash"`
	UnixTime  int64            `json:"unix_time"`
	Logs      []string         `json:"logs"`
	Events    []Event          `json:"-"`
}

// Runtime executes signed transactions against a ledger store. Each
// transaction commits as one slot or not at all.
type Runtime struct {
	mu       sync.Mutex
	store    ledger.Store
	clock    Clock
	log      *logger.Logger
	programs map[solana.PublicKey]Program
}

func New(store ledger.Store, clock Clock, log *logger.Logger, programs ...Program) *Runtime {
	if clock == nil {
		clock = SystemClock{}
	}
	rt := &Runtime{
		store:    store,
		clock:    clock,
		log:      log,
		programs: make(map[solana.PublicKey]Program, len(programs)),
	}
	for _, p := range programs {
		rt.programs[p.ProgramID()] = p
	}
	return rt
}

func (r *Runtime) Store() ledger.Store { return r.store }

func (r *Runtime) Clock() Clock { return r.clock }

// execution holds the per-transaction working set.
type execution struct {
	tx       ledger.Tx
	accounts map[solana.PublicKey]*AccountInfo
	order    []solana.PublicKey
	logs     []string
	events   []Event
}

func (e *execution) load(ctx context.Context, key solana.PublicKey) (*AccountInfo, error) {
	if info, ok := e.accounts[key]; ok {
		return info, nil
	}
	info := &AccountInfo{Key: key, Owner: solana.SystemProgramID}
	acc, err := e.tx.GetAccount(ctx, key)
	switch {
	case err == nil:
		info.Owner = acc.Owner
		info.Lamports = acc.Lamports
		info.Data = acc.Data
		info.existed = true
	case errors.Is(err, ledger.ErrAccountNotFound):
	default:
		return nil, err
	}
	info.loadedOwner = info.Owner
	if info.retired, err = e.tx.IsRetired(ctx, key); err != nil {
		return nil, err
	}
	e.accounts[key] = info
	e.order = append(e.order, key)
	return info, nil
}

// Submit verifies, executes and commits tx.
func (r *Runtime) Submit(ctx context.Context, tx *Transaction) (*Receipt, error) {
	if len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}
	if err := tx.Verify(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().Unix()
	sig := tx.ID()
	receipt := &Receipt{Signature: sig, UnixTime: now}

	err := r.store.Update(ctx, func(ltx ledger.Tx) error {
		seen, err := ltx.HasSignature(ctx, sig)
		if err != nil {
			return err
		}
		if seen {
			return ErrAlreadyProcessed
		}
		recent, err := ltx.IsRecentBlockhash(ctx, tx.RecentBlockhash)
		if err != nil {
			return err
		}
		if !recent {
			return ErrBlockhashNotFound
		}
		latest, err := ltx.LatestBlock(ctx)
		if err != nil {
			return err
		}
		slot := latest.Slot + 1

		exec := &execution{tx: ltx, accounts: make(map[solana.PublicKey]*AccountInfo)}
		for i, ix := range tx.Instructions {
			if err := r.execute(ctx, exec, ix, now, slot); err != nil {
				receipt.Logs = exec.logs
				return &InstructionError{Index: i, Err: err}
			}
		}
		if err := r.commit(ctx, exec, slot); err != nil {
			return err
		}
		if err := ltx.RecordSignature(ctx, sig, slot); err != nil {
			return err
		}
		block := ledger.Block{
			Slot:      slot,
			Blockhash: ledger.NextBlockhash(latest.Blockhash, sig, slot),
			UnixTime:  now,
		}
		if err := ltx.AppendBlock(ctx, block); err != nil {
			return err
		}
		receipt.Slot = block.Slot
		receipt.Blockhash = block.Blockhash
		receipt.Logs = exec.logs
		receipt.Events = exec.events
		return nil
	})
	if err != nil {
		r.log.Warn("RUNTIME", fmt.Sprintf("transaction %s rejected: %v", sig, err))
		return receipt, err
	}
	r.log.Info("RUNTIME", fmt.Sprintf("transaction %s committed in slot %d", sig, receipt.Slot))
	return receipt, nil
}

func (r *Runtime) execute(ctx context.Context, exec *execution, ix Instruction, now int64, slot uint64) error {
	program, ok := r.programs[ix.ProgramID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}

	// Privileges are per instruction.
	for _, info := range exec.accounts {
		info.IsSigner = false
		info.IsWritable = false
	}
	accounts := make([]*AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		info, err := exec.load(ctx, meta.PublicKey)
		if err != nil {
			return err
		}
		info.IsSigner = info.IsSigner || meta.IsSigner
		info.IsWritable = info.IsWritable || meta.IsWritable
		accounts[i] = info
	}

	ictx := &InvokeContext{
		ctx:       ctx,
		rt:        r,
		exec:      exec,
		programID: ix.ProgramID,
		accounts:  accounts,
		Now:       now,
		Slot:      slot,
	}
	return ictx.run(program, ix.Data)
}

// commit writes back every account the transaction touched. Accounts left
// with zero lamports are removed, and a removed program account is retired.
func (r *Runtime) commit(ctx context.Context, exec *execution, slot uint64) error {
	for _, key := range exec.order {
		info := exec.accounts[key]
		if info.Lamports == 0 {
			if info.existed {
				if err := exec.tx.DeleteAccount(ctx, key); err != nil {
					return err
				}
				r.log.LogLedger("DELETE", key.String(), "account closed")
			}
			if !info.loadedOwner.Equals(solana.SystemProgramID) && !info.retired {
				if err := exec.tx.RetireAccount(ctx, key, slot); err != nil {
					return err
				}
				r.log.LogLedger("RETIRE", key.String(), fmt.Sprintf("closed program account retired at slot %d", slot))
			}
			continue
		}
		if info.Lamports > ledger.MaxLamports {
			return fmt.Errorf("%w: balance of %s", ErrArithmeticOverflow, key)
		}
		if len(info.Data) > 0 && info.Lamports < ledger.MinimumBalance(len(info.Data)) {
			return fmt.Errorf("%w: %s", ErrInsufficientFundsForRent, key)
		}
		err := exec.tx.PutAccount(ctx, &ledger.Account{
			Key:      key,
			Owner:    info.Owner,
			Lamports: info.Lamports,
			Data:     info.Data,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Airdrop credits a system account outside of any transaction.
func (r *Runtime) Airdrop(ctx context.Context, to solana.PublicKey, lamports uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var balance uint64
	err := r.store.Update(ctx, func(tx ledger.Tx) error {
		acc, err := tx.GetAccount(ctx, to)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			acc = &ledger.Account{Key: to, Owner: solana.SystemProgramID}
		} else if err != nil {
			return err
		}
		if !acc.Owner.Equals(solana.SystemProgramID) {
			return fmt.Errorf("%w: %s", ErrInvalidAccountOwner, to)
		}
		if lamports > ledger.MaxLamports || acc.Lamports > ledger.MaxLamports-lamports {
			return ErrArithmeticOverflow
		}
		acc.Lamports += lamports
		balance = acc.Lamports
		return tx.PutAccount(ctx, acc)
	})
	if err != nil {
		return 0, err
	}
	r.log.LogLedger("AIRDROP", to.String(), fmt.Sprintf("+%d lamports", lamports))
	return balance, nil
}

// Balance returns the lamports held by key, zero if it does not exist.
func (r *Runtime) Balance(ctx context.Context, key solana.PublicKey) (uint64, error) {
	acc, err := r.store.GetAccount(ctx, key)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Lamports, nil
}

func (r *Runtime) GetAccount(ctx context.Context, key solana.PublicKey) (*ledger.Account, error) {
	return r.store.GetAccount(ctx, key)
}

func (r *Runtime) LatestBlockhash(ctx context.Context) (*ledger.Block, error) {
	return r.store.LatestBlock(ctx)
}
