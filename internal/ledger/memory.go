package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// MemoryStore keeps the ledger in process. Update calls are serialized.
type MemoryStore struct {
	mu         sync.RWMutex
	accounts   map[solana.PublicKey]*Account
	signatures map[solana.Signature]uint64
	blocks     []Block
	byHash     map[solana.Hash]uint64
	retired    map[solana.PublicKey]uint64
}

func NewMemoryStore() *MemoryStore {
	genesis := Block{Slot: 0, Blockhash: GenesisBlockhash(), UnixTime: time.Now().Unix()}
	return &MemoryStore{
		accounts:   make(map[solana.PublicKey]*Account),
		signatures: make(map[solana.Signature]uint64),
		blocks:     []Block{genesis},
		byHash:     map[solana.Hash]uint64{genesis.Blockhash: 0},
		retired:    make(map[solana.PublicKey]uint64),
	}
}

func (m *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:      m,
		accounts:   make(map[solana.PublicKey]*Account),
		deleted:    make(map[solana.PublicKey]bool),
		signatures: make(map[solana.Signature]uint64),
		retired:    make(map[solana.PublicKey]uint64),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for key := range tx.deleted {
		delete(m.accounts, key)
	}
	for key, acc := range tx.accounts {
		m.accounts[key] = acc
	}
	for sig, slot := range tx.signatures {
		m.signatures[sig] = slot
	}
	for key, slot := range tx.retired {
		m.retired[key] = slot
	}
	for _, b := range tx.blocks {
		m.blocks = append(m.blocks, b)
		m.byHash[b.Blockhash] = b.Slot
	}
	return nil
}

func (m *MemoryStore) GetAccount(_ context.Context, key solana.PublicKey) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[key]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (m *MemoryStore) Scan(_ context.Context, owner solana.PublicKey, filters []Filter, page Page) ([]*Account, error) {
	m.mu.RLock()
	var accs []*Account
	for _, acc := range m.accounts {
		if acc.Owner.Equals(owner) {
			accs = append(accs, acc.Clone())
		}
	}
	m.mu.RUnlock()
	return paginate(accs, filters, page), nil
}

func (m *MemoryStore) LatestBlock(_ context.Context) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := m.blocks[len(m.blocks)-1]
	return &b, nil
}

func (m *MemoryStore) BlockAfter(_ context.Context, unixTime int64) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.blocks) - 1; i >= 0; i-- {
		if m.blocks[i].UnixTime >= unixTime {
			continue
		}
		if i+1 == len(m.blocks) {
			return nil, ErrBlockhashNotFound
		}
		b := m.blocks[i+1]
		return &b, nil
	}
	return nil, ErrBlockhashNotFound
}

type memoryTx struct {
	store      *MemoryStore
	accounts   map[solana.PublicKey]*Account
	deleted    map[solana.PublicKey]bool
	signatures map[solana.Signature]uint64
	retired    map[solana.PublicKey]uint64
	blocks     []Block
}

func (t *memoryTx) GetAccount(_ context.Context, key solana.PublicKey) (*Account, error) {
	if acc, ok := t.accounts[key]; ok {
		return acc.Clone(), nil
	}
	if t.deleted[key] {
		return nil, ErrAccountNotFound
	}
	acc, ok := t.store.accounts[key]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (t *memoryTx) PutAccount(_ context.Context, acc *Account) error {
	delete(t.deleted, acc.Key)
	t.accounts[acc.Key] = acc.Clone()
	return nil
}

func (t *memoryTx) DeleteAccount(_ context.Context, key solana.PublicKey) error {
	delete(t.accounts, key)
	t.deleted[key] = true
	return nil
}

func (t *memoryTx) HasSignature(_ context.Context, sig solana.Signature) (bool, error) {
	if _, ok := t.signatures[sig]; ok {
		return true, nil
	}
	_, ok := t.store.signatures[sig]
	return ok, nil
}

func (t *memoryTx) RecordSignature(_ context.Context, sig solana.Signature, slot uint64) error {
	t.signatures[sig] = slot
	return nil
}

func (t *memoryTx) LatestBlock(_ context.Context) (*Block, error) {
	if n := len(t.blocks); n > 0 {
		b := t.blocks[n-1]
		return &b, nil
	}
	b := t.store.blocks[len(t.store.blocks)-1]
	return &b, nil
}

func (t *memoryTx) IsRecentBlockhash(ctx context.Context, hash solana.Hash) (bool, error) {
	slot, ok := t.store.byHash[hash]
	if !ok {
		return false, nil
	}
	latest, _ := t.LatestBlock(ctx)
	return latest.Slot-slot < MaxRecentBlockhashes, nil
}

func (t *memoryTx) AppendBlock(_ context.Context, block Block) error {
	t.blocks = append(t.blocks, block)
	return nil
}

func (t *memoryTx) RetireAccount(_ context.Context, key solana.PublicKey, slot uint64) error {
	t.retired[key] = slot
	return nil
}

func (t *memoryTx) IsRetired(_ context.Context, key solana.PublicKey) (bool, error) {
	if _, ok := t.retired[key]; ok {
		return true, nil
	}
	_, ok := t.store.retired[key]
	return ok, nil
}
