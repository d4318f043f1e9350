package ledger

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sort"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrBlockhashNotFound  = errors.New("blockhash not found")
	ErrAlreadyProcessed   = errors.New("transaction already processed")
	ErrInvalidAccountData = errors.New("invalid account data")
)

// MaxLamports bounds any single balance so it fits a signed 64-bit column.
const MaxLamports uint64 = math.MaxInt64

// Account is a ledger entry. A key with zero lamports does not exist.
type Account struct {
	Key      solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.Data != nil {
		out.Data = append([]byte(nil), a.Data...)
	}
	return &out
}

// Filter matches accounts whose data holds Bytes at Offset.
type Filter struct {
	Offset int
	Bytes  []byte
}

func (f Filter) Match(data []byte) bool {
	if f.Offset < 0 || f.Offset+len(f.Bytes) > len(data) {
		return false
	}
	return bytes.Equal(data[f.Offset:f.Offset+len(f.Bytes)], f.Bytes)
}

// Page bounds a scan. A zero Limit returns everything after Offset.
type Page struct {
	Limit  int
	Offset int
}

// Block is one committed slot.
type Block struct {
	Slot      uint64
	Blockhash solana.Hash
	UnixTime  int64
}

// Store is the committed account set plus the block chain that orders it.
type Store interface {
	// Update runs fn in one atomic unit. Nothing fn writes is visible unless
	// it returns nil.
	Update(ctx context.Context, fn func(tx Tx) error) error
	GetAccount(ctx context.Context, key solana.PublicKey) (*Account, error)
	Scan(ctx context.Context, owner solana.PublicKey, filters []Filter, page Page) ([]*Account, error)
	LatestBlock(ctx context.Context) (*Block, error)
	// BlockAfter returns the block that follows the last block produced
	// before unixTime. It fails with ErrBlockhashNotFound until that block
	// exists.
	BlockAfter(ctx context.Context, unixTime int64) (*Block, error)
}

// Tx is the view handed to Store.Update.
type Tx interface {
	GetAccount(ctx context.Context, key solana.PublicKey) (*Account, error)
	PutAccount(ctx context.Context, acc *Account) error
	DeleteAccount(ctx context.Context, key solana.PublicKey) error
	HasSignature(ctx context.Context, sig solana.Signature) (bool, error)
	RecordSignature(ctx context.Context, sig solana.Signature, slot uint64) error
	LatestBlock(ctx context.Context) (*Block, error)
	IsRecentBlockhash(ctx context.Context, hash solana.Hash) (bool, error)
	AppendBlock(ctx context.Context, block Block) error
	// RetireAccount tombstones a closed program account so its key cannot
	// be allocated again.
	RetireAccount(ctx context.Context, key solana.PublicKey, slot uint64) error
	IsRetired(ctx context.Context, key solana.PublicKey) (bool, error)
}

func matchAll(filters []Filter, data []byte) bool {
	for _, f := range filters {
		if !f.Match(data) {
			return false
		}
	}
	return true
}

// paginate sorts by key and applies the filters and page window.
func paginate(accs []*Account, filters []Filter, page Page) []*Account {
	sort.Slice(accs, func(i, j int) bool {
		return accs[i].Key.String() < accs[j].Key.String()
	})
	out := make([]*Account, 0, len(accs))
	skipped := 0
	for _, acc := range accs {
		if !matchAll(filters, acc.Data) {
			continue
		}
		if skipped < page.Offset {
			skipped++
			continue
		}
		out = append(out, acc)
		if page.Limit > 0 && len(out) == page.Limit {
			break
		}
	}
	return out
}
