package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AccountRecord is a ledger account row. Keys are base58 encoded.
type AccountRecord struct {
	bun.BaseModel `bun:"table:accounts"`

	Pubkey    string    `bun:"pubkey,pk"`
	Owner     string    `bun:"owner,notnull"`
	Lamports  uint64    `bun:"lamports,notnull"`
	Data      []byte    `bun:"data"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// BlockRecord is one committed slot and the blockhash it produced.
type BlockRecord struct {
	bun.BaseModel `bun:"table:blocks"`

	Slot      uint64 `bun:"slot,pk"`
	Blockhash string `bun:"blockhash,notnull,unique"`
	UnixTime  int64  `bun:"unix_time,notnull"`
}

// SignatureRecord marks a transaction signature as processed.
type SignatureRecord struct {
	bun.BaseModel `bun:"table:signatures"`

	Signature string `bun:"signature,pk"`
	Slot      uint64 `bun:"slot,notnull"`
}

// RetiredAccountRecord tombstones the key of a closed program account.
type RetiredAccountRecord struct {
	bun.BaseModel `bun:"table:retired_accounts"`

	Pubkey string `bun:"pubkey,pk"`
	Slot   uint64 `bun:"slot,notnull"`
}
