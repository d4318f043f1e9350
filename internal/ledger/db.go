package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-raffles/internal/models"
)

// DB is the bun-backed Store. Postgres commits run serializable, SQLite
// commits are serialized by the database lock.
type DB struct {
	Bun *bun.DB
}

func NewDB(b *bun.DB) *DB {
	return &DB{Bun: b}
}

// CreateSchema creates the ledger tables when migrations are not in use.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range []interface{}{
		(*models.AccountRecord)(nil),
		(*models.BlockRecord)(nil),
		(*models.SignatureRecord)(nil),
		(*models.RetiredAccountRecord)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Init writes the genesis block if the chain is empty.
func (d *DB) Init(ctx context.Context) error {
	n, err := d.Bun.NewSelect().Model((*models.BlockRecord)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count blocks: %w", err)
	}
	if n > 0 {
		return nil
	}
	genesis := &models.BlockRecord{
		Slot:      0,
		Blockhash: GenesisBlockhash().String(),
		UnixTime:  time.Now().Unix(),
	}
	_, err = d.Bun.NewInsert().Model(genesis).Exec(ctx)
	return err
}

func (d *DB) Update(ctx context.Context, fn func(tx Tx) error) error {
	var opts *sql.TxOptions
	if d.Bun.Dialect().Name() == dialect.PG {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return d.Bun.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		return fn(&dbTx{db: tx})
	})
}

func (d *DB) GetAccount(ctx context.Context, key solana.PublicKey) (*Account, error) {
	return getAccount(ctx, d.Bun, key)
}

func (d *DB) Scan(ctx context.Context, owner solana.PublicKey, filters []Filter, page Page) ([]*Account, error) {
	var recs []models.AccountRecord
	err := d.Bun.NewSelect().
		Model(&recs).
		Where("owner = ?", owner.String()).
		Order("pubkey ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	accs := make([]*Account, 0, len(recs))
	for i := range recs {
		acc, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		accs = append(accs, acc)
	}
	return paginate(accs, filters, page), nil
}

func (d *DB) LatestBlock(ctx context.Context) (*Block, error) {
	return latestBlock(ctx, d.Bun)
}

func (d *DB) BlockAfter(ctx context.Context, unixTime int64) (*Block, error) {
	before := new(models.BlockRecord)
	err := d.Bun.NewSelect().
		Model(before).
		Where("unix_time < ?", unixTime).
		Order("slot DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlockhashNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := new(models.BlockRecord)
	err = d.Bun.NewSelect().
		Model(rec).
		Where("slot > ?", before.Slot).
		Order("slot ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlockhashNotFound
	}
	if err != nil {
		return nil, err
	}
	return toBlock(rec)
}

type dbTx struct {
	db bun.IDB
}

func (t *dbTx) GetAccount(ctx context.Context, key solana.PublicKey) (*Account, error) {
	return getAccount(ctx, t.db, key)
}

func (t *dbTx) PutAccount(ctx context.Context, acc *Account) error {
	rec := &models.AccountRecord{
		Pubkey:    acc.Key.String(),
		Owner:     acc.Owner.String(),
		Lamports:  acc.Lamports,
		Data:      acc.Data,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := t.db.NewInsert().
		Model(rec).
		On("CONFLICT (pubkey) DO UPDATE").
		Set("owner = EXCLUDED.owner").
		Set("lamports = EXCLUDED.lamports").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (t *dbTx) DeleteAccount(ctx context.Context, key solana.PublicKey) error {
	_, err := t.db.NewDelete().
		Model((*models.AccountRecord)(nil)).
		Where("pubkey = ?", key.String()).
		Exec(ctx)
	return err
}

func (t *dbTx) HasSignature(ctx context.Context, sig solana.Signature) (bool, error) {
	return t.db.NewSelect().
		Model((*models.SignatureRecord)(nil)).
		Where("signature = ?", sig.String()).
		Exists(ctx)
}

func (t *dbTx) RecordSignature(ctx context.Context, sig solana.Signature, slot uint64) error {
	_, err := t.db.NewInsert().
		Model(&models.SignatureRecord{Signature: sig.String(), Slot: slot}).
		Exec(ctx)
	return err
}

func (t *dbTx) LatestBlock(ctx context.Context) (*Block, error) {
	return latestBlock(ctx, t.db)
}

func (t *dbTx) IsRecentBlockhash(ctx context.Context, hash solana.Hash) (bool, error) {
	rec := new(models.BlockRecord)
	err := t.db.NewSelect().
		Model(rec).
		Where("blockhash = ?", hash.String()).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	latest, err := latestBlock(ctx, t.db)
	if err != nil {
		return false, err
	}
	return latest.Slot-rec.Slot < MaxRecentBlockhashes, nil
}

func (t *dbTx) AppendBlock(ctx context.Context, block Block) error {
	_, err := t.db.NewInsert().
		Model(&models.BlockRecord{
			Slot:      block.Slot,
			Blockhash: block.Blockhash.String(),
			UnixTime:  block.UnixTime,
		}).
		Exec(ctx)
	return err
}

func (t *dbTx) RetireAccount(ctx context.Context, key solana.PublicKey, slot uint64) error {
	_, err := t.db.NewInsert().
		Model(&models.RetiredAccountRecord{Pubkey: key.String(), Slot: slot}).
		On("CONFLICT (pubkey) DO NOTHING").
		Exec(ctx)
	return err
}

func (t *dbTx) IsRetired(ctx context.Context, key solana.PublicKey) (bool, error) {
	return t.db.NewSelect().
		Model((*models.RetiredAccountRecord)(nil)).
		Where("pubkey = ?", key.String()).
		Exists(ctx)
}

func getAccount(ctx context.Context, db bun.IDB, key solana.PublicKey) (*Account, error) {
	rec := new(models.AccountRecord)
	err := db.NewSelect().
		Model(rec).
		Where("pubkey = ?", key.String()).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(rec)
}

func latestBlock(ctx context.Context, db bun.IDB) (*Block, error) {
	rec := new(models.BlockRecord)
	err := db.NewSelect().
		Model(rec).
		Order("slot DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlockhashNotFound
	}
	if err != nil {
		return nil, err
	}
	return toBlock(rec)
}

func toBlock(rec *models.BlockRecord) (*Block, error) {
	hash, err := solana.HashFromBase58(rec.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", rec.Slot, err)
	}
	return &Block{Slot: rec.Slot, Blockhash: hash, UnixTime: rec.UnixTime}, nil
}

func fromRecord(rec *models.AccountRecord) (*Account, error) {
	key, err := solana.PublicKeyFromBase58(rec.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("%w: pubkey %q", ErrInvalidAccountData, rec.Pubkey)
	}
	owner, err := solana.PublicKeyFromBase58(rec.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner %q", ErrInvalidAccountData, rec.Owner)
	}
	return &Account{Key: key, Owner: owner, Lamports: rec.Lamports, Data: rec.Data}, nil
}
