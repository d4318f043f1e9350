package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-raffles/internal/models"
)

var ErrDrawNotFound = errors.New("draw result not found")

type DB struct {
	Bun *bun.DB
}

// CreateSchema creates the projection tables when migrations are not in use.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range []interface{}{
		(*models.DrawResult)(nil),
		(*models.PurchaseCount)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// SaveDrawResult stores result unless the raffle already has one. It reports
// whether this call wrote the row.
func (d *DB) SaveDrawResult(ctx context.Context, result *models.DrawResult) (bool, error) {
	result.EncodeWinners()
	res, err := d.Bun.NewInsert().
		Model(result).
		On("CONFLICT (raffle) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (d *DB) GetDrawResult(ctx context.Context, raffle string) (*models.DrawResult, error) {
	var result models.DrawResult
	err := d.Bun.NewSelect().
		Model(&result).
		Where("raffle = ?", raffle).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDrawNotFound
	}
	if err != nil {
		return nil, err
	}
	result.DecodeWinners()
	return &result, nil
}

// IncrementPurchaseCount bumps the daily counter for raffle.
func (d *DB) IncrementPurchaseCount(ctx context.Context, raffle string, timestamp time.Time) error {
	date := timestamp.UTC().Truncate(24 * time.Hour)

	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing models.PurchaseCount
		err := tx.NewSelect().
			Model(&existing).
			Where("raffle = ?", raffle).
			Where("date = ?", date).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			_, err = tx.NewInsert().
				Model(&models.PurchaseCount{Raffle: raffle, Count: 1, Date: date}).
				Exec(ctx)
			return err
		}
		if err != nil {
			return err
		}

		existing.Count++
		_, err = tx.NewUpdate().
			Model(&existing).
			Column("count").
			WherePK().
			Exec(ctx)
		return err
	})
}

func (d *DB) GetPurchaseCounts(ctx context.Context, raffle string) ([]models.PurchaseCount, error) {
	var counts []models.PurchaseCount
	err := d.Bun.NewSelect().
		Model(&counts).
		Where("raffle = ?", raffle).
		Order("date").
		Scan(ctx)
	return counts, err
}
