package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PurchaseCount is the number of tickets sold for a raffle on one day.
type PurchaseCount struct {
	bun.BaseModel `bun:"table:purchase_counts"`

	ID     int64     `bun:"id,pk,autoincrement" json:"-"`
	Raffle string    `bun:"raffle,notnull" json:"raffle"`
	Count  int       `bun:"count" json:"count"`
	Date   time.Time `bun:"date" json:"date"`
}
