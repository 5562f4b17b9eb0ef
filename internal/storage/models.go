package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// BlockRecord is a block notification that reached the chat.
type BlockRecord struct {
	Height     int64
	Tier       string
	Luck       decimal.NullDecimal
	Reward     decimal.Decimal
	Runtime    int64
	FoundAt    time.Time
	NotifiedAt time.Time
}

// PayoutRecord is a payout notification that reached the chat.
type PayoutRecord struct {
	Height     int64
	Profit     decimal.Decimal
	Date       string
	NotifiedAt time.Time
}
