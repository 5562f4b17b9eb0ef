package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// BlockEvent is a block found by the pool.
type BlockEvent struct {
	Height    int64
	Luck      decimal.NullDecimal
	Reward    decimal.Decimal
	Runtime   int64
	Timestamp int64
}

// EventHeight implements dedup.Heighted.
func (b BlockEvent) EventHeight() int64 { return b.Height }

// PayoutEvent is a PPLNS earning credited for a block.
type PayoutEvent struct {
	Height int64
	Profit decimal.Decimal
	Date   string
}

// EventHeight implements dedup.Heighted.
func (p PayoutEvent) EventHeight() int64 { return p.Height }

// BlockFetcher retrieves the latest page of pool blocks, newest first.
type BlockFetcher interface {
	FetchBlocks(ctx context.Context) ([]BlockEvent, error)
}

// PayoutFetcher retrieves the payouts of a month ("2006-01").
type PayoutFetcher interface {
	FetchPayouts(ctx context.Context, month string) ([]PayoutEvent, error)
}
