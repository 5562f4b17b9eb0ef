package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"pool-block-alerts/internal/classify"
	"pool-block-alerts/internal/render"
	"pool-block-alerts/internal/storage"
)

// Show prints recently notified blocks or payouts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Payouts {
		payouts, err := store.ListRecentPayouts(ctx, opts.Limit)
		if err != nil {
			return err
		}
		return writePayoutTable(os.Stdout, payouts, a.Config.Pool.Coin)
	}

	blocks, err := store.ListRecentBlocks(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return writeBlockTable(os.Stdout, blocks, a.Config.Pool.Coin)
}

func writeBlockTable(out io.Writer, blocks []storage.BlockRecord, coin string) error {
	if len(blocks) == 0 {
		fmt.Fprintln(out, "no blocks found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Height\tFound (UTC)\tTier\tLuck%%\tReward (%s)\tRuntime\n", coin)
	for _, rec := range blocks {
		tier := classify.Tier(rec.Tier)
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s %s\t%s\t%s\t%s\n",
			rec.Height,
			rec.FoundAt.UTC().Format(time.RFC3339),
			tier.Icon(),
			tier.Label(),
			classify.LuckPercent(rec.Luck),
			formatDecimal(rec.Reward, 8),
			render.FormatRuntime(rec.Runtime),
		)
	}
	return writer.Flush()
}

func writePayoutTable(out io.Writer, payouts []storage.PayoutRecord, coin string) error {
	if len(payouts) == 0 {
		fmt.Fprintln(out, "no payouts found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Height\tDate\tProfit (%s)\tNotified (UTC)\n", coin)
	for _, rec := range payouts {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\n",
			rec.Height,
			rec.Date,
			formatDecimal(rec.Profit, 8),
			rec.NotifiedAt.UTC().Format(time.RFC3339),
		)
	}
	return writer.Flush()
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
