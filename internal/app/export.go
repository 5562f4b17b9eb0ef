package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"pool-block-alerts/internal/classify"
	"pool-block-alerts/internal/storage"
)

// defaultExportWindow is used when --from is omitted.
const defaultExportWindow = 30 * 24 * time.Hour

// Export renders notified block history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	window := opts.Window
	if window <= 0 {
		window = defaultExportWindow
	}
	from := to.Add(-window)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	blocks, err := store.ListBlocksBetween(ctx, from, to)
	if err != nil {
		return err
	}
	blocks = filterTier(blocks, opts.Tier)
	if len(blocks) == 0 {
		a.Logger.Info().Str("tier", string(opts.Tier)).Msg("no blocks found for export window")
		return nil
	}

	downsampled := downsampleBlocks(blocks, opts.MaxPoints)
	a.Logger.Info().Int("total", len(blocks)).Int("exported", len(downsampled)).Msg("exporting blocks")

	if opts.CSVPath != "" {
		if err := writeBlocksCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeBlocksPNG(opts.PNGPath, downsampled, a.Config.Pool.Coin); err != nil {
			return err
		}
	}

	return nil
}

func filterTier(blocks []storage.BlockRecord, tier classify.Tier) []storage.BlockRecord {
	if tier == "" {
		return blocks
	}
	kept := blocks[:0:0]
	for _, rec := range blocks {
		if classify.Tier(rec.Tier) == tier {
			kept = append(kept, rec)
		}
	}
	return kept
}

func downsampleBlocks(blocks []storage.BlockRecord, max int) []storage.BlockRecord {
	if max <= 0 || len(blocks) <= max {
		return blocks
	}
	if max == 1 {
		return blocks[len(blocks)-1:]
	}

	result := make([]storage.BlockRecord, 0, max)
	step := float64(len(blocks)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(blocks) {
			idx = len(blocks) - 1
		}
		result = append(result, blocks[idx])
	}
	return result
}

func writeBlocksCSV(path string, blocks []storage.BlockRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"found_at", "height", "tier", "luck_pct", "reward", "runtime_seconds", "notified_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range blocks {
		luck := ""
		if rec.Luck.Valid {
			luck = classify.LuckPercent(rec.Luck)
		}
		record := []string{
			rec.FoundAt.Format(time.RFC3339),
			strconv.FormatInt(rec.Height, 10),
			rec.Tier,
			luck,
			rec.Reward.String(),
			strconv.FormatInt(rec.Runtime, 10),
			rec.NotifiedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeBlocksPNG(path string, blocks []storage.BlockRecord, coin string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(blocks))
	reward := make([]float64, len(blocks))
	var luckX []time.Time
	var luckY []float64
	for i, rec := range blocks {
		x[i] = rec.FoundAt
		reward[i] = rec.Reward.InexactFloat64()
		// speedrun blocks without a luck value are left off the luck line
		if rec.Luck.Valid {
			luckX = append(luckX, rec.FoundAt)
			luckY = append(luckY, rec.Luck.Decimal.Shift(2).InexactFloat64())
		}
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Luck (%)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: fmt.Sprintf("Reward (%s)", coin),
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.4f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Luck %",
				XValues: luckX,
				YValues: luckY,
			},
			chart.TimeSeries{
				Name:    "Reward",
				XValues: x,
				YValues: reward,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
