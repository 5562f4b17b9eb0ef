package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pool-block-alerts/internal/app"
	"pool-block-alerts/internal/classify"
)

var (
	exportFrom      string
	exportTo        string
	exportDays      int
	exportTier      string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export notified blocks as CSV and/or a luck/reward PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		if exportTier != "" {
			tier := classify.Tier(exportTier)
			if !tier.Valid() {
				return fmt.Errorf("unknown --tier %q", exportTier)
			}
			opts.Tier = tier
		}

		if exportTo != "" {
			to, err := parseTimestamp("--to", exportTo)
			if err != nil {
				return err
			}
			opts.To = &to
		}

		switch {
		case exportFrom != "" && exportDays > 0:
			return fmt.Errorf("--from and --days are mutually exclusive")
		case exportFrom != "":
			from, err := parseTimestamp("--from", exportFrom)
			if err != nil {
				return err
			}
			opts.From = &from
		case exportDays > 0:
			opts.Window = time.Duration(exportDays) * 24 * time.Hour
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

// parseTimestamp accepts RFC3339 or a plain date (midnight UTC).
func parseTimestamp(flag, value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: want RFC3339 or YYYY-MM-DD", flag, value)
	}
	return ts, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start (RFC3339 or YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End (RFC3339 or YYYY-MM-DD, exclusive; default now)")
	exportCmd.Flags().IntVar(&exportDays, "days", 0, "Window length in days ending at --to (default 30)")
	exportCmd.Flags().StringVar(&exportTier, "tier", "", "Only export blocks of this tier")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
