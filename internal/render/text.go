package render

import (
	"fmt"
	"strings"
	"time"

	"pool-block-alerts/internal/classify"
	"pool-block-alerts/internal/fetcher"
)

// TimeLayout formats block timestamps (UTC).
const TimeLayout = "2006-01-02 15:04:05"

// FormatRuntime renders seconds as "1h 2m 3s".
func FormatRuntime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh %dm %ds", seconds/3600, (seconds%3600)/60, seconds%60)
}

// BlockLines are the body lines of a block card.
func BlockLines(ev fetcher.BlockEvent, tier classify.Tier, coin string) []string {
	return []string{
		fmt.Sprintf("Height: %d", ev.Height),
		fmt.Sprintf("Time: %s", time.Unix(ev.Timestamp, 0).UTC().Format(TimeLayout)),
		fmt.Sprintf("Luck: %s%% (%s)", classify.LuckPercent(ev.Luck), tier.Label()),
		fmt.Sprintf("Reward: %s %s", ev.Reward.StringFixed(8), coin),
		fmt.Sprintf("Runtime: %s", FormatRuntime(ev.Runtime)),
	}
}

// PayoutLines are the body lines of a payout card.
func PayoutLines(ev fetcher.PayoutEvent, coin string) []string {
	return []string{
		fmt.Sprintf("Profit: %s %s", ev.Profit.StringFixed(8), coin),
		fmt.Sprintf("Block: %d", ev.Height),
		fmt.Sprintf("Time: %s", ev.Date),
	}
}

// BlockCaption is the photo caption for a block.
func BlockCaption(tier classify.Tier) string {
	return tier.Caption()
}

// PayoutCaption is the Markdown caption (and text fallback) for a payout.
func PayoutCaption(ev fetcher.PayoutEvent, pool, coin string) string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("💰 **%s Payout**\n", pool))
	b.WriteString(fmt.Sprintf("🧱 Block: `%d`\n", ev.Height))
	b.WriteString(fmt.Sprintf("🤑 Profit: `%s %s`", ev.Profit.StringFixed(8), coin))
	return b.String()
}
