package daily

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Scheme names a payout scheme.
type Scheme string

const (
	PPS   Scheme = "PPS"
	PPLNS Scheme = "PPLNS"
)

// Lookback is the trailing window blocks are counted over.
const Lookback = 24 * time.Hour

// Policy holds the fixed constants of the comparison.
type Policy struct {
	PerBlock     decimal.Decimal
	Baseline     decimal.Decimal
	PPLNSVerdict string
	PPSVerdict   string
}

// Recommendation is the computed daily verdict.
type Recommendation struct {
	Date     string
	Blocks   int
	Value    decimal.Decimal
	Baseline decimal.Decimal
	Scheme   Scheme
	Verdict  string
}

// Recommend counts block timestamps (unix seconds) in (now-24h, now] and
// compares count*PerBlock with Baseline. Ties favour PPLNS.
func Recommend(timestamps []int64, now time.Time, p Policy) Recommendation {
	from := now.Add(-Lookback).Unix()
	to := now.Unix()

	count := 0
	for _, ts := range timestamps {
		if ts > from && ts <= to {
			count++
		}
	}

	value := p.PerBlock.Mul(decimal.NewFromInt(int64(count)))
	rec := Recommendation{
		Date:     now.Format(DateLayout),
		Blocks:   count,
		Value:    value,
		Baseline: p.Baseline,
		Scheme:   PPS,
		Verdict:  p.PPSVerdict,
	}
	if value.GreaterThanOrEqual(p.Baseline) {
		rec.Scheme = PPLNS
		rec.Verdict = p.PPLNSVerdict
	}
	return rec
}

// Message formats the recommendation as a chat message.
func (r Recommendation) Message() string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("📊 Daily payout check %s\n", r.Date))
	b.WriteString(fmt.Sprintf("Blocks (24h): %d\n", r.Blocks))
	b.WriteString(fmt.Sprintf("PPLNS estimate: %s BTC\n", r.Value.StringFixed(8)))
	b.WriteString(fmt.Sprintf("PPS baseline: %s BTC\n", r.Baseline.StringFixed(8)))
	b.WriteString(r.Verdict)
	return b.String()
}
