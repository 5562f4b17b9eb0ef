package classify

import (
	"github.com/shopspring/decimal"
)

// Tier is the named luck category assigned to a mined block.
type Tier string

const (
	Speedrun      Tier = "speedrun"
	DivineRainbow Tier = "divine_rainbow"
	Divine        Tier = "divine"
	Lucky         Tier = "lucky"
	Average       Tier = "average"
	Unlucky       Tier = "unlucky"
	Cursed        Tier = "cursed"
)

// Runtime and luck thresholds, luck expressed in percent.
const (
	SpeedrunRuntime     = 90
	RainbowRuntime      = 300
	divinePercentFloor  = 700
	luckyPercentFloor   = 120
	averagePercentFloor = 80
	unluckyPercentFloor = 40
)

var (
	hundred    = decimal.NewFromInt(100)
	divinePct  = decimal.NewFromInt(divinePercentFloor)
	luckyPct   = decimal.NewFromInt(luckyPercentFloor)
	averagePct = decimal.NewFromInt(averagePercentFloor)
	unluckyPct = decimal.NewFromInt(unluckyPercentFloor)
)

type display struct {
	label  string
	icon   string
	header string
}

var displays = map[Tier]display{
	Speedrun:      {label: "Speedrun", icon: "⚡", header: "SPEEDRUN BLOCK"},
	DivineRainbow: {label: "Divine rainbow", icon: "🌈🥇", header: "DIVINE RAINBOW BLOCK"},
	Divine:        {label: "Divine", icon: "🌈", header: "DIVINE BLOCK"},
	Lucky:         {label: "Lucky", icon: "🟢", header: "Lucky Block"},
	Average:       {label: "Average", icon: "🟡", header: "Standard Block"},
	Unlucky:       {label: "Unlucky", icon: "🔴", header: "Unlucky Block"},
	Cursed:        {label: "Cursed", icon: "💀", header: "Cursed Block"},
}

// All lists every tier in priority order.
func All() []Tier {
	return []Tier{Speedrun, DivineRainbow, Divine, Lucky, Average, Unlucky, Cursed}
}

// Classify assigns a tier from the block's luck ratio and runtime in seconds.
// Rules are checked in order and the first match wins; an invalid luck value is
// the pool's speedrun signal.
func Classify(luck decimal.NullDecimal, runtimeSeconds int64) Tier {
	if !luck.Valid {
		return Speedrun
	}
	if runtimeSeconds < SpeedrunRuntime {
		return Speedrun
	}

	pct := luck.Decimal.Mul(hundred)
	switch {
	case pct.GreaterThan(divinePct) && runtimeSeconds < RainbowRuntime:
		return DivineRainbow
	case pct.GreaterThan(divinePct):
		return Divine
	case pct.GreaterThan(luckyPct):
		return Lucky
	case pct.GreaterThanOrEqual(averagePct) && pct.LessThanOrEqual(luckyPct):
		return Average
	case pct.LessThan(unluckyPct):
		return Cursed
	case pct.GreaterThanOrEqual(unluckyPct) && pct.LessThan(averagePct):
		return Unlucky
	default:
		// decimals are totally ordered so the cases above cover every value.
		return Cursed
	}
}

// LuckPercent renders the luck ratio as a percentage with two decimals.
func LuckPercent(luck decimal.NullDecimal) string {
	if !luck.Valid {
		return "n/a"
	}
	return luck.Decimal.Mul(hundred).StringFixed(2)
}

// Label is the human readable tier name.
func (t Tier) Label() string {
	if d, ok := displays[t]; ok {
		return d.label
	}
	return string(t)
}

// Icon is the emoji used in captions.
func (t Tier) Icon() string {
	return displays[t].icon
}

// Header is the card title without the icon.
func (t Tier) Header() string {
	if d, ok := displays[t]; ok {
		return d.header
	}
	return string(t)
}

// Caption is the header prefixed with the tier icon.
func (t Tier) Caption() string {
	if icon := t.Icon(); icon != "" {
		return icon + " " + t.Header()
	}
	return t.Header()
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := displays[t]
	return ok
}
