package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutDateLayout formats payout dates derived from a unix timestamp.
const PayoutDateLayout = "2006-01-02 15:04"

var errMissing = errors.New("missing value")

// numeric holds a scalar field that the pool sends either as a number or as a
// string. Null and missing both decode to "".
type numeric string

func (n *numeric) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*n = numeric(strings.TrimSpace(str))
		return nil
	}
	*n = numeric(s)
	return nil
}

func (n numeric) int64() (int64, error) {
	if n == "" {
		return 0, errMissing
	}
	return strconv.ParseInt(string(n), 10, 64)
}

func (n numeric) decimal() (decimal.Decimal, error) {
	if n == "" {
		return decimal.Decimal{}, errMissing
	}
	return decimal.NewFromString(string(n))
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Data json.RawMessage `json:"data"`
	} `json:"data"`
}

type blockRecord struct {
	Height      numeric `json:"height"`
	Luck        numeric `json:"luck"`
	Reward      numeric `json:"reward"`
	RunningTime numeric `json:"running_time"`
	Time        numeric `json:"time"`
}

func (r blockRecord) event() (BlockEvent, error) {
	height, err := r.Height.int64()
	if err != nil {
		return BlockEvent{}, fmt.Errorf("height %q: %w", r.Height, err)
	}
	ev := BlockEvent{Height: height}

	if r.Luck != "" {
		luck, err := r.Luck.decimal()
		if err != nil {
			return ev, fmt.Errorf("luck %q: %w", r.Luck, err)
		}
		ev.Luck = decimal.NewNullDecimal(luck)
	}
	if ev.Reward, err = r.Reward.decimal(); err != nil {
		return ev, fmt.Errorf("reward %q: %w", r.Reward, err)
	}
	if ev.Runtime, err = r.RunningTime.int64(); err != nil {
		return ev, fmt.Errorf("running_time %q: %w", r.RunningTime, err)
	}
	if ev.Runtime < 0 {
		return ev, fmt.Errorf("running_time %d is negative", ev.Runtime)
	}
	if ev.Timestamp, err = r.Time.int64(); err != nil {
		return ev, fmt.Errorf("time %q: %w", r.Time, err)
	}
	return ev, nil
}

type payoutRecord struct {
	Height numeric `json:"height"`
	Profit numeric `json:"profit"`
	Date   numeric `json:"date"`
	Time   numeric `json:"time"`
}

func (r payoutRecord) event(loc *time.Location) (PayoutEvent, error) {
	height, err := r.Height.int64()
	if err != nil {
		return PayoutEvent{}, fmt.Errorf("height %q: %w", r.Height, err)
	}
	ev := PayoutEvent{Height: height, Profit: decimal.Zero}

	if r.Profit != "" {
		if ev.Profit, err = r.Profit.decimal(); err != nil {
			return ev, fmt.Errorf("profit %q: %w", r.Profit, err)
		}
	}

	switch {
	case r.Date != "":
		ev.Date = string(r.Date)
	case r.Time != "":
		ts, err := r.Time.int64()
		if err != nil {
			return ev, fmt.Errorf("time %q: %w", r.Time, err)
		}
		ev.Date = time.Unix(ts, 0).In(loc).Format(PayoutDateLayout)
	default:
		ev.Date = "Unknown Date"
	}
	return ev, nil
}
