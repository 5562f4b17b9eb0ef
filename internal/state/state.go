// Package state persists the small scalar values a run needs to resume:
// stream watermarks and the last recommendation date.
package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Keys used by the monitor. One logical value per key.
const (
	KeyLastBlockHeight        = "last_block_height"
	KeyLastPayoutHeight       = "last_payout_height"
	KeyLastRecommendationDate = "last_recommendation_date"
)

// ErrCorrupt indicates a stored value that cannot be decoded.
var ErrCorrupt = errors.New("state: corrupt value")

// Store is a last-write-wins key/value store of small text values.
type Store interface {
	GetString(ctx context.Context, key, def string) (string, error)
	PutString(ctx context.Context, key, value string) error
	GetInt(ctx context.Context, key string, def int64) (int64, error)
	PutInt(ctx context.Context, key string, value int64) error
}

// raw is what each backend provides; ints layers the typed accessors on it.
type raw interface {
	get(ctx context.Context, key string) (string, bool, error)
	put(ctx context.Context, key, value string) error
}

// ints implements Store over a raw backend.
type ints struct {
	backend raw
}

func (s ints) GetString(ctx context.Context, key, def string) (string, error) {
	v, ok, err := s.backend.get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

func (s ints) PutString(ctx context.Context, key, value string) error {
	return s.backend.put(ctx, key, value)
}

func (s ints) GetInt(ctx context.Context, key string, def int64) (int64, error) {
	v, ok, err := s.backend.get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: key %s: %q", ErrCorrupt, key, v)
	}
	return n, nil
}

func (s ints) PutInt(ctx context.Context, key string, value int64) error {
	return s.backend.put(ctx, key, strconv.FormatInt(value, 10))
}

// Watermark guards a single monotonically increasing height.
type Watermark struct {
	store Store
	key   string
}

// NewWatermark binds a watermark to a store key.
func NewWatermark(store Store, key string) *Watermark {
	return &Watermark{store: store, key: key}
}

// Key returns the storage key.
func (w *Watermark) Key() string { return w.key }

// Load returns the persisted height, zero when nothing has been stored yet.
func (w *Watermark) Load(ctx context.Context) (int64, error) {
	h, err := w.store.GetInt(ctx, w.key, 0)
	if err != nil {
		return 0, fmt.Errorf("load watermark %s: %w", w.key, err)
	}
	return h, nil
}

// Advance stores height when it is above the current value. It reports
// whether the stored value changed; lower heights are ignored.
func (w *Watermark) Advance(ctx context.Context, height int64) (bool, error) {
	current, err := w.Load(ctx)
	if err != nil {
		return false, err
	}
	if height <= current {
		return false, nil
	}
	if err := w.store.PutInt(ctx, w.key, height); err != nil {
		return false, fmt.Errorf("advance watermark %s: %w", w.key, err)
	}
	return true, nil
}

// Set overwrites the watermark unconditionally. Used by the state command.
func (w *Watermark) Set(ctx context.Context, height int64) error {
	if height < 0 {
		return fmt.Errorf("watermark %s cannot be negative", w.key)
	}
	return w.store.PutInt(ctx, w.key, height)
}
