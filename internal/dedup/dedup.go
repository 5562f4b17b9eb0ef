// Package dedup filters fetched events against a persisted watermark.
package dedup

import "sort"

// Heighted is any event addressed by a monotonically increasing height.
type Heighted interface {
	EventHeight() int64
}

// NewerThan returns the events with a height strictly above watermark, sorted
// ascending by height. The input slice is not modified and is never assumed to
// be the complete history.
func NewerThan[E Heighted](events []E, watermark int64) []E {
	out := make([]E, 0, len(events))
	for _, ev := range events {
		if ev.EventHeight() > watermark {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventHeight() < out[j].EventHeight()
	})
	return out
}

// Limit keeps at most n leading records of a page. n <= 0 keeps everything.
func Limit[E any](events []E, n int) []E {
	if n <= 0 || len(events) <= n {
		return events
	}
	return events[:n]
}

// Heights extracts the heights of events in order.
func Heights[E Heighted](events []E) []int64 {
	heights := make([]int64, len(events))
	for i, ev := range events {
		heights[i] = ev.EventHeight()
	}
	return heights
}
