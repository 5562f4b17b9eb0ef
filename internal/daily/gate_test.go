package daily

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pool-block-alerts/internal/state"
)

var window = Window{Hour: 20, Span: 5 * time.Minute}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, 0, 0, time.UTC)
}

func TestWindowContains(t *testing.T) {
	cases := []struct {
		now  time.Time
		want bool
	}{
		{at(15, 20, 0), true},
		{at(15, 20, 4), true},
		{at(15, 20, 5), false},
		{at(15, 19, 59), false},
		{at(15, 8, 2), false},
	}
	for _, tc := range cases {
		if got := window.Contains(tc.now); got != tc.want {
			t.Fatalf("Contains(%s) = %v, want %v", tc.now.Format(time.Kitchen), got, tc.want)
		}
	}
}

func TestShouldSend(t *testing.T) {
	ok, marker := ShouldSend(at(15, 20, 1), window, "2026-10-14")
	if !ok || marker != "2026-10-15" {
		t.Fatalf("窗口内且未发送应触发: %v %q", ok, marker)
	}
	if ok, _ := ShouldSend(at(15, 20, 2), window, "2026-10-15"); ok {
		t.Fatal("同一天不应重复触发")
	}
	if ok, _ := ShouldSend(at(15, 21, 0), window, ""); ok {
		t.Fatal("窗口外不应触发")
	}
}

func TestGateFiresOncePerDay(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemory()
	gate := NewGate(store, window, time.UTC, zerolog.Nop())

	sent := 0
	send := func(context.Context) error { sent++; return nil }

	fired, err := gate.Fire(ctx, at(15, 20, 0), send)
	if err != nil || !fired {
		t.Fatalf("第一次应触发: %v %v", fired, err)
	}
	fired, err = gate.Fire(ctx, at(15, 20, 3), send)
	if err != nil || fired {
		t.Fatalf("同一窗口第二次不应触发: %v %v", fired, err)
	}
	if due, _ := gate.Due(ctx, at(15, 20, 4)); due {
		t.Fatal("Due 应为 false")
	}

	fired, err = gate.Fire(ctx, at(16, 20, 1), send)
	if err != nil || !fired {
		t.Fatalf("次日应重新触发: %v %v", fired, err)
	}
	if sent != 2 {
		t.Fatalf("应发送 2 次, 实际 %d", sent)
	}
}

func TestGateNoCatchUp(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(state.NewMemory(), window, time.UTC, zerolog.Nop())
	called := false
	send := func(context.Context) error { called = true; return nil }

	if fired, _ := gate.Fire(ctx, at(15, 23, 0), send); fired || called {
		t.Fatal("错过窗口后不应补发")
	}
}

func TestGateSendFailureKeepsMarker(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemory()
	gate := NewGate(store, window, time.UTC, zerolog.Nop())

	_, err := gate.Fire(ctx, at(15, 20, 0), func(context.Context) error { return errors.New("boom") })
	if err == nil {
		t.Fatal("发送失败应返回错误")
	}
	if d, _ := store.GetString(ctx, state.KeyLastRecommendationDate, ""); d != "" {
		t.Fatalf("发送失败不应写入日期, 实际 %q", d)
	}
	if fired, err := gate.Fire(ctx, at(15, 20, 1), func(context.Context) error { return nil }); err != nil || !fired {
		t.Fatalf("失败后同一窗口内应可重试: %v %v", fired, err)
	}
}

func TestGateUsesLocation(t *testing.T) {
	ctx := context.Background()
	loc := time.FixedZone("UTC+8", 8*3600)
	gate := NewGate(state.NewMemory(), window, loc, zerolog.Nop())

	// 12:01 UTC is 20:01 in UTC+8
	now := time.Date(2026, time.October, 15, 12, 1, 0, 0, time.UTC)
	if due, err := gate.Due(ctx, now); err != nil || !due {
		t.Fatalf("应按配置时区判断窗口: %v %v", due, err)
	}
}

func TestRecommend(t *testing.T) {
	policy := Policy{
		PerBlock:     decimal.RequireFromString("0.0001"),
		Baseline:     decimal.RequireFromString("0.0003"),
		PPLNSVerdict: "Stay on PPLNS",
		PPSVerdict:   "Switch to PPS",
	}
	now := at(15, 20, 0)
	ts := []int64{
		now.Add(-1 * time.Hour).Unix(),
		now.Add(-23 * time.Hour).Unix(),
		now.Add(-24 * time.Hour).Unix(), // boundary excluded
		now.Add(-30 * time.Hour).Unix(),
		now.Add(time.Minute).Unix(), // future excluded
	}

	rec := Recommend(ts, now, policy)
	if rec.Blocks != 2 {
		t.Fatalf("24h 内应有 2 个块, 实际 %d", rec.Blocks)
	}
	if rec.Scheme != PPS || rec.Verdict != "Switch to PPS" {
		t.Fatalf("0.0002 < 0.0003 应推荐 PPS: %+v", rec)
	}

	ts = append(ts, now.Add(-2*time.Hour).Unix())
	rec = Recommend(ts, now, policy)
	if rec.Scheme != PPLNS || !rec.Value.Equal(decimal.RequireFromString("0.0003")) {
		t.Fatalf("持平时应推荐 PPLNS: %+v", rec)
	}
	if !strings.Contains(rec.Message(), "Stay on PPLNS") || !strings.Contains(rec.Message(), "Blocks (24h): 3") {
		t.Fatalf("消息内容不正确: %q", rec.Message())
	}
}
