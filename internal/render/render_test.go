package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pool-block-alerts/internal/classify"
	"pool-block-alerts/internal/fetcher"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func sampleBlock() fetcher.BlockEvent {
	return fetcher.BlockEvent{
		Height:    880002,
		Luck:      decimal.NewNullDecimal(decimal.RequireFromString("1.2345")),
		Reward:    decimal.RequireFromString("3.17"),
		Runtime:   3725,
		Timestamp: 1792022400,
	}
}

func TestBlockCard(t *testing.T) {
	bg := filepath.Join(t.TempDir(), "bg.png")
	writePNG(t, bg, 120, 80)

	r := New(Options{Coin: "BTC"}, StaticPicker(bg), zerolog.Nop())
	data, err := r.BlockCard(sampleBlock(), classify.Lucky)
	if err != nil {
		t.Fatalf("BlockCard: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("输出应为 PNG: %v", err)
	}
	if img.Bounds().Dx() != BlockWidth || img.Bounds().Dy() != BlockHeight {
		t.Fatalf("卡片尺寸应为 600x300, 实际 %v", img.Bounds())
	}

	// the corner sits outside the overlay box and keeps the scaled background
	r0, _, _, _ := img.At(2, 2).RGBA()
	r1, _, _, _ := img.At(300, 260).RGBA()
	if r1 >= r0 {
		t.Fatalf("遮罩区域应更暗: corner=%d overlay=%d", r0, r1)
	}
}

func TestBlockCardMissingBackground(t *testing.T) {
	r := New(Options{}, NewDirPicker(t.TempDir()), zerolog.Nop())
	if _, err := r.BlockCard(sampleBlock(), classify.Divine); !errors.Is(err, ErrNoBackground) {
		t.Fatalf("缺少背景应返回 ErrNoBackground, 实际 %v", err)
	}

	r = New(Options{}, nil, zerolog.Nop())
	if _, err := r.BlockCard(sampleBlock(), classify.Divine); !errors.Is(err, ErrNoBackground) {
		t.Fatalf("未配置 picker 应返回 ErrNoBackground, 实际 %v", err)
	}
}

func TestPayoutCard(t *testing.T) {
	bg := filepath.Join(t.TempDir(), "earnings_bg.png")
	writePNG(t, bg, 400, 200)

	r := New(Options{Coin: "BTC", PayoutBackground: bg}, nil, zerolog.Nop())
	data, err := r.PayoutCard(fetcher.PayoutEvent{Height: 1, Profit: decimal.RequireFromString("0.0001"), Date: "2026-10-14"})
	if err != nil {
		t.Fatalf("PayoutCard: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("输出应为 PNG: %v", err)
	}
	if cfg.Width != 400 || cfg.Height != 200 {
		t.Fatalf("收益卡片应保持背景尺寸, 实际 %dx%d", cfg.Width, cfg.Height)
	}

	r = New(Options{PayoutBackground: filepath.Join(t.TempDir(), "missing.png")}, nil, zerolog.Nop())
	if _, err := r.PayoutCard(fetcher.PayoutEvent{}); !errors.Is(err, ErrNoBackground) {
		t.Fatalf("背景不存在应返回 ErrNoBackground, 实际 %v", err)
	}
}

func TestDirPicker(t *testing.T) {
	dir := t.TempDir()
	folder := filepath.Join(dir, string(classify.Average))
	writePNG(t, filepath.Join(folder, "a.png"), 4, 4)
	writePNG(t, filepath.Join(folder, "b.JPG"), 4, 4)
	if err := os.WriteFile(filepath.Join(folder, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewDirPicker(dir)
	p.intn = func(n int) int {
		if n != 2 {
			t.Fatalf("只应统计 png/jpg 文件, 实际 %d", n)
		}
		return 1
	}
	got, err := p.Pick(classify.Average)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if filepath.Base(got) != "b.JPG" {
		t.Fatalf("应按排序后的下标选择, 实际 %s", got)
	}

	empty := filepath.Join(dir, string(classify.Cursed))
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Pick(classify.Cursed); !errors.Is(err, ErrNoBackground) {
		t.Fatalf("空目录应返回 ErrNoBackground, 实际 %v", err)
	}
}

func TestTextHelpers(t *testing.T) {
	if got := FormatRuntime(3725); got != "1h 2m 5s" {
		t.Fatalf("FormatRuntime(3725) = %q", got)
	}
	lines := BlockLines(sampleBlock(), classify.Lucky, "BTC")
	want := []string{
		"Height: 880002",
		"Time: 2026-10-15 00:00:00",
		"Luck: 123.45% (Lucky)",
		"Reward: 3.17000000 BTC",
		"Runtime: 1h 2m 5s",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("第 %d 行应为 %q, 实际 %q", i, want[i], lines[i])
		}
	}

	caption := PayoutCaption(fetcher.PayoutEvent{Height: 9, Profit: decimal.RequireFromString("0.5")}, "ViaBTC", "BTC")
	if !strings.Contains(caption, "`9`") || !strings.Contains(caption, "0.50000000 BTC") {
		t.Fatalf("收益说明不正确: %q", caption)
	}
}
