package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	file, err := NewFile(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	lite, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { lite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": lite,
	}
}

func TestStoreDefaultsAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			h, err := store.GetInt(ctx, KeyLastBlockHeight, 7)
			if err != nil || h != 7 {
				t.Fatalf("缺省值应为 7, 实际 %d (%v)", h, err)
			}
			if err := store.PutInt(ctx, KeyLastBlockHeight, 880123); err != nil {
				t.Fatalf("PutInt: %v", err)
			}
			if h, _ := store.GetInt(ctx, KeyLastBlockHeight, 0); h != 880123 {
				t.Fatalf("期望 880123, 实际 %d", h)
			}

			d, err := store.GetString(ctx, KeyLastRecommendationDate, "")
			if err != nil || d != "" {
				t.Fatalf("日期缺省应为空, 实际 %q (%v)", d, err)
			}
			if err := store.PutString(ctx, KeyLastRecommendationDate, "2026-10-15"); err != nil {
				t.Fatalf("PutString: %v", err)
			}
			if err := store.PutString(ctx, KeyLastRecommendationDate, "2026-10-16"); err != nil {
				t.Fatalf("PutString: %v", err)
			}
			if d, _ := store.GetString(ctx, KeyLastRecommendationDate, ""); d != "2026-10-16" {
				t.Fatalf("应以最后一次写入为准, 实际 %q", d)
			}
		})
	}
}

func TestStoreCorruptInt(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	_ = store.PutString(ctx, KeyLastPayoutHeight, "not-a-number")
	if _, err := store.GetInt(ctx, KeyLastPayoutHeight, 0); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("损坏的值应返回 ErrCorrupt, 实际 %v", err)
	}
}

func TestFileStoreLayout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := store.PutInt(context.Background(), KeyLastBlockHeight, 42); err != nil {
		t.Fatalf("PutInt: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, KeyLastBlockHeight+".txt"))
	if err != nil {
		t.Fatalf("读取状态文件失败: %v", err)
	}
	if string(data) != "42" {
		t.Fatalf("文件内容应为纯数字, 实际 %q", data)
	}

	// hand-edited files with trailing newlines still parse
	if err := os.WriteFile(filepath.Join(dir, KeyLastPayoutHeight+".txt"), []byte("99\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if h, err := store.GetInt(context.Background(), KeyLastPayoutHeight, 0); err != nil || h != 99 {
		t.Fatalf("期望 99, 实际 %d (%v)", h, err)
	}
}

func TestWatermarkNeverDecreases(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	wm := NewWatermark(store, KeyLastBlockHeight)

	if changed, err := wm.Advance(ctx, 100); err != nil || !changed {
		t.Fatalf("首次推进应成功: %v %v", changed, err)
	}
	if changed, _ := wm.Advance(ctx, 90); changed {
		t.Fatal("更低的高度不应生效")
	}
	if changed, _ := wm.Advance(ctx, 100); changed {
		t.Fatal("相同高度不应重复写入")
	}
	if h, _ := wm.Load(ctx); h != 100 {
		t.Fatalf("水位应保持 100, 实际 %d", h)
	}
	if store.Writes() != 1 {
		t.Fatalf("只应写入一次, 实际 %d", store.Writes())
	}

	if err := wm.Set(ctx, -1); err == nil {
		t.Fatal("负数水位应报错")
	}
	if err := wm.Set(ctx, 10); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if h, _ := wm.Load(ctx); h != 10 {
		t.Fatalf("Set 应直接覆盖, 实际 %d", h)
	}
}
