package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionSkipsConfig(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version", "--config", "/nonexistent/poolwatch.yaml"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version 不应加载配置: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "poolwatch ") {
		t.Fatalf("版本输出不正确: %q", buf.String())
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "blocks", "payouts", "watch", "show", "export", "state", "sync", "simulate-block", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("命令 %s 未注册: %v", name, err)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := parseTimestamp("--from", "2026-10-01")
	if err != nil || ts.Format("2006-01-02T15:04") != "2026-10-01T00:00" {
		t.Fatalf("日期解析不正确: %v %v", ts, err)
	}
	if _, err := parseTimestamp("--from", "2026-10-01T08:00:00Z"); err != nil {
		t.Fatalf("RFC3339 解析失败: %v", err)
	}
	if _, err := parseTimestamp("--to", "yesterday"); err == nil {
		t.Fatal("非法时间应报错")
	}
}
