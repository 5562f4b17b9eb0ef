package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = old })

	if !strings.HasPrefix(String(), "poolwatch 1.2.3\n") {
		t.Fatalf("版本信息不正确: %q", String())
	}
	if UserAgent() != "poolwatch/1.2.3" {
		t.Fatalf("UserAgent 不正确: %q", UserAgent())
	}
}
