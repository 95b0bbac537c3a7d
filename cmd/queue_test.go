package cmd

import (
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/warpq/pkg/wishlib"
)

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{72 * time.Hour, "3d ago"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.d); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRenderWishes(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("x", 80)
	wishes := []wishlib.Wish{
		{URI: long, Title: "first", Timestamp: time.Now()},
		{URI: "https://example.com/b", Held: true, FileName: "b.bin",
			Handler: wishlib.Handler{Kind: wishlib.HandlerStream}, Timestamp: time.Now()},
	}

	out := renderWishes(wishes, false)
	assertNotContains(t, out, long)
	assertContains(t, out, "...")
	assertContains(t, out, "auto")
	assertContains(t, out, "stream")
	assertContains(t, out, "held")
	assertContains(t, out, "b.bin")

	wide := renderWishes(wishes, true)
	assertContains(t, wide, long)
}

func TestParsePosition(t *testing.T) {
	parse := func(args ...string) (int, error) {
		set := flag.NewFlagSet("up", flag.ContinueOnError)
		_ = set.Parse(args)
		return parsePosition(cli.NewContext(cli.NewApp(), set, nil))
	}
	if pos, err := parse("3"); err != nil || pos != 3 {
		t.Fatalf("parse(3) = %d, %v", pos, err)
	}
	if _, err := parse(); err != errNoPosition {
		t.Fatalf("parse() = %v, want errNoPosition", err)
	}
	for _, bad := range []string{"-1", "two"} {
		if _, err := parse(bad); err == nil {
			t.Errorf("parse(%q) succeeded", bad)
		}
	}
}
