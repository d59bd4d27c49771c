package format_test

import (
	"strings"
	"testing"

	"squadutils/internal/format"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Test", "qemu-arm64", "qemu-x86_64")
	tb.Row("abs01", "100%", "50%")
	tb.Row("fork13", "N/A", "100%")
	out := tb.String()

	for _, want := range []string{"Test", "qemu-arm64", "abs01", "50%", "N/A"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
	if strings.Contains(out, "QEMU-ARM64") || strings.Contains(out, "TEST") {
		t.Errorf("headers must keep their case:\n%s", out)
	}
}

func TestMarkdown_BasicTable(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Environment", "pass", "fail")
	tb.Row("qemu-arm64", 30, 2)
	out := tb.String()

	if !strings.Contains(out, "| Environment") {
		t.Errorf("expected markdown header with '| Environment':\n%s", out)
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected markdown separator '---':\n%s", out)
	}
}

func TestCSV_Table(t *testing.T) {
	tb := format.NewTable(format.CSV)
	tb.Title("ignored")
	tb.Header("suite", "stable")
	tb.Row("ltp-syscalls", "75%")
	out := tb.String()

	if !strings.Contains(out, "suite,stable") {
		t.Errorf("expected CSV header:\n%s", out)
	}
	if !strings.Contains(out, "ltp-syscalls,75%") {
		t.Errorf("expected CSV row:\n%s", out)
	}
	if strings.Contains(out, "ignored") {
		t.Errorf("CSV output carries a title:\n%s", out)
	}
}

func TestFooterAndColumns(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Status", "Count")
	tb.Row("pass", 12345)
	tb.Separator()
	tb.Footer("TOTAL", 12345)
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	out := tb.String()

	if !strings.Contains(out, "TOTAL") || !strings.Contains(out, "12345") {
		t.Errorf("expected footer in output:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]format.Mode{"": format.ASCII, "text": format.ASCII, "md": format.Markdown, "CSV": format.CSV}
	for in, want := range cases {
		got, err := format.ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := format.ParseMode("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{-1, "N/A"},
		{0, "0%"},
		{0.666, "67%"},
		{1, "100%"},
	}
	for _, tc := range cases {
		if got := format.Percent(tc.in); got != tc.want {
			t.Errorf("Percent(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRatioColorAndPaint(t *testing.T) {
	if format.RatioColor(1) != format.Green || format.RatioColor(0.9) != format.Yellow || format.RatioColor(0.5) != format.Red {
		t.Error("unexpected ratio colors")
	}
	if got := format.Paint("x", format.NoColor); got != "x" {
		t.Errorf("Paint(NoColor) = %q", got)
	}
	if got := format.Paint("x", format.Red); !strings.Contains(got, "x") {
		t.Errorf("Paint(Red) = %q", got)
	}
}
