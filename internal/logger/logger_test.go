package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"  nonsense ", zerolog.InfoLevel},
	}
	for _, c := range cases {
		if got := parseLevel(c.in); got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "json", Component: "sync", Writer: &buf})

	l.Debug().Int("days", 3).Msg("aggregated")
	Named(&l, "toggl").Info().Msg("fetched")

	out := buf.String()
	for _, want := range []string{`"message":"aggregated"`, `"days":3`, `"component":"sync"`, `"module":"toggl"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestNamed_KeepsSingleComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Format: "json", Component: "sync", Writer: &buf})
	Named(&l, "history").Info().Msg("wrote")

	line := strings.TrimSpace(buf.String())
	if n := strings.Count(line, `"component"`); n != 1 {
		t.Errorf("component appears %d times: %s", n, line)
	}
	if !strings.Contains(line, `"component":"sync"`) || !strings.Contains(line, `"module":"history"`) {
		t.Errorf("line = %s", line)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Format: "console", Writer: &buf})
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered:\n%s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing:\n%s", out)
	}
}

func TestNamed_NilIsNop(t *testing.T) {
	l := Named(nil, "x")
	l.Info().Msg("nothing happens")
}
