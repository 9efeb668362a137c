package logging

import "testing"

func TestNewLevels(t *testing.T) {
	cases := map[string]bool{
		"debug":  true,
		" WARN ": false,
		"bogus":  false,
		"":       false,
	}
	for level, debugEnabled := range cases {
		logger, err := New(level)
		if err != nil {
			t.Fatalf("New(%q): %v", level, err)
		}
		if got := logger.Core().Enabled(-1); got != debugEnabled {
			t.Fatalf("New(%q) debug enabled = %v, want %v", level, got, debugEnabled)
		}
		_ = logger.Sync()
	}
}
