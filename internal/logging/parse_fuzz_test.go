package logging

import "testing"

func FuzzParseLevel(f *testing.F) {
	seeds := []string{"info", "warn", "warning", "error", "debug", "", "???", "ERROR"}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		level, ok := ParseLevel(raw)
		if ok && levelRank(level) < 0 {
			t.Fatalf("parsed level %q has no rank", level)
		}
	})
}
