package domain

import (
	"strings"
	"testing"
)

func FuzzParseIDs(f *testing.F) {
	for _, seed := range []string{
		"",
		"6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"00000000-0000-0000-0000-000000000000",
		"{6ba7b810-9dad-11d1-80b4-00c04fd430c8}",
		"urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"\xff\xfe",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, input string) {
		var canonical string
		for kind, parse := range parsers {
			got, err := parse(input)
			if err != nil {
				if canonical != "" {
					t.Fatalf("%s rejected input accepted by another parser: %q", kind, input)
				}
				continue
			}
			if got == "00000000-0000-0000-0000-000000000000" {
				t.Fatalf("%s accepted the nil uuid", kind)
			}
			if canonical != "" && got != canonical {
				t.Fatalf("%s parsed %q to %s, want %s", kind, input, got, canonical)
			}
			canonical = got
			again, err := parse(got)
			if err != nil || again != got {
				t.Fatalf("%s round trip of %s failed", kind, got)
			}
			if strings.ToLower(got) != got {
				t.Fatalf("%s produced non-canonical form %s", kind, got)
			}
		}
	})
}
