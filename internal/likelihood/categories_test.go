package likelihood

import (
	"errors"
	"strconv"
	"testing"
)

func TestCategoryNamesFromCount(t *testing.T) {
	for _, count := range []int{1, 3, 6} {
		names, err := categoryNames("bin", count, nil)
		if err != nil {
			t.Fatalf("count %d: %v", count, err)
		}
		if len(names) != count {
			t.Fatalf("count %d produced %d names", count, len(names))
		}
		for i, name := range names {
			if want := "bin" + strconv.Itoa(i); name != want {
				t.Fatalf("name %d = %q, want %q", i, name, want)
			}
		}
	}
}

func TestCategoryNamesZeroCountDefaultsToOne(t *testing.T) {
	names, err := categoryNames("locus", 0, nil)
	if err != nil {
		t.Fatalf("categoryNames: %v", err)
	}
	if len(names) != 1 || names[0] != "locus0" {
		t.Fatalf("got %v, want [locus0]", names)
	}
}

func TestCategoryNamesExplicitLabels(t *testing.T) {
	names, err := categoryNames("bin", 0, []string{"fast", "slow"})
	if err != nil {
		t.Fatalf("categoryNames: %v", err)
	}
	if len(names) != 2 || names[0] != "fast" || names[1] != "slow" {
		t.Fatalf("labels not preserved: %v", names)
	}
}

func TestCategoryNamesValidation(t *testing.T) {
	cases := []struct {
		name  string
		count int
		given []string
	}{
		{"duplicate label", 0, []string{"a", "a"}},
		{"empty list", 0, []string{}},
		{"empty label", 0, []string{"a", ""}},
		{"count mismatch", 3, []string{"a", "b"}},
		{"negative count", -1, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := categoryNames("bin", tc.count, tc.given); !errors.Is(err, ErrConfiguration) {
				t.Fatalf("got %v, want a configuration error", err)
			}
		})
	}
}
