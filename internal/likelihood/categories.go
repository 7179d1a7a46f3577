package likelihood

import (
	"fmt"
	"strconv"
)

// categoryNames fixes the labels of a category dimension such as rate bins
// or loci. Explicit names win over the count; otherwise prefix0..prefixN-1
// are generated.
func categoryNames(prefix string, count int, given []string) ([]string, error) {
	if given != nil && len(given) == 0 {
		return nil, fmt.Errorf("%w: empty %s name list", ErrConfiguration, prefix)
	}
	if len(given) > 0 {
		if count > 0 && count != len(given) {
			return nil, fmt.Errorf("%w: %d %s names given for a count of %d", ErrConfiguration, len(given), prefix, count)
		}
		seen := make(map[string]bool, len(given))
		for _, name := range given {
			if name == "" {
				return nil, fmt.Errorf("%w: empty %s name", ErrConfiguration, prefix)
			}
			if seen[name] {
				return nil, fmt.Errorf("%w: duplicate %s name %q", ErrConfiguration, prefix, name)
			}
			seen[name] = true
		}
		return append([]string(nil), given...), nil
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: %s count must not be negative", ErrConfiguration, prefix)
	}
	if count == 0 {
		count = 1
	}
	names := make([]string, count)
	for i := range names {
		names[i] = prefix + strconv.Itoa(i)
	}
	return names, nil
}
