package launch

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)\}`)

// substitute replaces ${name} in every argument. Names missing from vars are
// collected and reported together.
func substitute(args []string, vars map[string]string) ([]string, error) {
	missing := make(map[string]bool)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = placeholderRe.ReplaceAllStringFunc(arg, func(m string) string {
			name := m[2 : len(m)-1]
			v, ok := vars[name]
			if !ok {
				missing[name] = true
				return m
			}
			return v
		})
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, strings.Join(names, ", "))
	}
	return out, nil
}
