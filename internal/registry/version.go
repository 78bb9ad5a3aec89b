package registry

import (
	"strconv"
	"strings"
)

// versionAtLeast reports whether have >= want, comparing dotted numeric
// version strings component by component (e.g. "1.10.0" >= "1.9.0").
// A non-numeric component compares lexicographically as a fallback, so a
// malformed version never panics.
func versionAtLeast(have, want string) bool {
	haveParts := strings.Split(have, ".")
	wantParts := strings.Split(want, ".")
	for i := 0; i < len(wantParts); i++ {
		var h string
		if i < len(haveParts) {
			h = haveParts[i]
		}
		w := wantParts[i]
		hn, hErr := strconv.Atoi(h)
		wn, wErr := strconv.Atoi(w)
		if hErr == nil && wErr == nil {
			if hn != wn {
				return hn > wn
			}
			continue
		}
		if h != w {
			return h > w
		}
	}
	return true
}
