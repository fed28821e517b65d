package export

import "strings"

// SanitizeFilename replaces every character that is invalid in a
// filename on any supported OS with an underscore. It is idempotent:
// sanitizing an already-sanitized name returns it unchanged.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
}
