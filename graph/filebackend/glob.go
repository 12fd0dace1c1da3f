package filebackend

import "github.com/bmatcuk/doublestar/v4"

// doublestarMatch adapts doublestar's Match (which already understands
// "**") to the boolean contract the rest of this package expects; an
// invalid pattern is treated as "matches nothing" rather than propagating
// a compile error through every call site.
func doublestarMatch(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false
	}
	return ok
}
