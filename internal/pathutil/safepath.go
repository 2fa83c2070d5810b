// Package pathutil checks client supplied names before they reach a
// filesystem or an object key.
package pathutil

import "strings"

// MaxElementLen is the longest name SafeElement accepts.
const MaxElementLen = 255

func isSep(r rune) bool { return r == '/' || r == '\\' }

// HasDotSegments reports whether any element of p is "." or "..". Both
// slash kinds separate elements.
func HasDotSegments(p string) bool {
	if p == "." || p == ".." {
		return true
	}
	for _, seg := range strings.FieldsFunc(p, isSep) {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// SafeElement reports whether name can be used as a single file name inside
// a directory or under a key prefix: no separators, no leading dot, no
// control characters and at most MaxElementLen bytes.
func SafeElement(name string) bool {
	if name == "" || len(name) > MaxElementLen || strings.HasPrefix(name, ".") {
		return false
	}
	for _, r := range name {
		if isSep(r) || r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
