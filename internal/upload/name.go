package upload

import (
	"path"
	"strings"

	"github.com/maruel/ksid"

	"github.com/keithlinneman/linnemanlabs-cms/internal/pathutil"
)

const (
	maxBaseLen  = 100
	defaultBase = "upload"
)

// NewName returns "<id>_<base>" where id is a time-sortable unique id and
// base is the client file name reduced to its last element and to the
// characters [A-Za-z0-9._-].
func NewName(original string) string {
	return ksid.NewID().String() + "_" + SanitizeBase(original)
}

// SanitizeBase strips directories and unsafe characters from a client
// supplied file name.
func SanitizeBase(original string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	out := b.String()
	if len(out) > maxBaseLen {
		out = out[len(out)-maxBaseLen:]
	}
	out = strings.TrimLeft(out, ".")
	if out == "" {
		return defaultBase
	}
	return out
}

// ValidName reports whether name is a single safe path element.
func ValidName(name string) bool {
	return pathutil.SafeElement(name) && !pathutil.HasDotSegments(name)
}
