package content

import (
	"fmt"
	"strings"
)

const keySeparator = "."

// ParseKey splits a qualified key on its first separator. The field part is
// not split further. Keys without a separator, or with an empty page or
// field, fail with ErrSkippedKey.
func ParseKey(raw string) (page, field string, err error) {
	page, field, found := strings.Cut(raw, keySeparator)
	if !found || page == "" || field == "" {
		return "", "", fmt.Errorf("%w: %q", ErrSkippedKey, raw)
	}
	return page, field, nil
}
