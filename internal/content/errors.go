package content

import "errors"

var (
	// ErrSkippedKey marks a key that does not parse into page and field.
	// Batches skip such entries instead of failing.
	ErrSkippedKey = errors.New("key must be page.field with both parts non-empty")

	// ErrSerialization marks a value that cannot be encoded as JSON text.
	ErrSerialization = errors.New("value is not serializable to JSON")
)
