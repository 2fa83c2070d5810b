package cryptoutil

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Digest is a SHA-256 sum in the two encodings callers need: hex for logs
// and metadata, base64 for the S3 checksum header.
type Digest struct {
	Hex    string
	Base64 string
}

// SHA256 digests data.
func SHA256(data []byte) Digest {
	h := sha256.Sum256(data)
	return Digest{
		Hex:    hex.EncodeToString(h[:]),
		Base64: base64.StdEncoding.EncodeToString(h[:]),
	}
}

// SHA256Hex computes the SHA-256 hash of data as lowercase hex.
func SHA256Hex(data []byte) string {
	return SHA256(data).Hex
}

