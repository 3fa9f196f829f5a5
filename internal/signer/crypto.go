package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// sha256Sum returns the SHA-256 digest of data.
func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// hmacSHA256 returns HMAC-SHA256(key, data).
func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// hexEncode lowercases to match SigV4's required hex alphabet; the stdlib
// encoder already emits lowercase, so this is a thin, self-documenting
// wrapper rather than a no-op left implicit at call sites.
func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// hashHex is sha256Sum followed by hexEncode, the shape every canonical
// request and string-to-sign step needs.
func hashHex(data []byte) string {
	return hexEncode(sha256Sum(data))
}
