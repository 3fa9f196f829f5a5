package signer

import (
	"sort"
	"strings"
)

// uriEncode percent-encodes every byte except the RFC-3986 unreserved set
// (A-Z a-z 0-9 - _ . ~), using uppercase hex digits, matching the table in
// blue-context-warp/provider/bedrock/signer.go's uriEncode and AWS's own
// spec. encodeSlash controls whether '/' is preserved verbatim, which the
// canonical URI needs but ordinary query keys/values do not.
func uriEncode(s string, encodeSlash bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex(c >> 4))
			b.WriteByte(upperHex(c & 0xf))
		}
	}
	return b.String()
}

func upperHex(nibble byte) byte {
	if nibble < 10 {
		return '0' + nibble
	}
	return 'A' + (nibble - 10)
}

// canonicalURI percent-encodes a request path, preserving '/', and maps the
// empty path to "/" per spec.
func canonicalURI(path string) string {
	if path == "" {
		return "/"
	}
	return uriEncode(path, true)
}

// canonicalQuery sorts query parameters by their percent-encoded key and
// joins them as "k=v", so the canonical form is independent of the caller's
// insertion order — a signing invariant tested in signer_test.go.
func canonicalQuery(query map[string]string) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	encoded := make(map[string]string, len(keys))
	for _, k := range keys {
		encoded[k] = uriEncode(k, false)
	}
	sort.Slice(keys, func(i, j int) bool { return encoded[keys[i]] < encoded[keys[j]] })

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, encoded[k]+"="+uriEncode(query[k], false))
	}
	return strings.Join(parts, "&")
}
