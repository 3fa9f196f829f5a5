// Package respparse extracts single values out of S3 REST responses
// without pulling in a full XML parser: XMLTag pulls the first match of a
// tag out of an XML body, HTTPHeader pulls a header value out of a raw
// header block. Both are anchored, case-insensitive regex lookups — the
// deliberate design choice spec.md §4.7/§9 calls out, since every value
// this package is ever asked for (ETag, UploadId, Location) is a single
// leaf scalar and a real XML parser would be solving a problem this
// client doesn't have.
package respparse

import (
	"regexp"

	"github.com/FairForge/s3rest/internal/s3err"
)

// XMLTag returns the text content of the first element named tag in body,
// e.g. XMLTag(body, "ETag") against "<CompleteMultipartUploadResult>...
// <ETag>"abc"</ETag>...</...>" returns `"abc"` (quotes included, exactly as
// they appear in the body; XML entities such as &quot; are not decoded).
func XMLTag(body []byte, tag string) (string, error) {
	pattern := `(?is)<` + regexp.QuoteMeta(tag) + `[^>]*>(.*?)</` + regexp.QuoteMeta(tag) + `>`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", s3err.New(s3err.InvalidArgument, "respparse.XMLTag", err)
	}
	m := re.FindSubmatch(body)
	if m == nil {
		return "", s3err.Newf(s3err.Protocol, "respparse.XMLTag", "tag %q not found in response body", tag)
	}
	return string(m[1]), nil
}

// HTTPHeader returns the value of the first header named name in a raw
// "Name: Value\r\n"-delimited header block, e.g. HTTPHeader(headers,
// "ETag") against "ETag: \"abc\"\r\n" returns `"abc"`.
func HTTPHeader(headers []byte, name string) (string, error) {
	pattern := `(?im)^` + regexp.QuoteMeta(name) + `:\s*(.*?)\s*$`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", s3err.New(s3err.InvalidArgument, "respparse.HTTPHeader", err)
	}
	m := re.FindSubmatch(headers)
	if m == nil {
		return "", s3err.Newf(s3err.Protocol, "respparse.HTTPHeader", "header %q not found", name)
	}
	return string(m[1]), nil
}

// AllXMLTags returns the text content of every match of tag in body, in
// document order, e.g. every <Part><ETag> of a ListParts-shaped response.
// Nothing else in this repository calls it.
func AllXMLTags(body []byte, tag string) ([]string, error) {
	pattern := `(?is)<` + regexp.QuoteMeta(tag) + `[^>]*>(.*?)</` + regexp.QuoteMeta(tag) + `>`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, s3err.New(s3err.InvalidArgument, "respparse.AllXMLTags", err)
	}
	matches := re.FindAllSubmatch(body, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, string(m[1]))
	}
	return out, nil
}
