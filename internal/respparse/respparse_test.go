package respparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completeMultipartBody = `<?xml version="1.0" encoding="UTF-8"?>
<CompleteMultipartUploadResult>
   <Location>https://examplebucket.s3.amazonaws.com/bigfile.bin</Location>
   <Bucket>examplebucket</Bucket>
   <Key>bigfile.bin</Key>
   <ETag>"4d9c5ef0ce3f9c1b8b9c3f9f9a9a9a9a-3"</ETag>
</CompleteMultipartUploadResult>`

const initiateBody = `<?xml version="1.0" encoding="UTF-8"?>
<InitiateMultipartUploadResult>
   <Bucket>examplebucket</Bucket>
   <Key>bigfile.bin</Key>
   <UploadId>VXBsb2FkIElEIGZvciBlbHZpbmcncyBtb29zZSBmaWxl</UploadId>
</InitiateMultipartUploadResult>`

func TestXMLTag_ExtractsETag(t *testing.T) {
	v, err := XMLTag([]byte(completeMultipartBody), "ETag")
	require.NoError(t, err)
	assert.Equal(t, `"4d9c5ef0ce3f9c1b8b9c3f9f9a9a9a9a-3"`, v)
}

func TestXMLTag_ExtractsUploadId(t *testing.T) {
	v, err := XMLTag([]byte(initiateBody), "UploadId")
	require.NoError(t, err)
	assert.Equal(t, "VXBsb2FkIElEIGZvciBlbHZpbmcncyBtb29zZSBmaWxl", v)
}

func TestXMLTag_NotFound(t *testing.T) {
	_, err := XMLTag([]byte(initiateBody), "ETag")
	assert.Error(t, err)
}

func TestXMLTag_CaseInsensitiveTagName(t *testing.T) {
	v, err := XMLTag([]byte(`<etag>abc</etag>`), "ETag")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestHTTPHeader_ExtractsValue(t *testing.T) {
	headers := "Content-Type: application/xml\r\nETag: \"abc\"\r\nContent-Length: 0\r\n"
	v, err := HTTPHeader([]byte(headers), "ETag")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, v)
}

func TestHTTPHeader_NotFound(t *testing.T) {
	_, err := HTTPHeader([]byte("Content-Type: application/xml\r\n"), "ETag")
	assert.Error(t, err)
}

func TestAllXMLTags_CollectsEveryMatch(t *testing.T) {
	body := `<ListPartsResult>
<Part><PartNumber>1</PartNumber><ETag>"aaa"</ETag></Part>
<Part><PartNumber>2</PartNumber><ETag>"bbb"</ETag></Part>
</ListPartsResult>`
	tags, err := AllXMLTags([]byte(body), "ETag")
	require.NoError(t, err)
	assert.Equal(t, []string{`"aaa"`, `"bbb"`}, tags)
}
