package multipart

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/s3rest/internal/cliconfig"
	"github.com/FairForge/s3rest/internal/s3err"
	"github.com/FairForge/s3rest/internal/signer"
)

// fakeTransport simulates the S3 multipart REST surface in memory.
type fakeTransport struct {
	mu           sync.Mutex
	uploadID     string
	partETags    map[int]string
	failParts    map[int]int // partNumber -> number of times to fail before succeeding
	attempts     map[int]int
	abortCalled  int32
	completeErr  error
	completeBody []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		uploadID:  "fake-upload-id",
		partETags: map[int]string{},
		failParts: map[int]int{},
		attempts:  map[int]int{},
	}
}

func (f *fakeTransport) Do(ctx context.Context, d signer.RequestDescriptor, body []byte, fp *filePart) (int, []byte, []byte, error) {
	switch d.Method {
	case "POST":
		if _, ok := d.Query["uploads"]; ok {
			respBody := []byte(fmt.Sprintf(`<InitiateMultipartUploadResult><UploadId>%s</UploadId></InitiateMultipartUploadResult>`, f.uploadID))
			return 200, respBody, nil, nil
		}
		f.mu.Lock()
		f.completeBody = append([]byte(nil), body...)
		f.mu.Unlock()
		if f.completeErr != nil {
			return 0, nil, nil, f.completeErr
		}
		respBody := []byte(`<CompleteMultipartUploadResult><ETag>"final-etag"</ETag></CompleteMultipartUploadResult>`)
		return 200, respBody, nil, nil
	case "PUT":
		partNumber := 0
		if fp != nil {
			fmt.Sscanf(d.Query["partNumber"], "%d", &partNumber)
		}
		f.mu.Lock()
		f.attempts[partNumber]++
		attemptNo := f.attempts[partNumber]
		remainingFailures := f.failParts[partNumber]
		f.mu.Unlock()

		if attemptNo <= remainingFailures {
			return 0, nil, nil, s3err.New(s3err.Transport, "fake", fmt.Errorf("simulated transient failure"))
		}

		etag := fmt.Sprintf(`"etag-%d"`, partNumber)
		f.mu.Lock()
		f.partETags[partNumber] = etag
		f.mu.Unlock()
		return 200, nil, []byte("ETag: " + etag + "\r\n"), nil
	case "DELETE":
		atomic.AddInt32(&f.abortCalled, 1)
		return 204, nil, nil, nil
	}
	return 500, nil, nil, fmt.Errorf("unexpected method %s", d.Method)
}

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func testOrchestrator(transport Transport, cfg cliconfig.Config) *Orchestrator {
	s := signer.New(signer.NewCredentials("ak", "sk", "us-east-1"))
	return New(s, transport, "https://example.com", "bucket", "bigfile.bin", WithConfig(cfg),
		WithRetryPolicy(3, time.Millisecond, 5*time.Millisecond))
}

func TestUpload_SinglePartFastPath(t *testing.T) {
	path := writeTempFile(t, 1024)
	ft := newFakeTransport()
	cfg := cliconfig.Default()
	o := testOrchestrator(ft, cfg)

	res, err := o.Upload(context.Background(), path, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Parts)
	assert.Equal(t, `"etag-0"`, res.ETag)
	assert.Zero(t, ft.abortCalled)
}

func TestUpload_MultipartSucceeds(t *testing.T) {
	path := writeTempFile(t, 20*1024*1024) // jobs=4 -> partSize = 20MiB/4 = 5 MiB exactly
	ft := newFakeTransport()
	cfg := cliconfig.Default()
	o := testOrchestrator(ft, cfg)

	res, err := o.Upload(context.Background(), path, 4)
	require.NoError(t, err)
	assert.Equal(t, `"final-etag"`, res.ETag)
	assert.Equal(t, "fake-upload-id", res.UploadID)
	assert.NotEmpty(t, res.CorrelationID)
	assert.Equal(t, 4, res.Parts)
	assert.Zero(t, ft.abortCalled)
}

func TestUpload_CompleteBodyMatchesWireFormat(t *testing.T) {
	path := writeTempFile(t, 15*1024*1024) // jobs=3 -> 5 MiB each, spec Scenario D
	ft := newFakeTransport()
	cfg := cliconfig.Default()
	o := testOrchestrator(ft, cfg)

	_, err := o.Upload(context.Background(), path, 3)
	require.NoError(t, err)

	body := string(ft.completeBody)
	assert.True(t, strings.HasPrefix(body, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, body, `<CompleteMultipartUpload xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	assert.Contains(t, body, `<Part><ETag>"etag-1"</ETag><PartNumber>1</PartNumber></Part>`)
	assert.Contains(t, body, `<Part><ETag>"etag-2"</ETag><PartNumber>2</PartNumber></Part>`)
	assert.Contains(t, body, `<Part><ETag>"etag-3"</ETag><PartNumber>3</PartNumber></Part>`)
	assert.True(t, strings.HasSuffix(body, `</CompleteMultipartUpload>`))

	i1 := strings.Index(body, "PartNumber>1<")
	i2 := strings.Index(body, "PartNumber>2<")
	i3 := strings.Index(body, "PartNumber>3<")
	assert.True(t, i1 < i2 && i2 < i3, "parts must be listed in ascending PartNumber order")
}

func TestUpload_RetriesTransientPartFailure(t *testing.T) {
	path := writeTempFile(t, 20*1024*1024)
	ft := newFakeTransport()
	ft.failParts[1] = 1 // fail once, then succeed
	cfg := cliconfig.Default()
	o := testOrchestrator(ft, cfg)

	res, err := o.Upload(context.Background(), path, 4)
	require.NoError(t, err)
	assert.Equal(t, `"final-etag"`, res.ETag)
}

func TestUpload_AbortsOnUnrecoverablePartFailure(t *testing.T) {
	path := writeTempFile(t, 20*1024*1024)
	ft := newFakeTransport()
	ft.failParts[2] = 10 // always fails, exceeds retry budget
	cfg := cliconfig.Default()
	o := testOrchestrator(ft, cfg)

	_, err := o.Upload(context.Background(), path, 4)
	assert.Error(t, err)
	assert.Equal(t, int32(1), ft.abortCalled)
	assert.Equal(t, StateFailed, o.State())
}

func TestUpload_RejectsJobsBelowPartSizeFloor(t *testing.T) {
	// 12 MiB / 4 jobs = 3 MiB per part, below the 5 MiB S3 minimum.
	path := writeTempFile(t, 12*1024*1024)
	ft := newFakeTransport()
	cfg := cliconfig.Default()
	o := testOrchestrator(ft, cfg)

	_, err := o.Upload(context.Background(), path, 4)
	assert.Error(t, err)
	assert.Zero(t, ft.abortCalled)
}

func TestOrchestrator_StateTransitionsIdleToDone(t *testing.T) {
	path := writeTempFile(t, 20*1024*1024)
	ft := newFakeTransport()
	cfg := cliconfig.Default()
	o := testOrchestrator(ft, cfg)

	assert.Equal(t, StateIdle, o.State())
	_, err := o.Upload(context.Background(), path, 4)
	require.NoError(t, err)
	assert.Equal(t, StateDone, o.State())
}

func TestPlanParts_SingleJobIsOnePart(t *testing.T) {
	parts := planParts(1024, 1)
	require.Len(t, parts, 1)
	assert.EqualValues(t, 1024, parts[0].length)
}

func TestPlanParts_SplitsEvenlyAcrossJobs(t *testing.T) {
	// Spec Scenario D: jobs=3, 15 MiB file -> {5 MiB, 5 MiB, 5 MiB}.
	parts := planParts(15*1024*1024, 3)
	require.Len(t, parts, 3)
	assert.EqualValues(t, 5*1024*1024, parts[0].length)
	assert.EqualValues(t, 5*1024*1024, parts[1].length)
	assert.EqualValues(t, 5*1024*1024, parts[2].length)
	assert.EqualValues(t, 0, parts[0].offset)
	assert.EqualValues(t, 5*1024*1024, parts[1].offset)
	assert.EqualValues(t, 10*1024*1024, parts[2].offset)
}

func TestPlanParts_UnevenSplitLastPartCarriesRemainder(t *testing.T) {
	// Spec Scenario E: jobs=4, 17-byte file -> {4, 4, 4, 5}.
	parts := planParts(17, 4)
	require.Len(t, parts, 4)
	assert.EqualValues(t, 4, parts[0].length)
	assert.EqualValues(t, 4, parts[1].length)
	assert.EqualValues(t, 4, parts[2].length)
	assert.EqualValues(t, 5, parts[3].length)
	assert.EqualValues(t, 0, parts[0].offset)
	assert.EqualValues(t, 4, parts[1].offset)
	assert.EqualValues(t, 8, parts[2].offset)
	assert.EqualValues(t, 12, parts[3].offset)
}

func TestValidatePartSize_RejectsSubFloorNonLastPart(t *testing.T) {
	err := validatePartSize(12*1024*1024, 4) // 3 MiB per part
	assert.Error(t, err)
}

func TestValidatePartSize_AllowsExactFloor(t *testing.T) {
	err := validatePartSize(15*1024*1024, 3) // 5 MiB per part
	assert.NoError(t, err)
}

func TestValidatePartSize_SingleJobNeverRejected(t *testing.T) {
	err := validatePartSize(17, 1)
	assert.NoError(t, err)
}
