package s3err

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable_TransportAlwaysRetries(t *testing.T) {
	err := New(Transport, "s3http.Send", errors.New("connection reset"))
	assert.True(t, Retryable(err))
}

func TestRetryable_ProtocolOnlyForSpecificStatuses(t *testing.T) {
	assert.True(t, Retryable(WithStatus("multipart.uploadOnePart", 500, errors.New("server error"))))
	assert.True(t, Retryable(WithStatus("multipart.uploadOnePart", 429, errors.New("throttled"))))
	assert.True(t, Retryable(WithStatus("multipart.uploadOnePart", 408, errors.New("timeout"))))
	assert.False(t, Retryable(WithStatus("multipart.uploadOnePart", 403, errors.New("forbidden"))))
	assert.False(t, Retryable(WithStatus("multipart.uploadOnePart", 404, errors.New("not found"))))
}

func TestRetryable_InvalidArgumentAndIONeverRetry(t *testing.T) {
	assert.False(t, Retryable(New(InvalidArgument, "signer.New", errors.New("empty access key"))))
	assert.False(t, Retryable(New(IO, "multipart.Upload", errors.New("open: no such file"))))
}

func TestRetryable_PlainErrorsNeverRetry(t *testing.T) {
	assert.False(t, Retryable(errors.New("not an s3err.Error")))
}

func TestKindOf_ExtractsKindOrDefaultsToTransport(t *testing.T) {
	assert.Equal(t, Protocol, KindOf(WithStatus("op", 500, errors.New("boom"))))
	assert.Equal(t, Transport, KindOf(errors.New("unclassified")))
}

func TestIs_ComparesByKind(t *testing.T) {
	err := New(Transport, "s3http.Send", errors.New("reset"))
	assert.True(t, errors.Is(err, New(Transport, "", nil)))
	assert.False(t, errors.Is(err, New(IO, "", nil)))
}

func TestError_IncludesStatusCodeWhenPresent(t *testing.T) {
	err := WithStatus("multipart.complete", 503, errors.New("unavailable"))
	assert.Contains(t, err.Error(), "status 503")
}

func TestUnwrap_ExposesUnderlyingError(t *testing.T) {
	underlying := errors.New("dial tcp: connection refused")
	err := New(Transport, "s3http.Send", underlying)
	assert.Same(t, underlying, errors.Unwrap(err))
}
