package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecorder_RegistersEveryMetric(t *testing.T) {
	r := NewRecorder()
	require.NotNil(t, r.Registry())

	r.PartsUploaded.WithLabelValues("success").Inc()
	r.PartRetries.WithLabelValues("transport").Add(2)
	r.BytesTransferred.Add(1024)
	r.ActiveUploads.Inc()
	r.RequestsSigned.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(r.PartsUploaded.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.PartRetries.WithLabelValues("transport")))
	assert.Equal(t, float64(1024), testutil.ToFloat64(r.BytesTransferred))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.ActiveUploads))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.RequestsSigned))
}

func TestWriteText_RendersExpositionFormat(t *testing.T) {
	r := NewRecorder()
	r.RequestsSigned.Inc()

	var buf strings.Builder
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), "s3rest_signer_requests_signed_total")
}
