package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordOverlays(4, 2)
	r.RecordOverlays(3, 4)
	assert.Equal(t, 7.0, testutil.ToFloat64(r.overlays.WithLabelValues("attach")))
	assert.Equal(t, 6.0, testutil.ToFloat64(r.overlays.WithLabelValues("detach")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.active))

	r.RecordFeedStatus("connected")
	r.RecordFeedStatus("error")
	assert.Equal(t, 0.0, testutil.ToFloat64(r.feedStatus.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.feedStatus.WithLabelValues("error")))

	r.RecordSkipped("malformed")
	r.RecordError("overlay_detach")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skipped.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("overlay_detach")))
}
