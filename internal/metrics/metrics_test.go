package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry(), "test")

	r.RecordClassification("APKS")
	r.RecordClassification("APKS")
	r.RecordClassification("NONE")
	r.RecordEntity("base", "APKS")
	r.RecordDropped("MULTI_APK_ZIP")
	r.RecordExtraction(1024)
	r.RecordExtraction(512)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.classifications.WithLabelValues("APKS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.classifications.WithLabelValues("NONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.entities.WithLabelValues("base", "APKS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.droppedEntries.WithLabelValues("MULTI_APK_ZIP")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.tempFiles))
	assert.Equal(t, 1536.0, testutil.ToFloat64(r.tempBytes))
}

func TestRecordAnalysisStatus(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry(), "test")

	r.RecordAnalysis("APK", nil, 10*time.Millisecond)
	r.RecordAnalysis("APK", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(r.analysisDuration))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordClassification("APK")
		r.RecordEntity("base", "APK")
		r.RecordDropped("APK")
		r.RecordAnalysis("APK", nil, time.Second)
		r.RecordExtraction(1)
		assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	})
}

func TestWriteTextfile(t *testing.T) {
	r := New("")
	r.RecordClassification("XAPK")

	path := filepath.Join(t.TempDir(), "pkgscope.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `pkgscope_classifications_total{type="XAPK"} 1`)
}
