package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordRun("post-interest", true, 2*time.Second)
	m.RecordRun("post-interest", false, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("post-interest", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("post-interest", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastRunFailed.WithLabelValues("post-interest")))

	m.RecordRun("post-interest", true, time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastRunFailed.WithLabelValues("post-interest")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordSkipped(t *testing.T) {
	m := Nop()
	m.RecordRun("update-dormancy", false, time.Second)
	m.RecordSkipped("update-dormancy")
	m.RecordSkipped("update-dormancy")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("update-dormancy", OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastRunFailed.WithLabelValues("update-dormancy")), "skips leave the last run gauge alone")
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestRecordItemAndPage(t *testing.T) {
	m := Nop()
	m.RecordItem("update-dormancy", OutcomeSuccess)
	m.RecordItem("update-dormancy", OutcomeSuccess)
	m.RecordItem("update-dormancy", OutcomeFailed)
	m.RecordPage("update-dormancy")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Items.WithLabelValues("update-dormancy", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Items.WithLabelValues("update-dormancy", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Pages.WithLabelValues("update-dormancy")))
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
