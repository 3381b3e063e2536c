package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromSinkRecordsAttemptLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPromSink(reg)

	sink.AttemptStarted("fix_logic", "shop/views.py", 1)
	sink.AttemptFailed("fix_logic", "shop/views.py", "bad_diff", 1)
	sink.AttemptStarted("fix_logic", "shop/views.py", 2)
	sink.AttemptSucceeded("fix_logic", "shop/views.py", 2)
	sink.AttemptStarted("fix_command", "", 1)
	sink.AttemptSucceeded("fix_command", "", 1)
	sink.FilesPatched(3)
	sink.CycleFinished("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.attemptsStarted.WithLabelValues("fix_logic", "shop/views.py", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.attemptsStarted.WithLabelValues("fix_logic", "shop/views.py", "2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.attemptsFailed.WithLabelValues("fix_logic", "shop/views.py", "bad_diff", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.attemptsOK.WithLabelValues("fix_logic", "shop/views.py", "2")))

	// Command fixes have no target file and report an empty path.
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.attemptsStarted.WithLabelValues("fix_command", "", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.attemptsOK.WithLabelValues("fix_command", "", "1")))

	assert.Equal(t, 3.0, testutil.ToFloat64(sink.filesPatched))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.cycles.WithLabelValues("success")))
}

func TestPromSinkRegistersAllCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPromSink(reg)

	sink.AttemptStarted("bundle", "shop/models.py", 1)
	sink.AttemptFailed("bundle", "shop/models.py", "invalid_syntax", 1)
	sink.CycleFinished("no_progress")
	sink.FilesPatched(1)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"fixpoint_attempts_started_total",
		"fixpoint_attempts_failed_total",
		"fixpoint_cycles_total",
		"fixpoint_files_patched_total",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

func TestNopSinkImplementsSink(t *testing.T) {
	var s Sink = NopSink{}
	s.AttemptStarted("fix_syntax", "app/forms.py", 1)
	s.AttemptSucceeded("fix_syntax", "app/forms.py", 1)
	s.AttemptFailed("fix_syntax", "app/forms.py", "oracle_error", 2)
	s.CycleFinished("success")
	s.FilesPatched(2)
}
