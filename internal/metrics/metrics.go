// Package metrics reports remediation activity to an optional sink.
// Recording is best effort and never interferes with a session.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives counters for remediation attempts and cycle outcomes.
// file is the attempt's primary target, or "" for command fixes.
type Sink interface {
	AttemptStarted(taskKind, file string, attempt int)
	AttemptSucceeded(taskKind, file string, attempt int)
	AttemptFailed(taskKind, file, reason string, attempt int)
	CycleFinished(outcome string)
	FilesPatched(n int)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) AttemptStarted(string, string, int)        {}
func (NopSink) AttemptSucceeded(string, string, int)      {}
func (NopSink) AttemptFailed(string, string, string, int) {}
func (NopSink) CycleFinished(string)                      {}
func (NopSink) FilesPatched(int)                          {}

// PromSink exports counters through a prometheus registry.
type PromSink struct {
	attemptsStarted *prometheus.CounterVec
	attemptsOK      *prometheus.CounterVec
	attemptsFailed  *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	filesPatched    prometheus.Counter
}

// NewPromSink registers the remediation counters on reg.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	s := &PromSink{
		attemptsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixpoint",
			Name:      "attempts_started_total",
			Help:      "Remediation attempts handed to the oracle.",
		}, []string{"task", "file", "attempt"}),
		attemptsOK: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixpoint",
			Name:      "attempts_succeeded_total",
			Help:      "Remediation attempts that produced an applied fix.",
		}, []string{"task", "file", "attempt"}),
		attemptsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixpoint",
			Name:      "attempts_failed_total",
			Help:      "Remediation attempts rejected or errored.",
		}, []string{"task", "file", "reason", "attempt"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixpoint",
			Name:      "cycles_total",
			Help:      "Remediation cycles by outcome.",
		}, []string{"outcome"}),
		filesPatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fixpoint",
			Name:      "files_patched_total",
			Help:      "Files written by applied fixes.",
		}),
	}
	reg.MustRegister(s.attemptsStarted, s.attemptsOK, s.attemptsFailed, s.cycles, s.filesPatched)
	return s
}

func (s *PromSink) AttemptStarted(taskKind, file string, attempt int) {
	s.attemptsStarted.WithLabelValues(taskKind, file, strconv.Itoa(attempt)).Inc()
}

func (s *PromSink) AttemptSucceeded(taskKind, file string, attempt int) {
	s.attemptsOK.WithLabelValues(taskKind, file, strconv.Itoa(attempt)).Inc()
}

func (s *PromSink) AttemptFailed(taskKind, file, reason string, attempt int) {
	s.attemptsFailed.WithLabelValues(taskKind, file, reason, strconv.Itoa(attempt)).Inc()
}

func (s *PromSink) CycleFinished(outcome string) {
	s.cycles.WithLabelValues(outcome).Inc()
}

func (s *PromSink) FilesPatched(n int) {
	s.filesPatched.Add(float64(n))
}
