package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Track latencies from 1µs up to 60s with 3 significant figures.
const (
	lowestLatencyUs  = 1
	highestLatencyUs = 60_000_000
	latencySigFigs   = 3
)

func newLatencyHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(lowestLatencyUs, highestLatencyUs, latencySigFigs)
}

// Session holds the statistics of a single execution context. It is not
// safe for concurrent use: exactly one goroutine owns a Session, and the
// coordinator receives its contents through Harvest.
type Session struct {
	Operations         int64
	Succeeded          int64
	Failed             int64
	Attempts           int64
	Retries            int64
	ValidationFailures int64
	Rows               int64
	Cycles             int64
	FailedCycles       int64
	LatencySum         time.Duration
	MinLatency         time.Duration
	MaxLatency         time.Duration
	Errors             map[string]int64

	hist *hdrhistogram.Histogram
}

func NewSession() *Session {
	return &Session{
		Errors: make(map[string]int64),
		hist:   newLatencyHistogram(),
	}
}

// RecordAttempt counts one backend attempt. Attempts after the first of an
// operation are also counted as retries.
func (s *Session) RecordAttempt(retry bool) {
	s.Attempts++
	if retry {
		s.Retries++
	}
}

// RecordOperation records one logical operation. latency spans all attempts.
func (s *Session) RecordOperation(latency time.Duration, rows int, err error) {
	s.Operations++
	s.Rows += int64(rows)
	s.LatencySum += latency
	if s.MinLatency == 0 || latency < s.MinLatency {
		s.MinLatency = latency
	}
	if latency > s.MaxLatency {
		s.MaxLatency = latency
	}
	recordLatency(s.hist, latency)

	if err == nil {
		s.Succeeded++
		return
	}
	s.Failed++
	s.Errors[ErrorLabel(err)]++
}

// RecordValidationFailure counts a row-count mismatch.
func (s *Session) RecordValidationFailure() {
	s.ValidationFailures++
}

// RecordCycle counts one workload iteration. A failed iteration is one
// whose error reached the worker loop.
func (s *Session) RecordCycle(err error) {
	s.Cycles++
	if err != nil {
		s.FailedCycles++
	}
}

// Histogram exposes the latency histogram of the session.
func (s *Session) Histogram() *hdrhistogram.Histogram { return s.hist }

// Harvest returns the accumulated statistics and resets s to zero.
func (s *Session) Harvest() *Session {
	snapshot := *s
	*s = *NewSession()
	return &snapshot
}

// Reset zeroes every counter.
func (s *Session) Reset() {
	*s = *NewSession()
}

func recordLatency(h *hdrhistogram.Histogram, latency time.Duration) {
	if latency <= 0 {
		return
	}
	us := latency.Microseconds()
	if us < h.LowestTrackableValue() {
		us = h.LowestTrackableValue()
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}
