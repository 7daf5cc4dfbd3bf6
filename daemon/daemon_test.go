/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/timecounter/counters"
	"github.com/facebook/timecounter/servo"
	"github.com/facebook/timecounter/tc"
)

type testLogger struct {
	samples []*LogSample
}

func (l *testLogger) Log(s *LogSample) error {
	l.samples = append(l.samples, s)
	return nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.MonotonicRaw = false
	cfg.MonitoringPort = 0
	cfg.MetricsPort = 0
	return cfg
}

// newTestDaemon returns a daemon running on a manual 1MHz counter
func newTestDaemon(t *testing.T, cfg *Config) (*Daemon, *counters.Manual, *testLogger, *Stats) {
	require.NoError(t, cfg.EvalAndValidate())
	stats := NewStats()
	l := &testLogger{samples: []*LogSample{}}
	d, err := New(cfg, stats, l)
	require.NoError(t, err)
	m := counters.NewManual(0xffffffff)
	require.NoError(t, d.Clock().Register(m.Counter("manual", 1000000, 10)))
	d.Clock().Windup()
	return d, m, l, stats
}

func freqAdjPPB(t *testing.T, c *tc.Clock) float64 {
	adj, err := c.AdjFreq(nil)
	require.NoError(t, err)
	return tc.FreqAdjToPPB(adj)
}

func TestDaemonStateSamplesRing(t *testing.T) {
	s := newDaemonState(3)
	require.Empty(t, s.takeSamples(3))

	samples := []*sample{
		{offsetNS: 1},
		{offsetNS: 2},
		{offsetNS: 3},
		{offsetNS: 4},
	}
	for _, p := range samples {
		s.pushSample(p)
	}
	require.Equal(t, []*sample{samples[3], samples[2], samples[1]}, s.takeSamples(5))
	require.Equal(t, []*sample{samples[3], samples[2]}, s.takeSamples(2))

	s.clearSamples()
	require.Empty(t, s.takeSamples(3))
}

func TestDaemonStateAggregateMax(t *testing.T) {
	s := newDaemonState(3)
	for _, p := range []*sample{
		{offsetNS: 123.0, freqPPB: 4},
		{offsetNS: -2000.0, freqPPB: -7},
		{offsetNS: 1009.0, freqPPB: 5},
	} {
		s.pushSample(p)
	}
	require.Equal(t, &sample{offsetNS: 2000, freqPPB: 7}, s.aggregateSamplesMax(3))
}

func TestNewDaemon(t *testing.T) {
	d, _, _, stats := newTestDaemon(t, testConfig())
	require.Equal(t, "manual", d.Clock().Hardware())
	require.Equal(t, uint64(1000000), d.Clock().Frequency())
	got := stats.Get()
	require.Contains(t, got, "offset_ns")
	require.Contains(t, got, "step_count")
	require.Equal(t, int64(1), got["tick"])
}

func TestNewDaemonUnknownCounter(t *testing.T) {
	cfg := testConfig()
	cfg.Counter = "hpet"
	_, err := New(cfg, NewStats(), &testLogger{})
	require.ErrorIs(t, err, tc.ErrNotFound)
}

func TestNewDaemonBadPHC(t *testing.T) {
	cfg := testConfig()
	cfg.PHCDevice = "/does/not/exist/ptp0"
	_, err := New(cfg, NewStats(), &testLogger{})
	require.Error(t, err)
}

func TestDaemonDiscipline(t *testing.T) {
	d, m, l, stats := newTestDaemon(t, testConfig())
	ref := time.Unix(1700000000, 0)
	d.reference = func() time.Time { return ref }

	// way off, step
	require.NoError(t, d.discipline())
	require.Equal(t, int64(1), stats.Get()["step_count"])
	require.Equal(t, int64(servo.StateJump), stats.Get()["servo_state"])
	require.Equal(t, ref, d.Clock().Now())
	require.Empty(t, l.samples)

	// 500ns behind
	m.Advance(1000000)
	ref = d.Clock().Now().Add(500 * time.Nanosecond)
	require.NoError(t, d.discipline())
	require.Equal(t, int64(-500), stats.Get()["offset_ns"])
	require.Equal(t, int64(servo.StateInit), stats.Get()["servo_state"])
	require.Len(t, l.samples, 1)
	require.Equal(t, -500.0, l.samples[0].OffsetNS)
	require.Equal(t, "INIT", l.samples[0].ServoState)
	require.Equal(t, 0.0, freqAdjPPB(t, d.Clock()))

	// 700ns behind a second later: running 200ppb slow
	m.Advance(1000000)
	ref = d.Clock().Now().Add(700 * time.Nanosecond)
	require.NoError(t, d.discipline())
	require.Equal(t, int64(servo.StateLocked), stats.Get()["servo_state"])
	require.Len(t, l.samples, 2)
	require.Equal(t, "LOCKED", l.samples[1].ServoState)
	require.InDelta(t, 200, freqAdjPPB(t, d.Clock()), 1)
	require.InDelta(t, 200, l.samples[1].FreqAdjustmentPPB, 1)
	require.Equal(t, int64(200), stats.Get()["freq_adj_ppb"])
	require.Equal(t, int64(1), stats.Get()["step_count"])

	// two samples are enough for the default uncertainty
	require.InDelta(t, 600+3*141.42135623730951, l.samples[1].UncertaintyNS, 1e-6)
	require.Equal(t, int64(700), stats.Get()["offset_ns.abs_max"])
}

func TestDaemonSetFreqOutOfRange(t *testing.T) {
	d, _, _, stats := newTestDaemon(t, testConfig())
	d.setFreq(-300)
	require.InDelta(t, 300, freqAdjPPB(t, d.Clock()), 1e-6)

	d.setFreq(tc.MaxFreqAdjPPB * 2)
	require.InDelta(t, 300, freqAdjPPB(t, d.Clock()), 1e-6)
	require.Equal(t, int64(300), stats.Get()["freq_adj_ppb"])
	require.Equal(t, int64(1), stats.Get()["freq_adj_error"])
}

func TestDaemonDisciplineStepResetsSamples(t *testing.T) {
	d, m, l, stats := newTestDaemon(t, testConfig())
	ref := time.Unix(1700000000, 0)
	d.reference = func() time.Time { return ref }
	require.NoError(t, d.discipline())

	m.Advance(1000000)
	ref = d.Clock().Now()
	require.NoError(t, d.discipline())
	require.Len(t, d.state.takeSamples(10), 1)

	// someone stepped the reference
	m.Advance(1000000)
	ref = d.Clock().Now().Add(-time.Second)
	require.NoError(t, d.discipline())
	require.Equal(t, int64(2), stats.Get()["step_count"])
	require.Empty(t, d.state.takeSamples(10))
	require.Len(t, l.samples, 1)
	require.Equal(t, ref, d.Clock().Now())
}

func TestDaemonUpdateStats(t *testing.T) {
	d, _, _, stats := newTestDaemon(t, testConfig())
	d.Clock().Windup()
	d.updateStats()
	require.Equal(t, int64(d.Clock().Windups()), stats.Get()["windups"])
	require.Equal(t, int64(1), stats.Get()["tick"])
	require.Contains(t, stats.Get(), "process.uptime")
	require.Greater(t, stats.Get()["runtime.cpu.goroutines"], int64(0))
}

func TestDaemonRun(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 10 * time.Millisecond
	d, _, _, _ := newTestDaemon(t, cfg)
	before := d.Clock().Windups()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, d.Run(ctx))
	require.Greater(t, d.Clock().Windups(), before)
}
