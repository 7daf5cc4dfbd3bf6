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

package cmd

import (
	"bytes"
	"math"
	"net/http/httptest"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/facebook/timecounter/counters"
	"github.com/facebook/timecounter/daemon"
	"github.com/facebook/timecounter/tc"
)

func newTestServer(t *testing.T) (*client, *tc.Clock) {
	color.NoColor = true
	clock, err := tc.New(tc.Config{Hz: 1000})
	require.NoError(t, err)
	m := counters.NewManual(math.MaxUint32)
	require.NoError(t, clock.Register(m.Counter("manual", 1000000, 10)))
	fast := counters.NewManual(0xff)
	require.NoError(t, clock.Register(fast.Counter("fast", 2000000000, 0)))
	clock.Windup()

	stats := daemon.NewStats()
	stats.SetCounter("windups", 7)
	stats.SetCounter("step_count", 1)
	ts := httptest.NewServer(daemon.NewAdmin(clock, stats).Handler())
	t.Cleanup(ts.Close)
	return newClient(ts.URL + "/"), clock
}

func freqAdjPPB(t *testing.T, c *tc.Clock) float64 {
	adj, err := c.AdjFreq(nil)
	require.NoError(t, err)
	return tc.FreqAdjToPPB(adj)
}

func TestListRun(t *testing.T) {
	c, _ := newTestServer(t)
	var buf bytes.Buffer
	require.NoError(t, listRun(&buf, c))
	out := buf.String()
	require.Contains(t, out, "hardware: manual (1000000 Hz)")
	require.Contains(t, out, "choice: fast(-2000) manual(10)")
	require.Contains(t, out, "0xffffffff")
	require.Contains(t, out, "-2000")
}

func TestChooseRun(t *testing.T) {
	c, clock := newTestServer(t)
	var buf bytes.Buffer
	require.Error(t, chooseRun(&buf, c, "hpet"))
	require.Equal(t, "manual", clock.Hardware())

	require.NoError(t, chooseRun(&buf, c, "fast"))
	require.Equal(t, "fast", clock.Hardware())
	require.Contains(t, buf.String(), "hardware: fast")
}

func TestAdjFreqRun(t *testing.T) {
	c, clock := newTestServer(t)
	var buf bytes.Buffer
	require.NoError(t, adjFreqRun(&buf, c, math.NaN()))
	require.Equal(t, "frequency adjustment: 0.000 ppb\n", buf.String())
	require.Equal(t, 0.0, freqAdjPPB(t, clock))

	buf.Reset()
	require.NoError(t, adjFreqRun(&buf, c, -125.5))
	require.Contains(t, buf.String(), "new frequency adjustment: -125.500 ppb")
	require.InDelta(t, -125.5, freqAdjPPB(t, clock), 1e-9)

	err := adjFreqRun(&buf, c, 2e9)
	require.ErrorContains(t, err, "outside of")
	require.InDelta(t, -125.5, freqAdjPPB(t, clock), 1e-9)
}

func TestAdjTimeRun(t *testing.T) {
	c, clock := newTestServer(t)
	var buf bytes.Buffer
	require.NoError(t, adjTimeRun(&buf, c, "1500us"))
	require.Equal(t, "pending adjustment: 1.5ms, was 0s\n", buf.String())
	require.Equal(t, "1.5ms", clock.PendingAdjustment().String())

	buf.Reset()
	require.NoError(t, adjTimeRun(&buf, c, ""))
	require.Equal(t, "pending adjustment: 1.5ms\n", buf.String())

	require.Error(t, adjTimeRun(&buf, c, "soon"))
}

func TestTickRun(t *testing.T) {
	c, clock := newTestServer(t)
	var buf bytes.Buffer
	require.NoError(t, tickRun(&buf, c, 0))
	require.Equal(t, "hz: 1000, windup every 1 ticks\n", buf.String())

	buf.Reset()
	require.NoError(t, tickRun(&buf, c, 3))
	require.Equal(t, "hz: 1000, windup every 3 ticks\n", buf.String())
	require.Equal(t, int64(3), clock.Tick())

	require.Error(t, tickRun(&buf, c, -1))
}

func TestWarningsRun(t *testing.T) {
	c, clock := newTestServer(t)
	var buf bytes.Buffer
	require.NoError(t, warningsRun(&buf, c, "true"))
	require.True(t, clock.TimestepWarnings())
	require.Equal(t, "timestep warnings: true\n", buf.String())

	require.Error(t, warningsRun(&buf, c, "maybe"))
}

func TestSetTimeAndNowRun(t *testing.T) {
	c, clock := newTestServer(t)
	var buf bytes.Buffer
	require.NoError(t, setTimeRun(&buf, c, "2023-11-14T22:13:20Z"))
	require.Contains(t, buf.String(), "nanotime:    1700000000.000000000")
	require.Equal(t, int64(1700000000), clock.TimeSecond())

	buf.Reset()
	require.NoError(t, nowRun(&buf, c))
	require.Contains(t, buf.String(), "time_second: 1700000000")

	require.Error(t, setTimeRun(&buf, c, "yesterday"))
}

func TestStatsRun(t *testing.T) {
	c, _ := newTestServer(t)
	var buf bytes.Buffer
	require.NoError(t, statsRun(&buf, c))
	out := buf.String()
	require.Contains(t, out, "step_count")
	require.Contains(t, out, "windups")
	require.Less(t, bytes.Index(buf.Bytes(), []byte("step_count")), bytes.Index(buf.Bytes(), []byte("windups")))
}
