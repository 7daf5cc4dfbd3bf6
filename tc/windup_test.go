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

package tc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/timecounter/bintime"
)

func seconds(bt bintime.BinTime) float64 {
	return float64(bt.Sec) + float64(bt.Frac)/math.Pow(2, 64)
}

// newRunningClock returns a clock whose published timehands already use a 1MHz 32-bit counter
func newRunningClock(t *testing.T) (*Clock, *fakeSource) {
	c := newTestClock(t)
	cnt, src := newFakeCounter("fake", 1000000, math.MaxUint32, 0)
	src.Set(1000)
	require.NoError(t, c.Register(cnt))
	c.Windup()
	require.Equal(t, uint64(1000000), c.Frequency())
	return c, src
}

func TestComputeScale(t *testing.T) {
	require.Equal(t, uint64(18446744073708), computeScale(0, 1000000))
	require.Equal(t, (uint64(1)<<63)/1000000000*2, computeScale(0, 1000000000))

	base := float64(computeScale(0, 1000000))
	up := float64(computeScale(PPBToFreqAdj(1000), 1000000))
	down := float64(computeScale(PPBToFreqAdj(-1000), 1000000))
	require.InDelta(t, 1+1e-6, up/base, 1e-9)
	require.InDelta(t, 1-1e-6, down/base, 1e-9)
}

func TestComputeScaleFullRange(t *testing.T) {
	maxAdj := PPBToFreqAdj(MaxSlewPPM*1000 + 500000)
	for _, freq := range []uint64{1000, 1000000, 14318180, 1000000000, 3000000000} {
		base := float64(computeScale(0, freq))
		up := float64(computeScale(maxAdj, freq))
		down := float64(computeScale(-maxAdj, freq))
		require.InDelta(t, 1.0055, up/base, 1e-6, "freq %d", freq)
		require.InDelta(t, 0.9945, down/base, 1e-6, "freq %d", freq)
	}
}

func TestNextGeneration(t *testing.T) {
	require.Equal(t, uint32(2), nextGeneration(1))
	require.Equal(t, uint32(1), nextGeneration(math.MaxUint32))
}

func TestWindupAdvancesByElapsedTicks(t *testing.T) {
	c, src := newRunningClock(t)

	o1 := c.GetBinuptime()
	src.Advance(500000)
	c.Windup()
	o2 := c.GetBinuptime()

	elapsed := o2.Sub(o1)
	require.Equal(t, int64(0), elapsed.Sec)
	oneTick := computeScale(0, 1000000)
	require.InDelta(t, float64(uint64(1)<<63), float64(elapsed.Frac), float64(oneTick))
}

func TestWindupCounterWrap(t *testing.T) {
	c := newTestClock(t)
	cnt, src := newFakeCounter("wrap", 1000, 0xffff, 0)
	src.Set(0xfff0)
	require.NoError(t, c.Register(cnt))
	c.Windup()

	o1 := c.GetBinuptime()
	src.Advance(0x20)
	live := c.Binuptime()
	c.Windup()
	o2 := c.GetBinuptime()

	require.Equal(t, live, o2)
	require.InDelta(t, 0.032, seconds(o2.Sub(o1)), 1e-9)
	require.Equal(t, uint64(0x10), c.ring[c.current.Load()].offsetCount.Load())
}

func TestWindupRingRoundRobin(t *testing.T) {
	c, err := New(Config{RingSize: 3})
	require.NoError(t, err)
	require.Equal(t, uint32(0), c.current.Load())

	for i := 1; i <= 7; i++ {
		prev := c.ring[c.current.Load()].generation.Load()
		c.Windup()
		cur := c.current.Load()
		require.Equal(t, uint32(i%3), cur)
		require.Equal(t, nextGeneration(prev), c.ring[cur].generation.Load())
	}
	require.Equal(t, uint64(7), c.Windups())
}

func TestWindupGenerationSkipsZero(t *testing.T) {
	c := newTestClock(t)
	c.ring[c.current.Load()].generation.Store(math.MaxUint32)
	c.Windup()
	require.Equal(t, uint32(1), c.ring[c.current.Load()].generation.Load())
	require.Equal(t, uint64(dummyFrequency), c.Frequency())
}

func TestWindupLazySwitchover(t *testing.T) {
	c, a := newRunningClock(t)

	b, bsrc := newFakeCounter("better", 10000000, math.MaxUint32, 10)
	bsrc.Set(123456)
	require.NoError(t, c.Register(b))
	require.Equal(t, "better", c.Hardware())

	a.Advance(250000)
	before := c.Binuptime()
	require.Equal(t, uint64(1000000), c.Frequency())

	c.Windup()
	require.Equal(t, uint64(10000000), c.Frequency())
	require.Equal(t, before, c.Binuptime())
	require.Equal(t, uint64(123456), c.ring[c.current.Load()].offsetCount.Load())

	// the old counter no longer matters
	a.Advance(1000000)
	require.Equal(t, before, c.Binuptime())

	bsrc.Advance(10000000)
	require.InDelta(t, 1.0, seconds(c.Binuptime().Sub(before)), 1e-6)
}

func TestWindupCachesWallclock(t *testing.T) {
	c, src := newRunningClock(t)
	c.SetClock(bintime.Timespec{Sec: 1700000000})

	src.Advance(1500000)
	c.Windup()
	require.Equal(t, int64(1700000001), c.TimeSecond())
	require.Equal(t, int64(2), c.TimeUptime())
	require.Equal(t, c.GetBintime().ToTimespec(), c.GetNanotime())
	require.Equal(t, c.GetBintime().ToTimeval(), c.GetMicrotime())
	require.InDelta(t, 1700000001.5, float64(c.GetNanotime().Sec)+float64(c.GetNanotime().Nsec)/1e9, 1e-5)
}

func TestWindupCatchUpIsBounded(t *testing.T) {
	for _, stall := range []uint64{3, 10, 150, 300} {
		c, src := newRunningClock(t)
		c.AdjustTime(time.Second)
		src.Advance(stall * 1000000)
		c.Windup()
		require.Equal(t, time.Second-maxCatchUp*MaxSlewPPM*time.Microsecond, c.PendingAdjustment(), "stall %ds", stall)
	}
}

func TestWindupStallKeepsPendingAdjustment(t *testing.T) {
	c, src := newRunningClock(t)
	c.AdjustTime(time.Second)

	src.Advance(150 * 1000000)
	c.Windup()
	pending := c.PendingAdjustment()
	require.Equal(t, 990*time.Millisecond, pending)

	// the remainder keeps slewing at the bounded rate
	before := c.GetBinuptime()
	src.Advance(1000000)
	c.Windup()
	require.InDelta(t, 1.005, seconds(c.GetBinuptime().Sub(before)), 1e-6)
	require.Equal(t, pending-MaxSlewPPM*time.Microsecond, c.PendingAdjustment())
}

func TestTickTock(t *testing.T) {
	c, err := New(Config{Hz: 4000})
	require.NoError(t, err)
	require.Equal(t, int64(4), c.Tick())

	for i := 0; i < 3; i++ {
		c.TickTock()
	}
	require.Equal(t, uint64(0), c.Windups())
	c.TickTock()
	require.Equal(t, uint64(1), c.Windups())

	require.ErrorIs(t, c.SetTick(0), ErrInvalidConfig)
	require.NoError(t, c.SetTick(1))
	c.TickTock()
	c.TickTock()
	require.Equal(t, uint64(3), c.Windups())
}
