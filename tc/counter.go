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
	"sync/atomic"
)

// Counter qualities with special meaning
const (
	// QualityInsufficient is assigned to counters that wrap faster than windup can service them
	QualityInsufficient int64 = -2000
	// QualityDummy is the quality of the bootstrap counter
	QualityDummy int64 = -1000000
)

// dummy counter parameters
const (
	dummyName      = "dummy"
	dummyFrequency = 1000000
	dummyMask      = math.MaxUint32
)

// Source is a free-running hardware counter.
// Read must not block and must not wrap more than once between two windups.
type Source interface {
	Read() uint64
}

// SourceFunc adapts a function to the Source interface
type SourceFunc func() uint64

// Read implements Source
func (f SourceFunc) Read() uint64 {
	return f()
}

// Counter describes one hardware counter.
// The Clock references a registered Counter for the lifetime of the process
// and never frees it.
type Counter struct {
	Name      string
	Source    Source
	Mask      uint64 // all-ones low bits, defines the wrap width
	Frequency uint64 // Hz
	Quality   int64  // negative values are never auto-selected

	freqAdj atomic.Int64 // ns/s, Q32.32
	next    *Counter
}

// FreqAdj returns the steady-state frequency trim in ns/s, Q32.32
func (c *Counter) FreqAdj() int64 {
	return c.freqAdj.Load()
}

// betterThan reports whether c should replace o as the active counter
func (c *Counter) betterThan(o *Counter) bool {
	if c.Quality < 0 {
		return false
	}
	if c.Quality != o.Quality {
		return c.Quality > o.Quality
	}
	return c.Frequency > o.Frequency
}

// warmUp reads the counter twice to let the hardware settle
func (c *Counter) warmUp() {
	_ = c.Source.Read()
	_ = c.Source.Read()
}

// dummySource only guarantees that time moves forward before any real
// counter is registered
type dummySource struct {
	now atomic.Uint64
}

func (d *dummySource) Read() uint64 {
	return d.now.Add(1) & dummyMask
}

func newDummyCounter() *Counter {
	return &Counter{
		Name:      dummyName,
		Source:    &dummySource{},
		Mask:      dummyMask,
		Frequency: dummyFrequency,
		Quality:   QualityDummy,
	}
}

// PPBToFreqAdj converts parts per billion to the Q32.32 ns/s representation used by AdjFreq
func PPBToFreqAdj(ppb float64) int64 {
	return int64(ppb * (1 << 32))
}

// FreqAdjToPPB converts Q32.32 ns/s to parts per billion
func FreqAdjToPPB(adj int64) float64 {
	return float64(adj) / (1 << 32)
}
