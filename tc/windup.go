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

// maxCatchUp caps the NTP updates a single windup runs after a stall
const maxCatchUp = 2

// computeScale returns the fraction of a second per counter tick for the
// given frequency, adjusted by adj ns/s (Q32.32).
//
// 2^64/1e9 * 2^-32 is about 4.2949; half of that is approximated by
// 2199/1024. Working on 2^63 and doubling after the division keeps every
// intermediate inside 64 bits for adjustments up to several thousand ppm.
func computeScale(adj int64, frequency uint64) uint64 {
	scale := uint64(1) << 63
	scale += uint64((adj / 1024) * 2199)
	scale /= frequency
	return scale * 2
}

// Windup advances the published timehands.
// Concurrent callers are serialized; readers are never blocked.
func (c *Clock) Windup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windup()
}

func (c *Clock) windup() {
	cur := c.current.Load()
	old := &c.ring[cur]
	next := (cur + 1) % uint32(len(c.ring))
	th := &c.ring[next]

	th.generation.Store(0)
	h := old.load()
	h.boottime = c.boottime

	// capture the new counter before folding in ticks of the old one
	active := c.active.Load()
	delta := h.delta()
	var ncount uint64
	if h.counter != active {
		ncount = active.Source.Read()
	}

	h.offsetCount = (h.offsetCount + delta) & h.counter.Mask
	h.offset = h.offset.AddScaled(h.scale, delta)

	wall := h.offset.Add(h.boottime)
	elapsed := wall.Sec - h.microtime.Sec
	if elapsed > maxCatchUp {
		elapsed = maxCatchUp
	}
	for ; elapsed > 0; elapsed-- {
		h.adjustment = c.ntpUpdateSecond(active)
	}

	h.microtime = wall.ToTimeval()
	h.nanotime = wall.ToTimespec()

	// ticks of the old counter since its last read are dropped, at most one tick
	if h.counter != active {
		h.counter = active
		h.offsetCount = ncount
	}

	h.scale = computeScale(h.adjustment, h.counter.Frequency)

	th.store(h)
	th.generation.Store(nextGeneration(old.generation.Load()))
	c.current.Store(next)

	c.timeSecond.Store(h.microtime.Sec)
	c.timeUptime.Store(h.offset.Sec)
	c.windups.Add(1)
}
