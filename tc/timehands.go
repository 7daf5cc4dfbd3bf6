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
	"sync/atomic"

	"github.com/facebook/timecounter/bintime"
)

// hands is the plain value of one timehands slot
type hands struct {
	counter     *Counter
	adjustment  int64  // ns/s, Q32.32
	scale       uint64 // fraction of a second per tick, 2^64/frequency when unadjusted
	offsetCount uint64 // counter value at the snapshot, masked
	offset      bintime.BinTime
	boottime    bintime.BinTime
	microtime   bintime.Timeval
	nanotime    bintime.Timespec
}

// delta returns ticks elapsed since the snapshot
func (h *hands) delta() uint64 {
	return (h.counter.Source.Read() - h.offsetCount) & h.counter.Mask
}

// timehands is one ring slot. Every field is a separate atomic word, so a
// reader racing with windup may see a mix of old and new values; the
// generation check tells it to throw such a result away.
// generation 0 means the slot is being written.
type timehands struct {
	counter     atomic.Pointer[Counter]
	adjustment  atomic.Int64
	scale       atomic.Uint64
	offsetCount atomic.Uint64
	offsetSec   atomic.Int64
	offsetFrac  atomic.Uint64
	bootSec     atomic.Int64
	bootFrac    atomic.Uint64
	microSec    atomic.Int64
	microUsec   atomic.Int64
	nanoSec     atomic.Int64
	nanoNsec    atomic.Int64
	generation  atomic.Uint32
}

// load is only meaningful for the writer, or inside read
func (th *timehands) load() hands {
	return hands{
		counter:     th.counter.Load(),
		adjustment:  th.adjustment.Load(),
		scale:       th.scale.Load(),
		offsetCount: th.offsetCount.Load(),
		offset:      th.offset(),
		boottime:    th.boottime(),
		microtime:   th.microtime(),
		nanotime:    th.nanotime(),
	}
}

func (th *timehands) store(h hands) {
	th.counter.Store(h.counter)
	th.adjustment.Store(h.adjustment)
	th.scale.Store(h.scale)
	th.offsetCount.Store(h.offsetCount)
	th.offsetSec.Store(h.offset.Sec)
	th.offsetFrac.Store(h.offset.Frac)
	th.bootSec.Store(h.boottime.Sec)
	th.bootFrac.Store(h.boottime.Frac)
	th.microSec.Store(h.microtime.Sec)
	th.microUsec.Store(h.microtime.Usec)
	th.nanoSec.Store(h.nanotime.Sec)
	th.nanoNsec.Store(h.nanotime.Nsec)
}

func (th *timehands) offset() bintime.BinTime {
	return bintime.BinTime{Sec: th.offsetSec.Load(), Frac: th.offsetFrac.Load()}
}

func (th *timehands) boottime() bintime.BinTime {
	return bintime.BinTime{Sec: th.bootSec.Load(), Frac: th.bootFrac.Load()}
}

func (th *timehands) microtime() bintime.Timeval {
	return bintime.Timeval{Sec: th.microSec.Load(), Usec: th.microUsec.Load()}
}

func (th *timehands) nanotime() bintime.Timespec {
	return bintime.Timespec{Sec: th.nanoSec.Load(), Nsec: th.nanoNsec.Load()}
}

// uptime projects the snapshot forward by the ticks elapsed since it was taken
func (th *timehands) uptime() bintime.BinTime {
	cnt := th.counter.Load()
	delta := (cnt.Source.Read() - th.offsetCount.Load()) & cnt.Mask
	return th.offset().AddScaled(th.scale.Load(), delta)
}

// nextGeneration increments gen, skipping the reserved value 0
func nextGeneration(gen uint32) uint32 {
	gen++
	if gen == 0 {
		gen = 1
	}
	return gen
}
