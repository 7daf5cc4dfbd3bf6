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

/*
Package bintime implements a fixed-point time value made of signed whole
seconds and an unsigned 64-bit binary fraction of a second.

A BinTime has a resolution of 1/2^64 s (about 54 zeptoseconds), which makes
it suitable as the accumulator for counter based clocks: a tick count
multiplied by a per-tick scale factor can be added into it without losing
precision. Conversions to microsecond and nanosecond resolution always
truncate, so a converted value is never later than the instant it came from.
*/
package bintime

import (
	"fmt"
	"math/bits"
	"time"
)

const (
	nsPerSec = uint64(time.Second / time.Nanosecond)
	usPerSec = uint64(time.Second / time.Microsecond)
)

// BinTime is seconds plus a binary fraction of a second.
// Frac is always interpreted as an unsigned count of 1/2^64 s.
type BinTime struct {
	Sec  int64
	Frac uint64
}

// Timeval is a time value with microsecond resolution. Usec is in [0, 1e6).
type Timeval struct {
	Sec  int64
	Usec int64
}

// Timespec is a time value with nanosecond resolution. Nsec is in [0, 1e9).
type Timespec struct {
	Sec  int64
	Nsec int64
}

// Add returns a+b, carrying fraction overflow into seconds
func (bt BinTime) Add(o BinTime) BinTime {
	frac, carry := bits.Add64(bt.Frac, o.Frac, 0)
	return BinTime{Sec: bt.Sec + o.Sec + int64(carry), Frac: frac}
}

// Sub returns a-b, borrowing from seconds on fraction underflow
func (bt BinTime) Sub(o BinTime) BinTime {
	frac, borrow := bits.Sub64(bt.Frac, o.Frac, 0)
	return BinTime{Sec: bt.Sec - o.Sec - int64(borrow), Frac: frac}
}

// AddFrac adds x/2^64 seconds
func (bt BinTime) AddFrac(x uint64) BinTime {
	frac, carry := bits.Add64(bt.Frac, x, 0)
	return BinTime{Sec: bt.Sec + int64(carry), Frac: frac}
}

// AddScaled adds scale*ticks, where scale is a fraction of a second per tick.
// The full 128-bit product is used: the low word lands in Frac and the high
// word is whole seconds.
func (bt BinTime) AddScaled(scale, ticks uint64) BinTime {
	hi, lo := bits.Mul64(scale, ticks)
	frac, carry := bits.Add64(bt.Frac, lo, 0)
	return BinTime{Sec: bt.Sec + int64(hi) + int64(carry), Frac: frac}
}

// Compare returns -1, 0 or +1 depending on whether bt is before, equal to or after o
func (bt BinTime) Compare(o BinTime) int {
	switch {
	case bt.Sec < o.Sec:
		return -1
	case bt.Sec > o.Sec:
		return 1
	case bt.Frac < o.Frac:
		return -1
	case bt.Frac > o.Frac:
		return 1
	}
	return 0
}

// Before reports whether bt is earlier than o
func (bt BinTime) Before(o BinTime) bool { return bt.Compare(o) < 0 }

// After reports whether bt is later than o
func (bt BinTime) After(o BinTime) bool { return bt.Compare(o) > 0 }

// Equal reports whether bt and o are the same instant
func (bt BinTime) Equal(o BinTime) bool { return bt == o }

// ToTimespec truncates bt to nanosecond resolution
func (bt BinTime) ToTimespec() Timespec {
	ns, _ := bits.Mul64(nsPerSec, bt.Frac)
	return Timespec{Sec: bt.Sec, Nsec: int64(ns)}
}

// ToTimeval truncates bt to microsecond resolution
func (bt BinTime) ToTimeval() Timeval {
	us, _ := bits.Mul64(usPerSec, bt.Frac)
	return Timeval{Sec: bt.Sec, Usec: int64(us)}
}

// fracOf returns ceil(n * 2^64 / unit) for 0 <= n < unit.
// Rounding up keeps the unit value stable across a round trip.
func fracOf(n, unit uint64) uint64 {
	q, r := bits.Div64(n, 0, unit)
	if r != 0 {
		q++
	}
	return q
}

// FromTimespec converts ts to a BinTime. ts is normalized first.
// The fraction is rounded up, so the result may be up to 2^-64 s after ts;
// ToTimespec truncates and returns ts.
func FromTimespec(ts Timespec) BinTime {
	ts = ts.Normalize()
	return BinTime{Sec: ts.Sec, Frac: fracOf(uint64(ts.Nsec), nsPerSec)}
}

// FromTimeval converts tv to a BinTime. tv is normalized first.
// The fraction is rounded up, so the result may be up to 2^-64 s after tv;
// ToTimeval truncates and returns tv.
func FromTimeval(tv Timeval) BinTime {
	tv = tv.Normalize()
	return BinTime{Sec: tv.Sec, Frac: fracOf(uint64(tv.Usec), usPerSec)}
}

// FromDuration converts a signed duration to a BinTime
func FromDuration(d time.Duration) BinTime {
	return FromTimespec(Timespec{Sec: 0, Nsec: int64(d)})
}

// FromTime converts t to a BinTime counted from the Unix epoch
func FromTime(t time.Time) BinTime {
	return FromTimespec(Timespec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())})
}

// Duration truncates bt to a time.Duration. Values out of the Duration range saturate.
func (bt BinTime) Duration() time.Duration {
	return bt.ToTimespec().Duration()
}

// Time converts bt, counted from the Unix epoch, to time.Time
func (bt BinTime) Time() time.Time {
	ts := bt.ToTimespec()
	return time.Unix(ts.Sec, ts.Nsec)
}

func (bt BinTime) String() string {
	ts := bt.ToTimespec()
	return ts.String()
}

// Normalize moves out of range nanoseconds into seconds
func (ts Timespec) Normalize() Timespec {
	ts.Sec += ts.Nsec / int64(nsPerSec)
	ts.Nsec %= int64(nsPerSec)
	if ts.Nsec < 0 {
		ts.Sec--
		ts.Nsec += int64(nsPerSec)
	}
	return ts
}

// Duration converts ts to a time.Duration, saturating on overflow
func (ts Timespec) Duration() time.Duration {
	const maxSec = int64(1<<63-1) / int64(nsPerSec)
	ts = ts.Normalize()
	switch {
	case ts.Sec >= maxSec:
		return time.Duration(1<<63 - 1)
	case ts.Sec < -maxSec:
		return time.Duration(-1 << 63)
	}
	return time.Duration(ts.Sec)*time.Second + time.Duration(ts.Nsec)
}

// Time converts ts, counted from the Unix epoch, to time.Time
func (ts Timespec) Time() time.Time {
	return time.Unix(ts.Sec, ts.Nsec)
}

// Before reports whether ts is earlier than o
func (ts Timespec) Before(o Timespec) bool {
	if ts.Sec == o.Sec {
		return ts.Nsec < o.Nsec
	}
	return ts.Sec < o.Sec
}

func (ts Timespec) String() string {
	return fmt.Sprintf("%d.%09d", ts.Sec, ts.Nsec)
}

// Normalize moves out of range microseconds into seconds
func (tv Timeval) Normalize() Timeval {
	tv.Sec += tv.Usec / int64(usPerSec)
	tv.Usec %= int64(usPerSec)
	if tv.Usec < 0 {
		tv.Sec--
		tv.Usec += int64(usPerSec)
	}
	return tv
}

// Before reports whether tv is earlier than o
func (tv Timeval) Before(o Timeval) bool {
	if tv.Sec == o.Sec {
		return tv.Usec < o.Usec
	}
	return tv.Sec < o.Sec
}

func (tv Timeval) String() string {
	return fmt.Sprintf("%d.%06d", tv.Sec, tv.Usec)
}
