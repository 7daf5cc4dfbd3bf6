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

package counters

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/facebook/timecounter/tc"
)

// Qualities of the counters this package provides
const (
	QualityMonotonicRaw int64 = 1000
	QualityPHC          int64 = 800
)

// ClockRealtime is the system wall clock
const ClockRealtime int32 = unix.CLOCK_REALTIME

// POSIXFrequency is the rate of every POSIX clock: one tick per nanosecond
const POSIXFrequency = 1000000000

// PPBToTimexPPM converts ppb to the scaled ppm of struct timex.
// man clock_adjtime(2): freq is ppm with a 16-bit fractional part.
const PPBToTimexPPM = 65.536

// POSIXClock reads a POSIX clock as nanoseconds
type POSIXClock struct {
	id   int32
	last atomic.Uint64
}

// NewPOSIXClock returns a POSIXClock reading clockid, failing if it can't be read
func NewPOSIXClock(clockid int32) (*POSIXClock, error) {
	p := &POSIXClock{id: clockid}
	var ts unix.Timespec
	if err := unix.ClockGettime(clockid, &ts); err != nil {
		return nil, fmt.Errorf("reading clock %d: %w", clockid, err)
	}
	p.last.Store(uint64(ts.Nano()))
	return p, nil
}

// MonotonicRaw returns a POSIXClock on CLOCK_MONOTONIC_RAW
func MonotonicRaw() (*POSIXClock, error) {
	return NewPOSIXClock(unix.CLOCK_MONOTONIC_RAW)
}

// Read implements tc.Source. If the clock can't be read the last value is returned.
func (p *POSIXClock) Read() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(p.id, &ts); err != nil {
		return p.last.Load()
	}
	v := uint64(ts.Nano())
	p.last.Store(v)
	return v
}

// ClockID returns the POSIX clock id
func (p *POSIXClock) ClockID() int32 {
	return p.id
}

// Counter describes p for registration
func (p *POSIXClock) Counter(name string, quality int64) *tc.Counter {
	return &tc.Counter{
		Name:      name,
		Source:    p,
		Mask:      math.MaxUint64,
		Frequency: POSIXFrequency,
		Quality:   quality,
	}
}

// FDToClockID converts an open PHC device descriptor to a dynamic POSIX clock id
// as per FD_TO_CLOCKID in linux/posix-timers.h
func FDToClockID(fd uintptr) int32 {
	return int32((int(^fd) << 3) | 3)
}

// PHC is a PTP hardware clock used as a counter
type PHC struct {
	*POSIXClock
	f *os.File
}

// OpenPHC opens a PTP hardware clock such as /dev/ptp0
func OpenPHC(path string) (*PHC, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening PHC device %s: %w", path, err)
	}
	p, err := NewPOSIXClock(FDToClockID(f.Fd()))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &PHC{POSIXClock: p, f: f}, nil
}

// Close releases the device
func (p *PHC) Close() error {
	return p.f.Close()
}

// FrequencyPPB reads the frequency the kernel applies to clockid, in PPB
func FrequencyPPB(clockid int32) (float64, error) {
	tx := &unix.Timex{}
	if _, err := unix.ClockAdjtime(clockid, tx); err != nil {
		return 0, err
	}
	// man(2) clock_adjtime
	return float64(tx.Freq) / PPBToTimexPPM, nil
}
