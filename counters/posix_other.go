//go:build !linux

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
	"errors"

	"github.com/facebook/timecounter/tc"
)

// Qualities of the counters this package provides
const (
	QualityMonotonicRaw int64 = 1000
	QualityPHC          int64 = 800
)

// ClockRealtime is the system wall clock
const ClockRealtime int32 = 0

// ErrUnsupported is returned on platforms without POSIX clock counters
var ErrUnsupported = errors.New("POSIX clock counters are only supported on linux")

// POSIXClock is not available on this platform
type POSIXClock struct{}

// MonotonicRaw is not available on this platform
func MonotonicRaw() (*POSIXClock, error) {
	return nil, ErrUnsupported
}

// Read implements tc.Source
func (p *POSIXClock) Read() uint64 {
	return 0
}

// Counter describes p for registration
func (p *POSIXClock) Counter(name string, quality int64) *tc.Counter {
	return nil
}

// PHC is not available on this platform
type PHC struct {
	*POSIXClock
}

// OpenPHC is not available on this platform
func OpenPHC(_ string) (*PHC, error) {
	return nil, ErrUnsupported
}

// Close implements io.Closer
func (p *PHC) Close() error {
	return nil
}

// FrequencyPPB is not available on this platform
func FrequencyPPB(_ int32) (float64, error) {
	return 0, ErrUnsupported
}
