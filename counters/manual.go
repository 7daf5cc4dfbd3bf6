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
	"sync/atomic"

	"github.com/facebook/timecounter/tc"
)

// Manual is a counter that only moves when told to.
// Reads are masked, so it wraps like hardware of the same width.
type Manual struct {
	v    atomic.Uint64
	mask uint64
}

// NewManual returns a Manual counter wrapping at mask
func NewManual(mask uint64) *Manual {
	return &Manual{mask: mask}
}

// Read implements tc.Source
func (m *Manual) Read() uint64 {
	return m.v.Load() & m.mask
}

// Advance moves the counter forward by ticks
func (m *Manual) Advance(ticks uint64) {
	m.v.Add(ticks)
}

// Set moves the counter to v
func (m *Manual) Set(v uint64) {
	m.v.Store(v)
}

// Counter describes m for registration
func (m *Manual) Counter(name string, frequency uint64, quality int64) *tc.Counter {
	return &tc.Counter{
		Name:      name,
		Source:    m,
		Mask:      m.mask,
		Frequency: frequency,
		Quality:   quality,
	}
}
