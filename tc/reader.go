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
	"time"

	"github.com/facebook/timecounter/bintime"
)

// tryRead extracts a value from th. ok is false if windup was writing th
// at any point during the extraction.
func tryRead[T any](th *timehands, extract func(*timehands) T) (v T, ok bool) {
	gen := th.generation.Load()
	v = extract(th)
	return v, gen != 0 && gen == th.generation.Load()
}

// read retries tryRead against the published timehands until it succeeds
func read[T any](c *Clock, extract func(*timehands) T) T {
	for {
		if v, ok := tryRead(&c.ring[c.current.Load()], extract); ok {
			return v
		}
		c.retries.Add(1)
	}
}

func uptime(th *timehands) bintime.BinTime {
	return th.uptime()
}

func walltime(th *timehands) bintime.BinTime {
	return th.uptime().Add(th.boottime())
}

func cachedUptime(th *timehands) bintime.BinTime {
	return th.offset()
}

func cachedWalltime(th *timehands) bintime.BinTime {
	return th.offset().Add(th.boottime())
}

func cachedNanotime(th *timehands) bintime.Timespec {
	return th.nanotime()
}

func cachedMicrotime(th *timehands) bintime.Timeval {
	return th.microtime()
}

// Binuptime returns time since boot
func (c *Clock) Binuptime() bintime.BinTime {
	return read(c, uptime)
}

// Nanouptime returns time since boot with nanosecond resolution
func (c *Clock) Nanouptime() bintime.Timespec {
	return c.Binuptime().ToTimespec()
}

// Microuptime returns time since boot with microsecond resolution
func (c *Clock) Microuptime() bintime.Timeval {
	return c.Binuptime().ToTimeval()
}

// Bintime returns wall-clock time
func (c *Clock) Bintime() bintime.BinTime {
	return read(c, walltime)
}

// Nanotime returns wall-clock time with nanosecond resolution
func (c *Clock) Nanotime() bintime.Timespec {
	return c.Bintime().ToTimespec()
}

// Microtime returns wall-clock time with microsecond resolution
func (c *Clock) Microtime() bintime.Timeval {
	return c.Bintime().ToTimeval()
}

// Now returns wall-clock time as time.Time
func (c *Clock) Now() time.Time {
	return c.Nanotime().Time()
}

// GetBinuptime returns uptime as of the last Windup, without reading the counter
func (c *Clock) GetBinuptime() bintime.BinTime {
	return read(c, cachedUptime)
}

// GetNanouptime returns uptime as of the last Windup, without reading the counter
func (c *Clock) GetNanouptime() bintime.Timespec {
	return c.GetBinuptime().ToTimespec()
}

// GetMicrouptime returns uptime as of the last Windup, without reading the counter
func (c *Clock) GetMicrouptime() bintime.Timeval {
	return c.GetBinuptime().ToTimeval()
}

// GetBintime returns wall-clock time as of the last Windup, without reading the counter
func (c *Clock) GetBintime() bintime.BinTime {
	return read(c, cachedWalltime)
}

// GetNanotime returns wall-clock time as of the last Windup, without reading the counter
func (c *Clock) GetNanotime() bintime.Timespec {
	return read(c, cachedNanotime)
}

// GetMicrotime returns wall-clock time as of the last Windup, without reading the counter
func (c *Clock) GetMicrotime() bintime.Timeval {
	return read(c, cachedMicrotime)
}
