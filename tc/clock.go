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
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/timecounter/bintime"
)

// defaults
const (
	DefaultHz       = 1000
	DefaultRingSize = 10
	minRingSize     = 2
	maxRingSize     = 1 << 16
)

// ErrInvalidConfig is returned by New and SetTick for unusable parameters
var ErrInvalidConfig = errors.New("invalid clock config")

// Config holds Clock parameters
type Config struct {
	Hz               int  // rate of the external scheduling tick calling TickTock
	RingSize         int  // number of timehands, at least 2
	TimestepWarnings bool // log every SetClock
}

// Clock is the process-wide timekeeping context.
//
// Windup and the administrative methods are serialized by an internal mutex.
// Readers never take it.
type Clock struct {
	mu sync.Mutex

	hz    int
	tick  atomic.Int64 // windup runs every tick-th TickTock
	ticks atomic.Int64

	timestepWarnings atomic.Bool

	counters *Counter // registry, guarded by mu
	active   atomic.Pointer[Counter]

	ring    []timehands
	current atomic.Uint32 // index of the published slot

	boottime     bintime.BinTime // guarded by mu
	adjtimeDelta int64           // pending adjustment in us, guarded by mu

	timeSecond atomic.Int64
	timeUptime atomic.Int64

	windups atomic.Uint64
	retries atomic.Uint64
}

// tickFor returns how many scheduling ticks pass between windups for the given hz,
// aiming at roughly one windup per millisecond
func tickFor(hz int) int64 {
	if hz > 1000 {
		return int64((hz + 500) / 1000)
	}
	return 1
}

// New returns a Clock running on the bootstrap counter
func New(cfg Config) (*Clock, error) {
	if cfg.Hz == 0 {
		cfg.Hz = DefaultHz
	}
	if cfg.RingSize == 0 {
		cfg.RingSize = DefaultRingSize
	}
	if cfg.Hz < 0 {
		return nil, fmt.Errorf("%w: hz %d must be positive", ErrInvalidConfig, cfg.Hz)
	}
	if cfg.RingSize < minRingSize || cfg.RingSize > maxRingSize {
		return nil, fmt.Errorf("%w: ring size %d must be in [%d, %d]", ErrInvalidConfig, cfg.RingSize, minRingSize, maxRingSize)
	}

	dummy := newDummyCounter()
	c := &Clock{
		hz:   cfg.Hz,
		ring: make([]timehands, cfg.RingSize),
	}
	c.tick.Store(tickFor(cfg.Hz))
	c.timestepWarnings.Store(cfg.TimestepWarnings)
	c.active.Store(dummy)

	c.ring[0].store(hands{
		counter: dummy,
		scale:   math.MaxUint64 / dummy.Frequency,
		offset:  bintime.BinTime{Sec: 1},
	})
	c.ring[0].generation.Store(1)
	c.timeUptime.Store(1)

	dummy.warmUp()
	return c, nil
}

// Hz returns the configured scheduling tick rate
func (c *Clock) Hz() int {
	return c.hz
}

// Tick returns how many TickTock calls trigger one Windup
func (c *Clock) Tick() int64 {
	return c.tick.Load()
}

// SetTick changes how many TickTock calls trigger one Windup
func (c *Clock) SetTick(n int64) error {
	if n < 1 {
		return fmt.Errorf("%w: tick %d must be positive", ErrInvalidConfig, n)
	}
	c.tick.Store(n)
	log.Infof("Timecounters tick every %d scheduling ticks", n)
	return nil
}

// windupRate is how many windups per second the configured tick rate produces
func (c *Clock) windupRate() uint64 {
	return uint64(int64(c.hz) / c.tick.Load())
}

// TickTock is called by the scheduling tick. Every Tick() calls it runs Windup.
func (c *Clock) TickTock() {
	if c.ticks.Add(1) < c.tick.Load() {
		return
	}
	c.ticks.Store(0)
	c.Windup()
}

// TimestepWarnings reports whether SetClock logs each step
func (c *Clock) TimestepWarnings() bool {
	return c.timestepWarnings.Load()
}

// SetTimestepWarnings enables or disables logging of SetClock steps
func (c *Clock) SetTimestepWarnings(enabled bool) {
	c.timestepWarnings.Store(enabled)
}

// TimeSecond is the wall-clock second as of the last Windup
func (c *Clock) TimeSecond() int64 {
	return c.timeSecond.Load()
}

// TimeUptime is the uptime second as of the last Windup
func (c *Clock) TimeUptime() int64 {
	return c.timeUptime.Load()
}

// Windups returns the number of completed windups
func (c *Clock) Windups() uint64 {
	return c.windups.Load()
}

// ReadRetries returns how many times a reader had to retry because windup was in progress
func (c *Clock) ReadRetries() uint64 {
	return c.retries.Load()
}
