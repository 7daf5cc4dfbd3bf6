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
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// MaxSlewPPM is the highest rate at which AdjustTime slews the clock,
// i.e. microseconds consumed from the pending adjustment per second
const MaxSlewPPM = 5000

// MaxFreqAdjPPB bounds the steady-state frequency trim accepted by AdjFreq
const MaxFreqAdjPPB = 500000

// ntpUpdateSecond consumes one second worth of pending adjustment and
// returns the resulting adjustment in ns/s, Q32.32, including the
// steady-state trim of cnt. Called with mu held.
func (c *Clock) ntpUpdateSecond(cnt *Counter) int64 {
	var adj int64
	if c.adjtimeDelta > 0 {
		adj = min(MaxSlewPPM, c.adjtimeDelta)
	} else {
		adj = max(-MaxSlewPPM, c.adjtimeDelta)
	}
	c.adjtimeDelta -= adj
	return (adj*1000)<<32 + cnt.FreqAdj()
}

// AdjustTime sets the pending slew, with microsecond resolution, and returns
// what was still pending. The clock is slewed by at most MaxSlewPPM.
func (c *Clock) AdjustTime(delta time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := time.Duration(c.adjtimeDelta) * time.Microsecond
	c.adjtimeDelta = delta.Microseconds()
	if delta != 0 {
		log.Debugf("Adjusting time by %v, %v was pending", delta, old)
	}
	return old
}

// PendingAdjustment returns the part of the last AdjustTime not yet applied
func (c *Clock) PendingAdjustment() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.adjtimeDelta) * time.Microsecond
}

// AdjFreq returns the frequency trim (ns/s, Q32.32) of the active counter
// and, if newAdj is not nil, replaces it. The next Windup applies it.
// Trims beyond MaxFreqAdjPPB are rejected and leave the counter untouched.
func (c *Clock) AdjFreq(newAdj *int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cnt := c.active.Load()
	old := cnt.FreqAdj()
	if newAdj == nil {
		return old, nil
	}
	if limit := PPBToFreqAdj(MaxFreqAdjPPB); *newAdj > limit || *newAdj < -limit {
		return old, fmt.Errorf("%w: frequency adjustment %.3f ppb is outside of ±%d ppb", ErrInvalidConfig, FreqAdjToPPB(*newAdj), MaxFreqAdjPPB)
	}
	cnt.freqAdj.Store(*newAdj)
	return old, nil
}
