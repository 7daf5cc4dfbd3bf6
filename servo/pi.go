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

package servo

import (
	"math"

	log "github.com/sirupsen/logrus"
)

const (
	freqEstMargin      = 0.001
	maxFreqEstInterval = 1000.0
)

// PI is a proportional-integral servo.
// Offsets are local minus reference in ns, localTs is the local time of the
// sample in ns. The returned frequency is in ppb and has to be negated before
// it is applied to the local clock.
type PI struct {
	cfg Config

	offset [2]int64
	local  [2]uint64
	count  int
	locked bool

	drift    float64
	kp       float64
	ki       float64
	lastFreq float64
}

// NewPI creates a servo starting from freq ppb
func NewPI(cfg Config, freq float64) *PI {
	s := &PI{cfg: cfg, lastFreq: freq, drift: freq}
	s.SyncInterval(1)
	return s
}

// SyncInterval informs the servo about the sampling interval in seconds
func (s *PI) SyncInterval(interval float64) {
	s.kp = s.cfg.KpScale * math.Pow(interval, s.cfg.KpExponent)
	if s.kp > s.cfg.KpNormMax/interval {
		s.kp = s.cfg.KpNormMax / interval
	}
	s.ki = s.cfg.KiScale * math.Pow(interval, s.cfg.KiExponent)
	if s.ki > s.cfg.KiNormMax/interval {
		s.ki = s.cfg.KiNormMax / interval
	}
}

// SetMaxFreq limits the returned frequency to +-freq ppb
func (s *PI) SetMaxFreq(freq float64) {
	s.cfg.MaxFreq = freq
}

// Drift returns the estimated frequency error in ppb
func (s *PI) Drift() float64 {
	return s.drift
}

// LastFreq returns the last frequency Sample returned
func (s *PI) LastFreq() float64 {
	return s.lastFreq
}

// Reset forgets collected samples. The drift estimate is kept.
func (s *PI) Reset() {
	s.count = 0
}

func (s *PI) clamp(ppb float64) float64 {
	return math.Max(-s.cfg.MaxFreq, math.Min(s.cfg.MaxFreq, ppb))
}

func (s *PI) overThreshold(absOffset int64) bool {
	if s.cfg.StepThreshold > 0 && absOffset > s.cfg.StepThreshold {
		return true
	}
	return !s.locked && s.cfg.FirstStepThreshold > 0 && absOffset > s.cfg.FirstStepThreshold
}

// Sample calculates frequency based on the offset
func (s *PI) Sample(offset int64, localTs uint64) (float64, State) {
	state := StateInit
	ppb := s.lastFreq
	absOffset := offset
	if absOffset < 0 {
		absOffset = -absOffset
	}

	switch s.count {
	case 0:
		s.offset[0] = offset
		s.local[0] = localTs
		s.count = 1
	case 1:
		s.offset[1] = offset
		s.local[1] = localTs
		if s.local[0] >= s.local[1] {
			s.count = 0
			break
		}

		localDiff := float64(s.local[1]-s.local[0]) / 1e9
		localDiff += localDiff * freqEstMargin
		if localDiff < math.Min(0.016/s.ki, maxFreqEstInterval) {
			log.Warningf("servo Sample is called too often, not enough time passed since first sample")
			break
		}

		s.drift += (1e9 - s.drift) * float64(s.offset[1]-s.offset[0]) / float64(s.local[1]-s.local[0])
		s.drift = s.clamp(s.drift)

		if s.overThreshold(absOffset) {
			state = StateJump
		} else {
			state = StateLocked
		}
		ppb = s.drift
		s.count = 2
	case 2:
		// the caller steps the clock; drift is estimated again from two fresh samples
		if s.cfg.StepThreshold > 0 && absOffset > s.cfg.StepThreshold {
			s.count = 0
			break
		}
		state = StateLocked
		kiTerm := s.ki * float64(offset)
		ppb = s.kp*float64(offset) + s.drift + kiTerm
		if ppb < -s.cfg.MaxFreq || ppb > s.cfg.MaxFreq {
			ppb = s.clamp(ppb)
		} else {
			s.drift += kiTerm
		}
	}
	if state == StateLocked {
		s.locked = true
	}
	s.lastFreq = ppb
	return ppb, state
}
