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

package daemon

import (
	"container/ring"
	"math"
	"sync"
)

// sample is one discipline measurement
type sample struct {
	offsetNS float64 // local minus reference
	freqPPB  float64 // frequency adjustment applied after the measurement
}

// state of the daemon, guarded by mutex
type daemonState struct {
	sync.Mutex

	samples *ring.Ring // discipline samples
}

func newDaemonState(ringSize int) *daemonState {
	return &daemonState{
		samples: ring.New(ringSize),
	}
}

func (s *daemonState) pushSample(data *sample) {
	s.Lock()
	defer s.Unlock()
	s.samples.Value = data
	s.samples = s.samples.Next()
}

// takeSamples returns up to n samples, newest first
func (s *daemonState) takeSamples(n int) []*sample {
	s.Lock()
	defer s.Unlock()
	result := []*sample{}
	r := s.samples.Prev()
	for j := 0; j < n && j < s.samples.Len(); j++ {
		if r.Value == nil {
			break
		}
		result = append(result, r.Value.(*sample))
		r = r.Prev()
	}
	return result
}

// aggregateSamplesMax returns the largest absolute values over the last n samples
func (s *daemonState) aggregateSamplesMax(n int) *sample {
	d := &sample{}
	for _, v := range s.takeSamples(n) {
		d.offsetNS = math.Max(d.offsetNS, math.Abs(v.offsetNS))
		d.freqPPB = math.Max(d.freqPPB, math.Abs(v.freqPPB))
	}
	return d
}

// clearSamples drops collected samples, they are meaningless after a step
func (s *daemonState) clearSamples() {
	s.Lock()
	defer s.Unlock()
	for i := 0; i < s.samples.Len(); i++ {
		s.samples.Value = nil
		s.samples = s.samples.Next()
	}
}
