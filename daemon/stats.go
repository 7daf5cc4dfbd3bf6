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
	"sync"
	"sync/atomic"
)

// StatsServer is a stats server interface
type StatsServer interface {
	// Reset atomically sets all the counters to 0
	Reset()
	SetCounter(key string, val int64)
	UpdateCounterBy(key string, count int64)
	Get() map[string]int64
}

// Stats is an in-memory implementation of StatsServer.
// Keys are created once, after that updates don't take the write lock.
type Stats struct {
	mux      sync.RWMutex
	counters map[string]*atomic.Int64
}

// NewStats created new instance of Stats
func NewStats() *Stats {
	return &Stats{
		counters: map[string]*atomic.Int64{},
	}
}

func (s *Stats) counter(key string) *atomic.Int64 {
	s.mux.RLock()
	c, ok := s.counters[key]
	s.mux.RUnlock()
	if ok {
		return c
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if c, ok = s.counters[key]; !ok {
		c = &atomic.Int64{}
		s.counters[key] = c
	}
	return c
}

// UpdateCounterBy will increment counter
func (s *Stats) UpdateCounterBy(key string, count int64) {
	s.counter(key).Add(count)
}

// SetCounter will set a counter to the provided value.
func (s *Stats) SetCounter(key string, val int64) {
	s.counter(key).Store(val)
}

// Get returns an map of counters
func (s *Stats) Get() map[string]int64 {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ret := make(map[string]int64, len(s.counters))
	for key, c := range s.counters {
		ret[key] = c.Load()
	}
	return ret
}

// Reset all the values of counters
func (s *Stats) Reset() {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, c := range s.counters {
		c.Store(0)
	}
}
