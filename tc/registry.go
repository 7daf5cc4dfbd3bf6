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
	"strings"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when no registered counter has the requested name
	ErrNotFound = errors.New("no such timecounter")
	// ErrInvalidCounter is returned when a counter description cannot be used
	ErrInvalidCounter = errors.New("invalid timecounter")
)

// Info is a read-only description of a registered counter
type Info struct {
	Name      string `json:"name"`
	Frequency uint64 `json:"frequency"`
	Mask      uint64 `json:"mask"`
	Quality   int64  `json:"quality"`
	Active    bool   `json:"active"`
}

func validate(c *Counter) error {
	if c.Source == nil {
		return fmt.Errorf("%w %q: no source", ErrInvalidCounter, c.Name)
	}
	if c.Frequency == 0 {
		return fmt.Errorf("%w %q: frequency must be positive", ErrInvalidCounter, c.Name)
	}
	if c.Mask == 0 || c.Mask&(c.Mask+1) != 0 {
		return fmt.Errorf("%w %q: mask %#x is not a power of two minus one", ErrInvalidCounter, c.Name, c.Mask)
	}
	return nil
}

// minServiceRate is how many times per second windup must run so that c
// never wraps twice between windups, with a 10% margin
func minServiceRate(c *Counter) uint64 {
	u := c.Frequency / c.Mask
	return u + u/10
}

// Register adds c to the registry.
// A counter that would wrap faster than windup runs is kept with its quality
// pinned to QualityInsufficient. If c is better than the active counter it
// becomes active; the published timehands switch to it on the next Windup.
func (c *Clock) Register(cnt *Counter) error {
	if err := validate(cnt); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.counters; e != nil; e = e.next {
		if e == cnt {
			return fmt.Errorf("%w %q: already registered", ErrInvalidCounter, cnt.Name)
		}
	}

	rate := c.windupRate()
	if u := minServiceRate(cnt); u > rate && cnt.Quality > QualityInsufficient {
		log.Warningf("Timecounter %q frequency %d Hz -- Insufficient hz, needs at least %d", cnt.Name, cnt.Frequency, u)
		cnt.Quality = QualityInsufficient
	} else {
		log.Infof("Timecounter %q frequency %d Hz quality %d", cnt.Name, cnt.Frequency, cnt.Quality)
	}

	cnt.next = c.counters
	c.counters = cnt

	if !cnt.betterThan(c.active.Load()) {
		return nil
	}
	cnt.warmUp()
	c.active.Store(cnt)
	return nil
}

// SelectByName makes the registered counter with the given name active
func (c *Clock) SelectByName(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.counters; e != nil; e = e.next {
		if e.Name != name {
			continue
		}
		e.warmUp()
		c.active.Store(e)
		log.Infof("Timecounter %q selected", name)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Hardware returns the name of the active counter
func (c *Clock) Hardware() string {
	return c.active.Load().Name
}

// Counters lists registered counters, most recently registered first
func (c *Clock) Counters() []Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.active.Load()
	res := []Info{}
	for e := c.counters; e != nil; e = e.next {
		res = append(res, Info{
			Name:      e.Name,
			Frequency: e.Frequency,
			Mask:      e.Mask,
			Quality:   e.Quality,
			Active:    e == active,
		})
	}
	return res
}

// Choice returns the registered counters as "name(quality)" separated by spaces
func (c *Clock) Choice() string {
	var b strings.Builder
	for i, info := range c.Counters() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s(%d)", info.Name, info.Quality)
	}
	return b.String()
}

// Frequency returns the frequency of the counter backing the published
// timehands. It lags Hardware until the next Windup after a switch.
func (c *Clock) Frequency() uint64 {
	return read(c, func(th *timehands) uint64 {
		return th.counter.Load().Frequency
	})
}
