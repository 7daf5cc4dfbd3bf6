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
	log "github.com/sirupsen/logrus"

	"github.com/facebook/timecounter/bintime"
)

// SetClock steps wall-clock time to ts. Uptime is not affected.
func (c *Clock) SetClock(ts bintime.Timespec) {
	c.mu.Lock()
	defer c.mu.Unlock()

	up := c.Binuptime()
	old := up.Add(c.boottime)
	c.boottime = bintime.FromTimespec(ts).Sub(up)
	c.windup()

	if c.timestepWarnings.Load() {
		log.Infof("Time stepped from %s to %s", old.ToTimespec(), ts.Normalize())
	}
}

// Boottime returns the wall-clock time at which uptime was zero
func (c *Clock) Boottime() bintime.Timespec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boottime.ToTimespec()
}
