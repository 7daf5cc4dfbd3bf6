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

/*
Package tc turns free-running hardware counters into monotonic uptime and
wall-clock time that can be read without locks.

A Clock keeps a registry of Counters and a small ring of timehands. Each
timehands is a snapshot of the clock state: which counter it is based on, the
counter value and uptime at the snapshot, and the fixed-point scale that turns
elapsed counter ticks into time. Windup, driven periodically by a tick source
(see TickTock), writes the next ring slot and publishes it with a single
atomic store.

Readers never block:
  - load the published slot and its generation
  - extract what they need
  - retry if the generation was 0 (slot being written) or changed meanwhile

Administrative operations are:
  - Register and SelectByName to manage counters
  - AdjFreq to trim the steady-state frequency of the active counter
  - AdjustTime to slew the clock by at most 5000ppm
  - SetClock to step wall-clock time without touching uptime
*/
package tc
