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
Package counters implements tc.Source for the counters a userspace process can reach.

Manual is a software counter moved by its owner, for simulations and tests.
POSIXClock exposes a POSIX clock (CLOCK_MONOTONIC_RAW, or a PTP hardware clock
opened with OpenPHC) as a 1GHz, 64-bit counter.
*/
package counters
