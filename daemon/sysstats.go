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
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// SysStats collects resource usage of the daemon process
type SysStats struct {
	start    time.Time
	proc     *process.Process
	memstats *runtime.MemStats
}

// NewSysStats returns SysStats for the current process
func NewSysStats() (*SysStats, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &SysStats{start: time.Now(), proc: proc}, nil
}

// setRate is a helper function to make a crude rate/diff
func setRate(name string, counts map[string]int64, cur, prev uint64, interval time.Duration) {
	secs := int64(interval.Seconds())
	if prev > cur || secs == 0 {
		return
	}
	counts[fmt.Sprintf("%s.sum.%d", name, secs)] = int64(cur - prev)
	counts[fmt.Sprintf("%s.rate.%d", name, secs)] = int64(cur-prev) / secs
}

// Collect gathers process and go runtime stats, interval is the time since the previous call
func (s *SysStats) Collect(interval time.Duration) map[string]int64 {
	stats := map[string]int64{
		"process.uptime": int64(time.Since(s.start).Seconds()),
	}

	if val, err := s.proc.Percent(0); err == nil {
		stats["process.cpu_pct"] = int64(val * 100)
	}
	if val, err := s.proc.MemoryInfo(); err == nil {
		stats["process.rss"] = int64(val.RSS)
		stats["process.vms"] = int64(val.VMS)
	}
	if val, err := s.proc.NumFDs(); err == nil {
		stats["process.num_fds"] = int64(val)
	}
	if val, err := s.proc.NumThreads(); err == nil {
		stats["process.num_threads"] = int64(val)
	}

	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)
	stats["runtime.cpu.goroutines"] = int64(runtime.NumGoroutine())
	stats["runtime.mem.heap.alloc"] = int64(m.HeapAlloc)
	stats["runtime.mem.heap.objects"] = int64(m.HeapObjects)
	stats["runtime.mem.gc.count"] = int64(m.NumGC)
	stats["runtime.mem.gc.pause_total"] = int64(m.PauseTotalNs)
	if s.memstats != nil {
		setRate("runtime.mem.mallocs", stats, m.Mallocs, s.memstats.Mallocs, interval)
		setRate("runtime.gc.count", stats, uint64(m.NumGC), uint64(s.memstats.NumGC), interval)
	}
	s.memstats = m
	return stats
}
