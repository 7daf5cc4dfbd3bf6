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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/timecounter/bintime"
	"github.com/facebook/timecounter/tc"
)

// Timecounters is the reply of the timecounters endpoint
type Timecounters struct {
	Hardware  string    `json:"hardware"`
	Frequency uint64    `json:"frequency"` // of the counter backing the published timehands
	Choice    string    `json:"choice"`
	Counters  []tc.Info `json:"counters"`
}

// TickReply is the reply of the tick endpoint
type TickReply struct {
	Hz   int   `json:"hz"`
	Tick int64 `json:"tick"`
}

// FreqReply is the reply of the adjfreq endpoint. POST returns the previous value.
type FreqReply struct {
	PPB float64 `json:"ppb"`
}

// AdjTimeReply is the reply of the adjtime endpoint. POST returns what was pending before.
type AdjTimeReply struct {
	PendingNS int64 `json:"pending_ns"`
}

// WarningsReply is the reply of the timestepwarnings endpoint
type WarningsReply struct {
	Enabled bool `json:"enabled"`
}

// NowReply is the reply of the now endpoint
type NowReply struct {
	Nanotime    string `json:"nanotime"`
	UnixNS      int64  `json:"unix_ns"`
	Nanouptime  string `json:"nanouptime"`
	UptimeNS    int64  `json:"uptime_ns"`
	Boottime    string `json:"boottime"`
	TimeSecond  int64  `json:"time_second"`
	Windups     uint64 `json:"windups"`
	ReadRetries uint64 `json:"read_retries"`
}

// ErrorReply is sent with every non-200 response
type ErrorReply struct {
	Error string `json:"error"`
}

// Admin serves the administrative surface of a Clock over http
type Admin struct {
	clock *tc.Clock
	stats StatsServer
}

// NewAdmin returns Admin for clock. stats are served on / when not nil.
func NewAdmin(clock *tc.Clock, stats StatsServer) *Admin {
	return &Admin{clock: clock, stats: stats}
}

// Handler returns the mux with all admin endpoints
func (a *Admin) Handler() http.Handler {
	mux := http.NewServeMux()
	if a.stats != nil {
		mux.HandleFunc("GET /{$}", a.handleStats)
	}
	mux.HandleFunc("GET /timecounters", a.handleTimecounters)
	mux.HandleFunc("GET /timecounters/hardware", a.handleHardware)
	mux.HandleFunc("POST /timecounters/hardware", a.handleSetHardware)
	mux.HandleFunc("GET /tick", a.handleTick)
	mux.HandleFunc("POST /tick", a.handleSetTick)
	mux.HandleFunc("GET /adjfreq", a.handleAdjFreq)
	mux.HandleFunc("POST /adjfreq", a.handleSetAdjFreq)
	mux.HandleFunc("GET /adjtime", a.handleAdjTime)
	mux.HandleFunc("POST /adjtime", a.handleSetAdjTime)
	mux.HandleFunc("POST /settime", a.handleSetTime)
	mux.HandleFunc("GET /timestepwarnings", a.handleWarnings)
	mux.HandleFunc("POST /timestepwarnings", a.handleSetWarnings)
	mux.HandleFunc("GET /now", a.handleNow)
	return mux
}

func reply(w http.ResponseWriter, code int, v any) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

func replyError(w http.ResponseWriter, code int, err error) {
	reply(w, code, &ErrorReply{Error: err.Error()})
}

func (a *Admin) handleStats(w http.ResponseWriter, _ *http.Request) {
	reply(w, http.StatusOK, a.stats.Get())
}

func (a *Admin) handleTimecounters(w http.ResponseWriter, _ *http.Request) {
	reply(w, http.StatusOK, &Timecounters{
		Hardware:  a.clock.Hardware(),
		Frequency: a.clock.Frequency(),
		Choice:    a.clock.Choice(),
		Counters:  a.clock.Counters(),
	})
}

func (a *Admin) handleHardware(w http.ResponseWriter, r *http.Request) {
	a.handleTimecounters(w, r)
}

func (a *Admin) handleSetHardware(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		replyError(w, http.StatusBadRequest, fmt.Errorf("'name' is required"))
		return
	}
	if err := a.clock.SelectByName(name); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, tc.ErrNotFound) {
			code = http.StatusNotFound
		}
		replyError(w, code, err)
		return
	}
	a.handleTimecounters(w, r)
}

func (a *Admin) handleTick(w http.ResponseWriter, _ *http.Request) {
	reply(w, http.StatusOK, &TickReply{Hz: a.clock.Hz(), Tick: a.clock.Tick()})
}

func (a *Admin) handleSetTick(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseInt(r.URL.Query().Get("n"), 10, 64)
	if err != nil {
		replyError(w, http.StatusBadRequest, fmt.Errorf("parsing 'n': %w", err))
		return
	}
	if err := a.clock.SetTick(n); err != nil {
		replyError(w, http.StatusBadRequest, err)
		return
	}
	a.handleTick(w, r)
}

func (a *Admin) handleAdjFreq(w http.ResponseWriter, _ *http.Request) {
	adj, _ := a.clock.AdjFreq(nil)
	reply(w, http.StatusOK, &FreqReply{PPB: tc.FreqAdjToPPB(adj)})
}

func (a *Admin) handleSetAdjFreq(w http.ResponseWriter, r *http.Request) {
	ppb, err := strconv.ParseFloat(r.URL.Query().Get("ppb"), 64)
	if err != nil {
		replyError(w, http.StatusBadRequest, fmt.Errorf("parsing 'ppb': %w", err))
		return
	}
	adj := tc.PPBToFreqAdj(ppb)
	old, err := a.clock.AdjFreq(&adj)
	if err != nil {
		replyError(w, http.StatusBadRequest, err)
		return
	}
	log.Infof("Frequency adjustment set to %.3f ppb via admin API", ppb)
	reply(w, http.StatusOK, &FreqReply{PPB: tc.FreqAdjToPPB(old)})
}

func (a *Admin) handleAdjTime(w http.ResponseWriter, _ *http.Request) {
	reply(w, http.StatusOK, &AdjTimeReply{PendingNS: int64(a.clock.PendingAdjustment())})
}

func (a *Admin) handleSetAdjTime(w http.ResponseWriter, r *http.Request) {
	delta, err := time.ParseDuration(r.URL.Query().Get("delta"))
	if err != nil {
		replyError(w, http.StatusBadRequest, fmt.Errorf("parsing 'delta': %w", err))
		return
	}
	old := a.clock.AdjustTime(delta)
	reply(w, http.StatusOK, &AdjTimeReply{PendingNS: int64(old)})
}

func (a *Admin) handleSetTime(w http.ResponseWriter, r *http.Request) {
	ns, err := strconv.ParseInt(r.URL.Query().Get("ns"), 10, 64)
	if err != nil {
		replyError(w, http.StatusBadRequest, fmt.Errorf("parsing 'ns': %w", err))
		return
	}
	a.clock.SetClock(bintime.Timespec{Nsec: ns}.Normalize())
	a.handleNow(w, r)
}

func (a *Admin) handleWarnings(w http.ResponseWriter, _ *http.Request) {
	reply(w, http.StatusOK, &WarningsReply{Enabled: a.clock.TimestepWarnings()})
}

func (a *Admin) handleSetWarnings(w http.ResponseWriter, r *http.Request) {
	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		replyError(w, http.StatusBadRequest, fmt.Errorf("parsing 'enabled': %w", err))
		return
	}
	a.clock.SetTimestepWarnings(enabled)
	a.handleWarnings(w, r)
}

func (a *Admin) handleNow(w http.ResponseWriter, _ *http.Request) {
	now := a.clock.Nanotime()
	up := a.clock.Nanouptime()
	reply(w, http.StatusOK, &NowReply{
		Nanotime:    now.String(),
		UnixNS:      int64(now.Duration()),
		Nanouptime:  up.String(),
		UptimeNS:    int64(up.Duration()),
		Boottime:    a.clock.Boottime().String(),
		TimeSecond:  a.clock.TimeSecond(),
		Windups:     a.clock.Windups(),
		ReadRetries: a.clock.ReadRetries(),
	})
}
