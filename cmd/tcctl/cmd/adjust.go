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

package cmd

import (
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/timecounter/daemon"
)

// flags
var adjFreqSetFlag float64
var tickSetFlag int64

func init() {
	RootCmd.AddCommand(adjFreqCmd)
	adjFreqCmd.Flags().Float64VarP(&adjFreqSetFlag, "set", "s", math.NaN(), "New frequency adjustment in PPB")
	RootCmd.AddCommand(adjTimeCmd)
	RootCmd.AddCommand(tickCmd)
	tickCmd.Flags().Int64VarP(&tickSetFlag, "set", "s", 0, "New number of scheduling ticks between windups")
	RootCmd.AddCommand(warningsCmd)
}

func adjFreqRun(w io.Writer, c *client, ppb float64) error {
	r := &daemon.FreqReply{}
	if err := c.get("/adjfreq", r); err != nil {
		return fmt.Errorf("fetching frequency adjustment: %w", err)
	}
	fmt.Fprintf(w, "frequency adjustment: %.3f ppb\n", r.PPB)
	if math.IsNaN(ppb) {
		return nil
	}
	params := url.Values{"ppb": {strconv.FormatFloat(ppb, 'f', -1, 64)}}
	if err := c.post("/adjfreq", params, r); err != nil {
		return fmt.Errorf("setting frequency adjustment: %w", err)
	}
	fmt.Fprintf(w, "new frequency adjustment: %.3f ppb\n", ppb)
	return nil
}

func adjTimeRun(w io.Writer, c *client, delta string) error {
	r := &daemon.AdjTimeReply{}
	if delta == "" {
		if err := c.get("/adjtime", r); err != nil {
			return fmt.Errorf("fetching pending adjustment: %w", err)
		}
		fmt.Fprintf(w, "pending adjustment: %v\n", time.Duration(r.PendingNS))
		return nil
	}
	d, err := time.ParseDuration(delta)
	if err != nil {
		return fmt.Errorf("parsing delta: %w", err)
	}
	if err := c.post("/adjtime", url.Values{"delta": {d.String()}}, r); err != nil {
		return fmt.Errorf("setting adjustment: %w", err)
	}
	fmt.Fprintf(w, "pending adjustment: %v, was %v\n", d.Truncate(time.Microsecond), time.Duration(r.PendingNS))
	return nil
}

func tickRun(w io.Writer, c *client, n int64) error {
	r := &daemon.TickReply{}
	var err error
	if n == 0 {
		err = c.get("/tick", r)
	} else {
		err = c.post("/tick", url.Values{"n": {strconv.FormatInt(n, 10)}}, r)
	}
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	fmt.Fprintf(w, "hz: %d, windup every %d ticks\n", r.Hz, r.Tick)
	return nil
}

func warningsRun(w io.Writer, c *client, enabled string) error {
	r := &daemon.WarningsReply{}
	var err error
	if enabled == "" {
		err = c.get("/timestepwarnings", r)
	} else {
		var v bool
		if v, err = strconv.ParseBool(enabled); err != nil {
			return fmt.Errorf("parsing %q: %w", enabled, err)
		}
		err = c.post("/timestepwarnings", url.Values{"enabled": {strconv.FormatBool(v)}}, r)
	}
	if err != nil {
		return fmt.Errorf("timestep warnings: %w", err)
	}
	fmt.Fprintf(w, "timestep warnings: %v\n", r.Enabled)
	return nil
}

var adjFreqCmd = &cobra.Command{
	Use:   "adjfreq",
	Short: "Print frequency adjustment of the active timecounter. Use `-set <ppb>` to change it",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := adjFreqRun(os.Stdout, newClient(rootAddressFlag), adjFreqSetFlag); err != nil {
			log.Fatal(err)
		}
	},
}

var adjTimeCmd = &cobra.Command{
	Use:   "adjtime [delta]",
	Short: "Print pending time adjustment. Pass a duration like `-1.5ms` to slew the clock by it",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		delta := ""
		if len(args) > 0 {
			delta = args[0]
		}
		if err := adjTimeRun(os.Stdout, newClient(rootAddressFlag), delta); err != nil {
			log.Fatal(err)
		}
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Print scheduling tick configuration. Use `-set <n>` to change ticks between windups",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := tickRun(os.Stdout, newClient(rootAddressFlag), tickSetFlag); err != nil {
			log.Fatal(err)
		}
	},
}

var warningsCmd = &cobra.Command{
	Use:   "timestepwarnings [true|false]",
	Short: "Print or change whether time steps are logged",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		enabled := ""
		if len(args) > 0 {
			enabled = args[0]
		}
		if err := warningsRun(os.Stdout, newClient(rootAddressFlag), enabled); err != nil {
			log.Fatal(err)
		}
	},
}
