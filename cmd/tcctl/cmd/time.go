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
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/timecounter/daemon"
)

func init() {
	RootCmd.AddCommand(nowCmd)
	RootCmd.AddCommand(setTimeCmd)
	RootCmd.AddCommand(statsCmd)
}

func printNow(w io.Writer, r *daemon.NowReply) {
	fmt.Fprintf(w, "nanotime:    %s (%v)\n", r.Nanotime, time.Unix(0, r.UnixNS).UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "nanouptime:  %s (%v)\n", r.Nanouptime, time.Duration(r.UptimeNS))
	fmt.Fprintf(w, "boottime:    %s\n", r.Boottime)
	fmt.Fprintf(w, "time_second: %d\n", r.TimeSecond)
	fmt.Fprintf(w, "windups:     %d\n", r.Windups)
	fmt.Fprintf(w, "retries:     %d\n", r.ReadRetries)
}

func nowRun(w io.Writer, c *client) error {
	r := &daemon.NowReply{}
	if err := c.get("/now", r); err != nil {
		return fmt.Errorf("fetching time: %w", err)
	}
	printNow(w, r)
	return nil
}

func setTimeRun(w io.Writer, c *client, value string) error {
	var t time.Time
	if value == "now" {
		t = time.Now()
	} else {
		var err error
		if t, err = time.Parse(time.RFC3339Nano, value); err != nil {
			return fmt.Errorf("parsing time: %w", err)
		}
	}
	r := &daemon.NowReply{}
	if err := c.post("/settime", url.Values{"ns": {strconv.FormatInt(t.UnixNano(), 10)}}, r); err != nil {
		return fmt.Errorf("setting time: %w", err)
	}
	printNow(w, r)
	return nil
}

func statsRun(w io.Writer, c *client) error {
	r := map[string]int64{}
	if err := c.get("/", &r); err != nil {
		return fmt.Errorf("fetching stats: %w", err)
	}
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.Header("stat", "value")
	for _, k := range keys {
		if err := table.Append([]string{k, fmt.Sprintf("%d", r[k])}); err != nil {
			return err
		}
	}
	return table.Render()
}

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Print current time of the timecounter clock",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := nowRun(os.Stdout, newClient(rootAddressFlag)); err != nil {
			log.Fatal(err)
		}
	},
}

var setTimeCmd = &cobra.Command{
	Use:   "settime <RFC3339|now>",
	Short: "Step the timecounter clock to given time",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		if err := setTimeRun(os.Stdout, newClient(rootAddressFlag), args[0]); err != nil {
			log.Fatal(err)
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print daemon stats",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := statsRun(os.Stdout, newClient(rootAddressFlag)); err != nil {
			log.Fatal(err)
		}
	},
}
