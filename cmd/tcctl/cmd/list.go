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
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/timecounter/daemon"
	"github.com/facebook/timecounter/tc"
)

func init() {
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(chooseCmd)
}

func printTimecounters(w io.Writer, r *daemon.Timecounters) error {
	fmt.Fprintf(w, "hardware: %s (%d Hz)\n", r.Hardware, r.Frequency)
	fmt.Fprintf(w, "choice: %s\n", r.Choice)

	table := tablewriter.NewWriter(w)
	table.Header("active", "name", "frequency", "mask", "quality")
	for _, c := range r.Counters {
		name := c.Name
		quality := fmt.Sprintf("%d", c.Quality)
		if c.Active {
			name = color.GreenString("%s", c.Name)
		}
		if c.Quality <= tc.QualityInsufficient {
			quality = color.RedString("%d", c.Quality)
		}
		err := table.Append([]string{
			fmt.Sprintf("%v", c.Active),
			name,
			fmt.Sprintf("%d", c.Frequency),
			fmt.Sprintf("0x%x", c.Mask),
			quality,
		})
		if err != nil {
			return err
		}
	}
	return table.Render()
}

func listRun(w io.Writer, c *client) error {
	r := &daemon.Timecounters{}
	if err := c.get("/timecounters", r); err != nil {
		return fmt.Errorf("fetching timecounters: %w", err)
	}
	return printTimecounters(w, r)
}

func chooseRun(w io.Writer, c *client, name string) error {
	r := &daemon.Timecounters{}
	if err := c.post("/timecounters/hardware", map[string][]string{"name": {name}}, r); err != nil {
		return fmt.Errorf("choosing timecounter %q: %w", name, err)
	}
	return printTimecounters(w, r)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print registered timecounters",
	Long:  "Print registered timecounters, the active one is highlighted. Like `sysctl kern.timecounter`.",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := listRun(os.Stdout, newClient(rootAddressFlag)); err != nil {
			log.Fatal(err)
		}
	},
}

var chooseCmd = &cobra.Command{
	Use:   "choose <name>",
	Short: "Select timecounter by name",
	Long:  "Select timecounter by name. The published time switches to it on the next windup.",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		if err := chooseRun(os.Stdout, newClient(rootAddressFlag), args[0]); err != nil {
			log.Fatal(err)
		}
	},
}
