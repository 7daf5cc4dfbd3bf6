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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/timecounter/daemon"
)

func main() {
	var (
		cfg     = daemon.DefaultConfig()
		err     error
		cfgPath string
		csvLog  bool
		csvPath string
		verbose bool
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "timecounter daemon\n")
		fmt.Fprintf(flag.CommandLine.Output(), "%s\n\nFlags:\n", daemon.MathHelp)
		flag.PrintDefaults()
	}

	flag.IntVar(&cfg.Hz, "hz", cfg.Hz, "Scheduling tick rate. Windup runs every 'tick' ticks")
	flag.IntVar(&cfg.RingSize, "ringsize", cfg.RingSize, "Number of timehands in the ring")
	flag.StringVar(&cfg.Counter, "counter", "", "Timecounter to use. The best registered one if empty")
	flag.BoolVar(&cfg.MonotonicRaw, "monotonicraw", cfg.MonotonicRaw, "Register CLOCK_MONOTONIC_RAW as a timecounter")
	flag.StringVar(&cfg.PHCDevice, "phc", "", "Register this PTP hardware clock device (e.g. /dev/ptp0) as a timecounter")
	flag.DurationVar(&cfg.Interval, "i", cfg.Interval, "Interval at which we compare the clock with the system clock and discipline it")
	flag.DurationVar(&cfg.StepThreshold, "stepthreshold", cfg.StepThreshold, "Step the clock when the offset is above this value. 0 means never")
	flag.BoolVar(&cfg.TimestepWarnings, "timestepwarnings", false, "Log every time step")
	flag.IntVar(&cfg.MonitoringPort, "monitoringport", cfg.MonitoringPort, "Port to run admin API and JSON stats on. 0 means disabled")
	flag.IntVar(&cfg.MetricsPort, "metricsport", cfg.MetricsPort, "Port to run Prometheus exporter on. 0 means disabled")
	flag.IntVar(&cfg.SampleRingSize, "buffer", cfg.SampleRingSize, "Size of sample ring buffer, must be at least size of largest num of samples used in the uncertainty formula")
	flag.StringVar(&cfg.Math.Uncertainty, "uncertainty", cfg.Math.Uncertainty, "Math expression for uncertainty")

	flag.StringVar(&cfgPath, "cfg", "", "Path to config")
	flag.BoolVar(&csvLog, "csvlog", false, "Log all the samples as CSV to log")
	flag.StringVar(&csvPath, "csvpath", "", "write CSV log into this file")
	flag.BoolVar(&verbose, "verbose", false, "Verbose logging")

	flag.Parse()

	log.SetReportCaller(true)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	if csvPath != "" && !csvLog {
		log.Fatalf("'csvpath' flag requires 'csvlog' flag")
	}
	if cfgPath != "" {
		log.Warningf("using config from %s, flag values are ignored", cfgPath)
		cfg, err = daemon.ReadConfig(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.EvalAndValidate(); err != nil {
		log.Fatal(err)
	}
	log.Debugf("Config: %+v", *cfg)

	// set up sample logging
	w := log.StandardLogger().Writer()
	defer w.Close()
	var l daemon.Logger = daemon.NewDummyLogger(w)
	if csvLog {
		csvW := io.Writer(w)
		if csvPath != "" {
			f, err := os.Create(csvPath)
			if err != nil {
				log.Fatal(err)
			}
			defer f.Close()
			// write both to stderr and file
			csvW = io.MultiWriter(w, f)
		}
		l = daemon.NewCSVLogger(csvW)
	}

	d, err := daemon.New(cfg, daemon.NewStats(), l)
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := d.Run(ctx); err != nil {
		log.Fatal(err)
	}
	log.Info("Shutting down")
}
