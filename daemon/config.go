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
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/timecounter/tc"
)

// maxHz keeps the tick ticker period above a microsecond
const maxHz = 1000000

// Config represents configuration we expect to read from file
type Config struct {
	Hz               int           // scheduling tick rate, windup runs every tc tick of these
	RingSize         int           // number of timehands
	Counter          string        // counter to select, the best registered one if empty
	MonotonicRaw     bool          // register CLOCK_MONOTONIC_RAW as a counter
	PHCDevice        string        // register this PTP hardware clock as a counter
	Interval         time.Duration // how often we compare with the system clock and discipline
	StepThreshold    time.Duration // step instead of slewing above this offset, 0 means never
	TimestepWarnings bool          // log every step
	MonitoringPort   int           // admin API and JSON stats, 0 means disabled
	MetricsPort      int           // prometheus metrics, 0 means disabled
	SampleRingSize   int           // must be at least the size of N samples we use in expressions
	Math             Math          // configuration for calculation we'll be doing
}

// DefaultConfig returns config with default values
func DefaultConfig() *Config {
	return &Config{
		Hz:             tc.DefaultHz,
		RingSize:       tc.DefaultRingSize,
		MonotonicRaw:   true,
		Interval:       time.Second,
		StepThreshold:  100 * time.Millisecond,
		MonitoringPort: 21040,
		MetricsPort:    21041,
		SampleRingSize: MathDefaultHistory,
		Math:           Math{Uncertainty: MathDefaultUncertainty},
	}
}

// EvalAndValidate makes sure config is valid and evaluates expressions for further use.
func (c *Config) EvalAndValidate() error {
	if c.Hz <= 0 || c.Hz > maxHz {
		return fmt.Errorf("bad config: 'hz' must be between 1 and %d", maxHz)
	}
	if c.RingSize < 2 {
		return fmt.Errorf("bad config: 'ringsize' must be >1")
	}
	if c.Interval <= 0 || c.Interval > time.Minute {
		return fmt.Errorf("bad config: 'interval' must be between 0 and 1 minute")
	}
	if c.StepThreshold < 0 {
		return fmt.Errorf("bad config: 'stepthreshold' must be >=0")
	}
	if c.SampleRingSize <= 0 {
		return fmt.Errorf("bad config: 'sampleringsize' must be >0")
	}
	if c.MonitoringPort < 0 || c.MonitoringPort > 65535 || c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("bad config: ports must be between 0 and 65535")
	}
	if c.MonitoringPort != 0 && c.MonitoringPort == c.MetricsPort {
		return fmt.Errorf("bad config: 'monitoringport' and 'metricsport' must differ")
	}
	return c.Math.Prepare()
}

// ReadConfig reads config and unmarshals it from yaml into Config.
// Values missing in the file keep their defaults.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	err = yaml.UnmarshalStrict(data, c)
	return c, err
}
