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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/timecounter/bintime"
	"github.com/facebook/timecounter/counters"
	"github.com/facebook/timecounter/servo"
	"github.com/facebook/timecounter/tc"
)

var errNotEnoughData = fmt.Errorf("not enough data points")

// Daemon is a component of tcd that
// runs the timecounter clock,
// drives its windup from a tick,
// disciplines it against the system clock
// and exposes it over http.
type Daemon struct {
	cfg   *Config
	clock *tc.Clock
	pi    *servo.PI
	state *daemonState
	stats StatsServer
	sys   *SysStats
	l     Logger

	closers []io.Closer

	// reference returns the time we discipline to
	reference func() time.Time
}

// New creates new tcd daemon, with all configured counters registered
func New(cfg *Config, stats StatsServer, l Logger) (*Daemon, error) {
	clock, err := tc.New(tc.Config{Hz: cfg.Hz, RingSize: cfg.RingSize, TimestepWarnings: cfg.TimestepWarnings})
	if err != nil {
		return nil, err
	}
	pi := servo.NewPI(servo.DefaultConfig(), 0)
	pi.SyncInterval(cfg.Interval.Seconds())

	d := &Daemon{
		cfg:       cfg,
		clock:     clock,
		pi:        pi,
		state:     newDaemonState(cfg.SampleRingSize),
		stats:     stats,
		l:         l,
		reference: time.Now,
	}

	if d.sys, err = NewSysStats(); err != nil {
		log.Warningf("Process stats are disabled: %v", err)
	}

	if cfg.MonotonicRaw {
		p, err := counters.MonotonicRaw()
		if err != nil {
			return nil, fmt.Errorf("setting up CLOCK_MONOTONIC_RAW counter: %w", err)
		}
		if err := clock.Register(p.Counter("monotonic_raw", counters.QualityMonotonicRaw)); err != nil {
			return nil, err
		}
	}
	if cfg.PHCDevice != "" {
		p, err := counters.OpenPHC(cfg.PHCDevice)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, p)
		if err := clock.Register(p.Counter(filepath.Base(cfg.PHCDevice), counters.QualityPHC)); err != nil {
			d.Close()
			return nil, err
		}
	}
	if cfg.Counter != "" {
		if err := clock.SelectByName(cfg.Counter); err != nil {
			d.Close()
			return nil, err
		}
	}
	// switch the published timehands to the selected counter right away
	clock.Windup()
	log.Infof("Using timecounter %q, choice: %s", clock.Hardware(), clock.Choice())

	// error counters
	d.stats.SetCounter("step_count", 0)
	d.stats.SetCounter("kernel_freq_error", 0)
	d.stats.SetCounter("freq_adj_error", 0)
	d.stats.SetCounter("uncertainty_error", 0)
	// values collected from the clock
	d.stats.SetCounter("windups", 0)
	d.stats.SetCounter("read_retries", 0)
	d.stats.SetCounter("tick", clock.Tick())
	// calculated values
	d.stats.SetCounter("offset_ns", 0)
	d.stats.SetCounter("freq_adj_ppb", 0)
	d.stats.SetCounter("drift_ppb", 0)
	d.stats.SetCounter("servo_state", int64(servo.StateInit))
	d.stats.SetCounter("uncertainty_ns", 0)
	d.stats.SetCounter("kernel_freq_ppb", 0)
	// aggregated values
	d.stats.SetCounter("offset_ns.abs_max", 0)
	d.stats.SetCounter("freq_adj_ppb.abs_max", 0)
	return d, nil
}

// Clock returns the clock the daemon runs
func (d *Daemon) Clock() *tc.Clock {
	return d.clock
}

// Close releases counter devices
func (d *Daemon) Close() {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			log.Warningf("Closing counter: %v", err)
		}
	}
	d.closers = nil
}

func toTimespec(t time.Time) bintime.Timespec {
	return bintime.Timespec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

func (d *Daemon) step(ref time.Time, offset time.Duration) {
	log.Warningf("Offset %v is over the step threshold, stepping clock", offset)
	d.clock.SetClock(toTimespec(ref))
	d.state.clearSamples()
	d.stats.UpdateCounterBy("step_count", 1)
}

func (d *Daemon) setFreq(ppb float64) {
	// servo output is the frequency error of the clock, we apply the opposite
	adj := tc.PPBToFreqAdj(-ppb)
	if _, err := d.clock.AdjFreq(&adj); err != nil {
		log.Errorf("Failed to adjust frequency: %v", err)
		d.stats.UpdateCounterBy("freq_adj_error", 1)
		return
	}
	d.stats.SetCounter("freq_adj_ppb", int64(-ppb))
}

// discipline compares the clock with the reference and corrects it
func (d *Daemon) discipline() error {
	ref := d.reference()
	offset := d.clock.Now().Sub(ref)
	d.stats.SetCounter("offset_ns", int64(offset))

	if d.cfg.StepThreshold > 0 && offset.Abs() > d.cfg.StepThreshold {
		d.step(ref, offset)
		d.pi.Reset()
		d.stats.SetCounter("servo_state", int64(servo.StateJump))
		return nil
	}

	ppb, state := d.pi.Sample(int64(offset), uint64(d.clock.Nanouptime().Duration()))
	d.stats.SetCounter("servo_state", int64(state))
	d.stats.SetCounter("drift_ppb", int64(d.pi.Drift()))
	switch state {
	case servo.StateJump:
		d.step(ref, offset)
		return nil
	case servo.StateLocked:
		d.setFreq(ppb)
	}

	freqAdj, _ := d.clock.AdjFreq(nil)
	d.state.pushSample(&sample{offsetNS: float64(offset), freqPPB: tc.FreqAdjToPPB(freqAdj)})
	return d.logSample(state)
}

func (d *Daemon) logSample(state servo.State) error {
	samples := d.state.takeSamples(d.cfg.SampleRingSize)
	params := prepareMathParameters(samples)
	logSample := &LogSample{
		OffsetNS:                params["offset"][0],
		OffsetMeanNS:            mean(params["offset"]),
		OffsetStddevNS:          stddev(params["offset"]),
		FreqAdjustmentPPB:       params["freq"][0],
		FreqAdjustmentMeanPPB:   mean(params["freq"]),
		FreqAdjustmentStddevPPB: stddev(params["freq"]),
		ServoState:              state.String(),
	}
	u, err := d.cfg.Math.uncertainty(samples)
	if err != nil {
		if !errors.Is(err, errNotEnoughData) {
			log.Errorf("Calculating uncertainty: %v", err)
			d.stats.UpdateCounterBy("uncertainty_error", 1)
		}
	} else {
		logSample.UncertaintyNS = u
		d.stats.SetCounter("uncertainty_ns", int64(u))
	}
	agg := d.state.aggregateSamplesMax(d.cfg.SampleRingSize)
	d.stats.SetCounter("offset_ns.abs_max", int64(agg.offsetNS))
	d.stats.SetCounter("freq_adj_ppb.abs_max", int64(agg.freqPPB))
	return d.l.Log(logSample)
}

// updateStats copies clock counters into stats
func (d *Daemon) updateStats() {
	d.stats.SetCounter("windups", int64(d.clock.Windups()))
	d.stats.SetCounter("read_retries", int64(d.clock.ReadRetries()))
	d.stats.SetCounter("tick", d.clock.Tick())
	if d.sys != nil {
		for k, v := range d.sys.Collect(d.cfg.Interval) {
			d.stats.SetCounter(k, v)
		}
	}
	freq, err := counters.FrequencyPPB(counters.ClockRealtime)
	if err != nil {
		log.Debugf("Reading kernel frequency: %v", err)
		d.stats.UpdateCounterBy("kernel_freq_error", 1)
		return
	}
	d.stats.SetCounter("kernel_freq_ppb", int64(freq))
}

func (d *Daemon) runTicks(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(d.cfg.Hz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.clock.TickTock()
		}
	}
}

func (d *Daemon) runDiscipline(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.discipline(); err != nil {
				log.Errorf("Failed to log sample: %v", err)
			}
			d.updateStats()
		}
	}
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Warningf("Shutting down %s: %v", addr, err)
		}
	}()
	log.Infof("Starting http server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run starts the daemon and blocks until ctx is done or something fails
func (d *Daemon) Run(ctx context.Context) error {
	defer d.Close()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return d.runTicks(ctx) })
	eg.Go(func() error { return d.runDiscipline(ctx) })
	if d.cfg.MonitoringPort != 0 {
		admin := NewAdmin(d.clock, d.stats)
		eg.Go(func() error { return serve(ctx, fmt.Sprintf(":%d", d.cfg.MonitoringPort), admin.Handler()) })
	}
	if d.cfg.MetricsPort != 0 {
		exporter := NewPrometheusExporter(d.stats)
		eg.Go(func() error { return serve(ctx, fmt.Sprintf(":%d", d.cfg.MetricsPort), exporter.Handler()) })
	}
	err := eg.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
