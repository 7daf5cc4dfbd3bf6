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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

var testSample0 = &LogSample{
	OffsetNS:                1.1,
	OffsetMeanNS:            1.2,
	OffsetStddevNS:          1.3,
	FreqAdjustmentPPB:       1.4,
	FreqAdjustmentMeanPPB:   1.5,
	FreqAdjustmentStddevPPB: 1.6,
	UncertaintyNS:           1.7,
	ServoState:              "LOCKED",
}

var testSample1 = &LogSample{
	OffsetNS:                -100,
	OffsetMeanNS:            0.2,
	OffsetStddevNS:          0.3,
	FreqAdjustmentPPB:       0.4,
	FreqAdjustmentMeanPPB:   0.5,
	FreqAdjustmentStddevPPB: 0.6,
	UncertaintyNS:           0,
	ServoState:              "INIT",
}

func TestLogSample_CSVRecords(t *testing.T) {
	got := testSample0.CSVRecords()
	want := []string{"1.1", "1.2", "1.3", "1.4", "1.5", "1.6", "1.7", "LOCKED"}

	// make sure we are in sync with header
	require.Equal(t, len(header), len(got))

	require.Equal(t, want, got)
}

func TestCSVLogger_Log(t *testing.T) {
	b := &bytes.Buffer{}
	l := NewCSVLogger(b)

	require.NoError(t, l.Log(testSample0))
	require.NoError(t, l.Log(testSample1))
	require.NoError(t, l.Log(testSample0))

	want := `offset,offset_mean,offset_stddev,freq,freq_mean,freq_stddev,uncertainty,servo_state
1.1,1.2,1.3,1.4,1.5,1.6,1.7,LOCKED
-100,0.2,0.3,0.4,0.5,0.6,0,INIT
1.1,1.2,1.3,1.4,1.5,1.6,1.7,LOCKED
`
	require.Equal(t, want, b.String())
}

func TestDummyLogger_Log(t *testing.T) {
	b := &bytes.Buffer{}
	l := NewDummyLogger(b)
	require.NoError(t, l.Log(&LogSample{OffsetNS: -1500, FreqAdjustmentPPB: 12.5, UncertaintyNS: 2000, ServoState: "LOCKED"}))
	require.Equal(t, "offset = -1.5µs, freq = 12.500 ppb, uncertainty = 2µs, servo = LOCKED\n", b.String())
}
