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

// Package servo turns clock offset samples into frequency corrections.
package servo

// DefaultMaxFreqPPB value came from linuxptp project (clockadj.c)
const DefaultMaxFreqPPB = 500000.0

// State provides the result of servo calculation
type State uint8

// All the states of servo
const (
	StateInit   State = 0
	StateJump   State = 1
	StateLocked State = 2
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateJump:
		return "JUMP"
	case StateLocked:
		return "LOCKED"
	}
	return "UNSUPPORTED"
}

// Config has values common for any type of servo
type Config struct {
	MaxFreq            float64 // ppb
	StepThreshold      int64   // ns, 0 disables
	FirstStepThreshold int64   // ns, applies until the servo locks for the first time

	KpScale    float64
	KpExponent float64
	KpNormMax  float64
	KiScale    float64
	KiExponent float64
	KiNormMax  float64
}

// DefaultConfig generates default servo config
func DefaultConfig() Config {
	return Config{
		MaxFreq:            DefaultMaxFreqPPB,
		FirstStepThreshold: 20000,
		KpScale:            0.7,
		KpNormMax:          1.0,
		KiScale:            0.3,
		KiNormMax:          2.0,
	}
}
