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
	"math"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// MathHelp is a help message used by flags in main
const MathHelp = `When composing the -uncertainty formula, here is what you can do:
supported operations:
  evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  offset (list of last offsets from the system clock, in ns, newest first)
  freq (list of last frequency adjustments, in PPB)
  freqchangeabs (list of last changes in frequency, abs values)
supported functions:
  abs(value) - absolute value of single float64, for example abs(-1) = 1
  mean(values, number) - mean of list of 'number' values
  variance(values, number) - variance of list of 'number' values
  stddev(values, number) - standard deviation of list of 'number' values`

const (
	// MathDefaultHistory is a default number of samples to keep
	MathDefaultHistory = 60
	// MathDefaultUncertainty is a default formula to calculate the error bound of the clock
	MathDefaultUncertainty = "abs(mean(offset, 10)) + 3.0 * stddev(offset, 10)"
)

// Math stores our math expressions in two forms: string and parsed
type Math struct {
	Uncertainty     string // error bound of the clock in ns
	uncertaintyExpr *govaluate.EvaluableExpression
}

// Prepare will prepare all math expressions
func (m *Math) Prepare() error {
	var err error
	m.uncertaintyExpr, err = prepareExpression(m.Uncertainty)
	if err != nil {
		return fmt.Errorf("evaluating Uncertainty: %w", err)
	}
	return nil
}

// uncertainty evaluates the Uncertainty expression over samples, newest first
func (m *Math) uncertainty(samples []*sample) (float64, error) {
	if len(samples) < 2 {
		return 0, errNotEnoughData
	}
	res, err := m.uncertaintyExpr.Evaluate(mapOfInterface(prepareMathParameters(samples)))
	if err != nil {
		return 0, err
	}
	v, ok := res.(float64)
	if !ok {
		return 0, fmt.Errorf("uncertainty evaluated to %T, not a number", res)
	}
	return v, nil
}

func mean(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Mean()
}

func variance(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Variance()
}

func stddev(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Stddev()
}

var supportedVariables = []string{
	"offset",
	"freq",
	"freqchangeabs",
}

func isSupportedVar(varName string) bool {
	for _, v := range supportedVariables {
		if v == varName {
			return true
		}
	}
	return false
}

// aggregate builds an expression function applying fn to the first 'number' values
func aggregate(name string, fn func([]float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: wrong number of arguments: want 2, got %d", name, len(args))
		}
		vals, ok := args[0].([]float64)
		if !ok {
			return nil, fmt.Errorf("%s: first argument must be a variable", name)
		}
		n, ok := args[1].(float64)
		if !ok {
			return nil, fmt.Errorf("%s: second argument must be a number", name)
		}
		if nSamples := int(n); len(vals) > nSamples {
			vals = vals[:nSamples]
		}
		return fn(vals), nil
	}
}

// all the functions we support in expressions
var functions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("abs: argument must be a number")
		}
		return math.Abs(val), nil
	},
	"mean":     aggregate("mean", mean),
	"variance": aggregate("variance", variance),
	"stddev":   aggregate("stddev", stddev),
}

func prepareExpression(exprStr string) (*govaluate.EvaluableExpression, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, functions)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if !isSupportedVar(v) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return expr, nil
}

func prepareMathParameters(lastN []*sample) map[string][]float64 {
	size := len(lastN)
	offsets := make([]float64, size)
	freqs := make([]float64, size)
	freqChangesAbs := make([]float64, 0, size)
	for i, s := range lastN {
		offsets[i] = s.offsetNS
		freqs[i] = s.freqPPB
		if i != 0 {
			freqChangesAbs = append(freqChangesAbs, math.Abs(lastN[i-1].freqPPB-s.freqPPB))
		}
	}
	return map[string][]float64{
		"offset":        offsets,
		"freq":          freqs,
		"freqchangeabs": freqChangesAbs,
	}
}

func mapOfInterface(m map[string][]float64) map[string]interface{} {
	mm := make(map[string]interface{}, len(m))
	for k, v := range m {
		mm[k] = v
	}
	return mm
}
