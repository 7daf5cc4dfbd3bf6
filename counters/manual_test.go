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

package counters

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebook/timecounter/tc"
)

func TestManualWraps(t *testing.T) {
	m := NewManual(0xffff)
	require.Equal(t, uint64(0), m.Read())
	m.Set(0xfffe)
	m.Advance(3)
	require.Equal(t, uint64(1), m.Read())
}

func TestManualCounter(t *testing.T) {
	m := NewManual(0xffffffff)
	cnt := m.Counter("manual", 1000000, 5)
	require.Equal(t, "manual", cnt.Name)
	require.Equal(t, uint64(0xffffffff), cnt.Mask)
	require.Equal(t, uint64(1000000), cnt.Frequency)
	require.Equal(t, int64(5), cnt.Quality)
	require.Same(t, m, cnt.Source)
}

func TestManualDrivesClock(t *testing.T) {
	c, err := tc.New(tc.Config{})
	require.NoError(t, err)
	m := NewManual(0xffffffff)
	require.NoError(t, c.Register(m.Counter("manual", 1000000, 0)))
	c.Windup()

	before := c.Nanouptime()
	m.Advance(1500)
	after := c.Nanouptime()
	require.InDelta(t, 1500000, after.Duration()-before.Duration(), 1)
}
