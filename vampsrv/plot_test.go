// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampsrv

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sbinet.org/x/vampire"

	_ "time/tzdata"
)

func TestWallClock(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:30 UTC is 22:30 the day before in New York.
	got := wallClock(time.Date(2024, time.March, 2, 3, 30, 0, 0, time.UTC), ny)
	assert.Equal(t, time.Date(2024, time.March, 1, 22, 30, 0, 0, time.UTC), got)

	ts := time.Date(2024, time.March, 2, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, ts, wallClock(ts, time.UTC))

	assert.Equal(t, hourOfDay(ts, ny), hourOfDay(wallClock(ts, ny), time.UTC))
}

func TestPlotTimeLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	rests := []vampire.Rest{
		{Beg: t0, End: t0.Add(2 * time.Hour), BegRange: 200, EndRange: 198},
		{Beg: t0.Add(24 * time.Hour), End: t0.Add(27 * time.Hour), BegRange: 190, EndRange: 187},
	}
	sum, err := vampire.Summarize(rests)
	require.NoError(t, err)

	var (
		mgr = newManager("tesla")
		buf bytes.Buffer
		cfg = Config{Config: vampire.Config{Location: ny}, Units: vampire.Kilometers}
	)
	require.NoError(t, mgr.plotTime(&buf, sum, cfg))
	_, err = png.Decode(&buf)
	require.NoError(t, err)
}
