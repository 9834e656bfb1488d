// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dbtest holds tests shared by all vampire.DB implementations.
package dbtest // import "sbinet.org/x/vampire/internal/dbtest"

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sbinet.org/x/vampire"
)

// Opener opens or creates a database stored at fname.
type Opener func(fname string) (vampire.DB, error)

var t0 = time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

func sample(min int, speed, rng float64) vampire.Sample {
	return vampire.Sample{
		Time:  t0.Add(time.Duration(min) * time.Minute),
		Speed: vampire.Value(speed),
		Range: vampire.Value(rng),
	}
}

// Run exercises the DB contract on a fresh database.
func Run(t *testing.T, open Opener) {
	fname := filepath.Join(t.TempDir(), "vampire.db")

	db, err := open(fname)
	require.NoError(t, err)

	vehicles, err := db.Vehicles()
	require.NoError(t, err)
	assert.Empty(t, vehicles)

	require.NoError(t, db.AddVehicle("car-2"))
	require.NoError(t, db.AddVehicle("car-1"))
	assert.ErrorIs(t, db.AddVehicle("car-1"), vampire.ErrDupVehicle)

	vehicles, err = db.Vehicles()
	require.NoError(t, err)
	assert.Equal(t, []string{"car-1", "car-2"}, vehicles)

	_, err = db.Last("car-1")
	assert.ErrorIs(t, err, vampire.ErrNoData)
	_, err = db.Last("car-3")
	assert.ErrorIs(t, err, vampire.ErrNoVehicle)
	assert.ErrorIs(t, db.PutSamples("car-3", []vampire.Sample{sample(0, 0, 1)}), vampire.ErrNoVehicle)

	vs := []vampire.Sample{
		sample(10, 0, 198),
		sample(0, 0, 200),
		{Time: t0.Add(20 * time.Minute), Speed: vampire.Value(0), Voltage: vampire.Value(230)},
		sample(30, 42, 190),
	}
	require.NoError(t, db.PutSamples("car-1", vs))

	last, err := db.Last("car-1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(30*time.Minute), last.Time)

	got, err := vampire.ReadAll(db, "car-1", vampire.AllTime())
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i := range got {
		assert.Equal(t, t0.Add(time.Duration(i)*10*time.Minute), got[i].Time)
	}
	assert.Nil(t, got[2].Range)
	require.NotNil(t, got[2].Voltage)
	assert.Equal(t, 230.0, *got[2].Voltage)
	assert.Nil(t, got[0].Voltage)
	assert.Equal(t, 198.0, *got[1].Range)

	// old samples are dropped, new ones appended.
	require.NoError(t, db.PutSamples("car-1", []vampire.Sample{
		sample(0, 99, 99),
		sample(40, 0, 189),
	}))
	got, err = vampire.ReadAll(db, "car-1", vampire.AllTime())
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 200.0, *got[0].Range)

	got, err = vampire.ReadAll(db, "car-1", vampire.Period{
		Beg: t0.Add(10 * time.Minute),
		End: t0.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, t0.Add(10*time.Minute), got[0].Time)
	assert.Equal(t, t0.Add(30*time.Minute), got[2].Time)

	got, err = vampire.ReadAll(db, "car-2", vampire.AllTime())
	require.NoError(t, err)
	assert.Empty(t, got)

	// samples sharing a timestamp: the first one is kept.
	require.NoError(t, db.PutSamples("car-2", []vampire.Sample{
		sample(0, 0, 200),
		sample(0, 50, 180),
		sample(60, 0, 190),
		sample(60, 0, 170),
	}))
	got, err = vampire.ReadAll(db, "car-2", vampire.AllTime())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.0, *got[0].Speed)
	assert.Equal(t, 200.0, *got[0].Range)
	assert.Equal(t, 190.0, *got[1].Range)

	last, err = db.Last("car-2")
	require.NoError(t, err)
	assert.Equal(t, 190.0, *last.Range)

	rests, err := vampire.Analyze(got, vampire.AllTime(), vampire.Config{MinRest: 30 * time.Minute, Location: time.UTC})
	require.NoError(t, err)
	assert.Equal(t, []vampire.Rest{{Beg: t0, End: t0.Add(time.Hour), BegRange: 200, EndRange: 190}}, rests)

	require.NoError(t, db.Close())

	// reopen: vehicles and last samples survive.
	db, err = open(fname)
	require.NoError(t, err)
	defer db.Close()

	vehicles, err = db.Vehicles()
	require.NoError(t, err)
	assert.Equal(t, []string{"car-1", "car-2"}, vehicles)

	last, err = db.Last("car-1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(40*time.Minute), last.Time)
	assert.Equal(t, 189.0, *last.Range)
}
