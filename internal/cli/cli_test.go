// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sbinet.org/x/vampire"
	"sbinet.org/x/vampire/internal/vbolt"
	"sbinet.org/x/vampire/internal/vsqlite"

	_ "time/tzdata"
)

func TestAnalysisConfig(t *testing.T) {
	cfg, units, err := DefaultAnalysisArgs.Config()
	require.NoError(t, err)
	assert.Equal(t, vampire.MinRestPeriod, cfg.MinRest)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Equal(t, vampire.Kilometers, units)

	cfg, units, err = AnalysisArgs{MinRest: 90 * time.Minute, TZ: "America/New_York", Units: "miles"}.Config()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.MinRest)
	assert.Equal(t, "America/New_York", cfg.Location.String())
	assert.Equal(t, vampire.Miles, units)

	for _, args := range []AnalysisArgs{
		{MinRest: -time.Minute},
		{TZ: "Mars/Olympus_Mons"},
		{Units: "parsec"},
	} {
		_, _, err := args.Config()
		assert.Error(t, err, "args=%+v", args)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		args StoreArgs
		want any
	}{
		{StoreArgs{DB: filepath.Join(dir, "a.db")}, &vbolt.DB{}},
		{StoreArgs{DB: filepath.Join(dir, "b.sqlite")}, &vsqlite.DB{}},
		{StoreArgs{DB: filepath.Join(dir, "c.db"), Backend: "SQLite"}, &vsqlite.DB{}},
		{StoreArgs{DB: filepath.Join(dir, "d.sqlite3"), Backend: "bolt"}, &vbolt.DB{}},
	} {
		t.Run(filepath.Base(tc.args.DB), func(t *testing.T) {
			db, err := tc.args.Open()
			require.NoError(t, err)
			defer db.Close()
			assert.IsType(t, tc.want, db)
		})
	}

	_, err := StoreArgs{}.Open()
	assert.Error(t, err)
	_, err = StoreArgs{DB: filepath.Join(dir, "e.db"), Backend: "csv"}.Open()
	assert.Error(t, err)
}

func TestReadSamples(t *testing.T) {
	vs, err := ReadSamples(strings.NewReader(`[
		{"time": 1709290800000, "speed": 0, "est_range": 199},
		{"time": 1709287200000, "speed": 0, "est_range": 200, "voltage": 0}
	]`))
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.True(t, vs[0].Time.Before(vs[1].Time))
	assert.Equal(t, 200.0, *vs[0].Range)
	assert.Nil(t, vs[1].Voltage)

	_, err = ReadSamples(strings.NewReader(`{"time": 1}`))
	assert.Error(t, err)

	_, err = LoadSamples(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
