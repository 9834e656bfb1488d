// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vbolt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sbinet.org/x/vampire"
	"sbinet.org/x/vampire/internal/dbtest"
)

func TestDB(t *testing.T) {
	dbtest.Run(t, func(fname string) (vampire.DB, error) {
		return Open(fname)
	})
}

func TestKeyOrder(t *testing.T) {
	a, err := key(time.UnixMilli(255))
	require.NoError(t, err)
	b, err := key(time.UnixMilli(256))
	require.NoError(t, err)
	assert.Less(t, string(a), string(b))

	_, err = key(time.UnixMilli(-1))
	assert.Error(t, err)
}

func TestRecord(t *testing.T) {
	want := vampire.Sample{
		Time:  time.UnixMilli(1709280000123).UTC(),
		Speed: vampire.Value(0),
		Range: vampire.Value(321.5),
	}
	raw, err := marshal(want)
	require.NoError(t, err)

	var got vampire.Sample
	require.NoError(t, unmarshal(&got, raw))
	assert.Equal(t, want, got)
}
