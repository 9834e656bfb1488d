// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sbinet.org/x/vampire"
	"sbinet.org/x/vampire/internal/vbolt"
	"sbinet.org/x/vampire/internal/vlog"
	"sbinet.org/x/vampire/vampsrv"
)

func writeSamples(t *testing.T, n int) string {
	t.Helper()
	t0 := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	vs := make([]vampire.Sample, n)
	for i := range vs {
		vs[i] = vampire.Sample{
			Time:  t0.Add(time.Duration(5*i) * time.Minute),
			Speed: vampire.Value(0),
			Range: vampire.Value(200 - 0.01*float64(i)),
		}
	}
	raw, err := json.Marshal(vs)
	require.NoError(t, err)

	fname := filepath.Join(t.TempDir(), "samples.json")
	require.NoError(t, os.WriteFile(fname, raw, 0644))
	return fname
}

func TestPush(t *testing.T) {
	db, err := vbolt.Open(filepath.Join(t.TempDir(), "vampire.db"))
	require.NoError(t, err)

	srv, err := vampsrv.NewServer(db, vampsrv.Config{Config: vampire.DefaultConfig()}, vlog.Nop())
	require.NoError(t, err)
	defer srv.Close()

	var posts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/post" {
			posts.Add(1)
		}
		srv.ServeHTTP(w, r)
	}))
	defer ts.Close()

	args := Args{
		Server:   ts.URL + "/",
		Vehicle:  "tesla",
		Input:    writeSamples(t, 25),
		Register: true,
		Batch:    10,
		Attempts: 1,
		Timeout:  5 * time.Second,
	}
	ctx := context.Background()
	require.NoError(t, xmain(ctx, args, vlog.Nop()))
	assert.Equal(t, int32(3), posts.Load())

	// registering twice is fine and uploads are idempotent.
	require.NoError(t, xmain(ctx, args, vlog.Nop()))

	resp, err := http.Get(ts.URL + "/api?vehicle_id=tesla&all=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msg vampsrv.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	require.Len(t, msg.Rests, 1)
	assert.InDelta(t, 0.24, msg.Rests[0].Loss, 1e-9)
}

func TestPushRetry(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	args := Args{
		Server:   ts.URL,
		Vehicle:  "tesla",
		Input:    writeSamples(t, 3),
		Attempts: 5,
		Delay:    time.Millisecond,
		Timeout:  5 * time.Second,
	}
	require.NoError(t, xmain(context.Background(), args, vlog.Nop()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestPushNoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such vehicle", http.StatusBadRequest)
	}))
	defer ts.Close()

	args := Args{
		Server:   ts.URL,
		Vehicle:  "tesla",
		Input:    writeSamples(t, 3),
		Attempts: 5,
		Delay:    time.Millisecond,
		Timeout:  5 * time.Second,
	}
	err := xmain(context.Background(), args, vlog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such vehicle")
	assert.Equal(t, int32(1), calls.Load())
}
