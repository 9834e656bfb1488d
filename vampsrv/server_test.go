// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampsrv

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sbinet.org/x/vampire"
	"sbinet.org/x/vampire/internal/vbolt"
	"sbinet.org/x/vampire/internal/vlog"
)

var t0 = time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := vbolt.Open(filepath.Join(t.TempDir(), "vampire.db"))
	require.NoError(t, err)

	srv, err := NewServer(db, Config{
		Config: vampire.Config{MinRest: vampire.MinRestPeriod, Location: time.UTC},
		Root:   "/",
		Units:  vampire.Miles,
	}, vlog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func do(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf := new(bytes.Buffer)
	if body != nil {
		require.NoError(t, json.NewEncoder(buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func parked(min int, rng float64) vampire.Sample {
	return vampire.Sample{
		Time:    t0.Add(time.Duration(min) * time.Minute),
		Speed:   vampire.Value(0),
		Voltage: vampire.Value(0),
		Range:   vampire.Value(rng),
	}
}

func TestServer(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/vehicles", map[string]string{"vehicle_id": "car-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, srv, http.MethodPost, "/vehicles", map[string]string{"vehicle_id": "car-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodGet, "/vehicles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"vehicles":["car-1"]}`, rec.Body.String())

	// no samples yet.
	rec = do(t, srv, http.MethodGet, "/api", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.True(t, msg.NoData)
	assert.Empty(t, msg.Rests)

	rec = do(t, srv, http.MethodGet, "/plot-day", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/post", map[string]any{
		"vehicle_id": "car-1",
		"samples": []vampire.Sample{
			parked(0, 200),
			parked(90, 190),
			{Time: t0.Add(91 * time.Minute), Speed: vampire.Value(50)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api?vehicle_id=car-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msg = Message{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.False(t, msg.NoData)
	assert.Equal(t, "mi", msg.Units)
	require.Len(t, msg.Rests, 1)
	assert.Equal(t, t0.UnixMilli(), msg.Rests[0].Beg)
	assert.Equal(t, t0.Add(90*time.Minute).UnixMilli(), msg.Rests[0].End)
	assert.InDelta(t, 10, msg.Loss, 1e-9)
	assert.InDelta(t, 6.67, msg.AvgLoss, 0.01)
	assert.NotEmpty(t, msg.Plots.Day)
	assert.Contains(t, msg.Report, "Total Loss: 10.00 mi")

	rec = do(t, srv, http.MethodGet, "/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Total Hours Resting: 1.50")

	for _, name := range []string{"/plot-day", "/plot-seq", "/plot-time"} {
		rec = do(t, srv, http.MethodGet, name+"?vehicle_id=car-1", nil)
		require.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		_, err := png.Decode(rec.Body)
		require.NoError(t, err, name)
	}

	rec = do(t, srv, http.MethodGet, "/?vehicle_id=car-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Total Average Loss / Hour: 6.67")
	assert.True(t, strings.Contains(rec.Body.String(), "plot-day?vehicle_id=car-1"))

	// outside of the selected days.
	rec = do(t, srv, http.MethodGet, "/api?from=2024-03-02&to=2024-03-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msg = Message{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.True(t, msg.NoData)
	assert.Equal(t, "2024-03-02", msg.From)

	rec = do(t, srv, http.MethodGet, "/api?from=2024-03-01&to=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msg = Message{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Len(t, msg.Rests, 1)
}

func TestServerBadRequests(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.addVehicle("car-1"))
	require.NoError(t, srv.addVehicle("car-2"))

	for _, tc := range []struct {
		name   string
		method string
		target string
		body   any
		want   int
	}{
		{"ambiguous-vehicle", http.MethodGet, "/api", nil, http.StatusBadRequest},
		{"unknown-vehicle", http.MethodGet, "/api?vehicle_id=car-3", nil, http.StatusBadRequest},
		{"bad-date", http.MethodGet, "/api?vehicle_id=car-1&from=yesterday", nil, http.StatusBadRequest},
		{"reversed-dates", http.MethodGet, "/api?vehicle_id=car-1&from=2024-03-05&to=2024-03-01", nil, http.StatusBadRequest},
		{"ingest-unknown", http.MethodPost, "/post", map[string]any{"vehicle_id": "car-3"}, http.StatusBadRequest},
		{"ingest-method", http.MethodGet, "/post", nil, http.StatusMethodNotAllowed},
		{"empty-vehicle", http.MethodPost, "/vehicles", map[string]string{"vehicle_id": ""}, http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.target, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServerReload(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "vampire.db")
	db, err := vbolt.Open(fname)
	require.NoError(t, err)
	require.NoError(t, db.AddVehicle("car-1"))
	require.NoError(t, db.PutSamples("car-1", []vampire.Sample{parked(0, 200), parked(61, 199)}))

	srv, err := NewServer(db, Config{Config: vampire.DefaultConfig()}, vlog.Nop())
	require.NoError(t, err)
	defer srv.Close()

	assert.Equal(t, []string{"car-1"}, srv.ids)
	assert.Equal(t, t0.Add(61*time.Minute), srv.mgrs["car-1"].last.Time)
	assert.Equal(t, vampire.Kilometers, srv.cfg.Units)
}
