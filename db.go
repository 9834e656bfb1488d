// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampire // import "sbinet.org/x/vampire"

import (
	"iter"
	"sort"
)

// DB stores telemetry samples per vehicle.
type DB interface {
	// PutSamples stores vs for vehicle id.
	// Samples not newer than the last stored one are dropped.
	PutSamples(id string, vs []Sample) error
	// Samples iterates, in time order, over the samples of vehicle id within p.
	Samples(id string, p Period) iter.Seq2[Sample, error]
	// Last returns the most recent sample of vehicle id, or ErrNoData.
	Last(id string) (Sample, error)

	AddVehicle(id string) error
	Vehicles() ([]string, error)

	Close() error
}

// ReadAll collects the samples of vehicle id within p.
func ReadAll(db DB, id string, p Period) ([]Sample, error) {
	var vs []Sample
	for v, err := range db.Samples(id, p) {
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// Newer returns the samples of vs, sorted by time, that a store holding
// last as its latest sample should append.
// Samples at or before last are dropped, and of several samples sharing a
// timestamp only the first is kept. Timestamps are compared at millisecond
// precision, the resolution of the stores.
func Newer(vs []Sample, last Sample) []Sample {
	vs = append([]Sample(nil), vs...)
	sort.Stable(Samples(vs))

	var (
		out  = vs[:0]
		prev = last.Time
	)
	for _, v := range vs {
		if !prev.IsZero() && v.Time.UnixMilli() <= prev.UnixMilli() {
			continue
		}
		out = append(out, v)
		prev = v.Time
	}
	return out
}
