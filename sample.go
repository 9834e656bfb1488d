// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vampire detects parked, non-charging rest periods in vehicle
// telemetry and measures the range lost during each of them.
package vampire // import "sbinet.org/x/vampire"

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Sample is a single telemetry record.
// A nil field means the vehicle did not report that value.
type Sample struct {
	Time    time.Time // millisecond resolution
	Speed   *float64
	Range   *float64 // estimated range, in distance units
	Voltage *float64 // charger voltage
}

// Value returns a pointer to v, for filling Sample fields.
func Value(v float64) *float64 {
	return &v
}

func (s Sample) String() string {
	o := new(strings.Builder)
	fmt.Fprintf(o, "Time:    %s\n", s.Time.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(o, "Speed:   %s\n", fmtOpt(s.Speed))
	fmt.Fprintf(o, "Range:   %s\n", fmtOpt(s.Range))
	fmt.Fprintf(o, "Voltage: %s\n", fmtOpt(s.Voltage))
	return o.String()
}

func fmtOpt(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%g", *v)
}

// resting reports whether the sample shows a stationary, non-charging
// vehicle. ok is false when the sample carries no speed.
func (s Sample) resting() (rest, ok bool) {
	if s.Speed == nil {
		return false, false
	}
	volt := 0.0
	if s.Voltage != nil {
		volt = *s.Voltage
	}
	return *s.Speed == 0 && volt == 0, true
}

type jsonSample struct {
	Time    int64    `json:"time"` // milliseconds since epoch
	Speed   *float64 `json:"speed,omitempty"`
	Range   *float64 `json:"est_range,omitempty"`
	Voltage *float64 `json:"voltage,omitempty"`
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonSample{
		Time:    s.Time.UnixMilli(),
		Speed:   s.Speed,
		Range:   s.Range,
		Voltage: s.Voltage,
	})
}

func (s *Sample) UnmarshalJSON(p []byte) error {
	var v jsonSample
	err := json.Unmarshal(p, &v)
	if err != nil {
		return err
	}
	*s = Sample{
		Time:    time.UnixMilli(v.Time).UTC(),
		Speed:   v.Speed,
		Range:   v.Range,
		Voltage: v.Voltage,
	}
	return nil
}

// Samples sorts telemetry records by time.
type Samples []Sample

func (p Samples) Len() int           { return len(p) }
func (p Samples) Less(i, j int) bool { return p[i].Time.Before(p[j].Time) }
func (p Samples) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// Validate checks that timestamps never decrease.
func Validate(vs []Sample) error {
	for i := 1; i < len(vs); i++ {
		if vs[i].Time.Before(vs[i-1].Time) {
			return fmt.Errorf(
				"sample %d at %s precedes sample %d at %s: %w",
				i, vs[i].Time.UTC().Format(time.RFC3339Nano),
				i-1, vs[i-1].Time.UTC().Format(time.RFC3339Nano),
				ErrUnordered,
			)
		}
	}
	return nil
}
