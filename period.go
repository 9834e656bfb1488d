// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampire

import (
	"fmt"
	"time"
)

// Period is an inclusive time selection [Beg, End].
// A zero End leaves the period open-ended.
type Period struct {
	Beg time.Time
	End time.Time
}

// AllTime selects every sample.
func AllTime() Period {
	return Period{Beg: time.UnixMilli(0).UTC()}
}

// Days selects the calendar days from beg through end, inclusive, in loc.
func Days(beg, end time.Time, loc *time.Location) Period {
	var p Period
	if !beg.IsZero() {
		beg = beg.In(loc)
		p.Beg = time.Date(beg.Year(), beg.Month(), beg.Day(), 0, 0, 0, 0, loc)
	}
	if !end.IsZero() {
		p.End = endOfDay(end, loc).Add(time.Second - time.Millisecond)
	}
	return p
}

func (p Period) Contains(t time.Time) bool {
	if t.Before(p.Beg) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}

// Open reports whether the period has no upper bound.
func (p Period) Open() bool {
	return p.End.IsZero()
}

// ParseDays parses a [from, to] selection of calendar days formatted as
// 2006-01-02, in loc. An empty bound leaves that side open; both empty
// select all time.
func ParseDays(from, to string, loc *time.Location) (Period, error) {
	if from == "" && to == "" {
		return AllTime(), nil
	}
	cnv := func(name, v string) (time.Time, error) {
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return t, fmt.Errorf("could not parse %q date %q: %w", name, v, err)
		}
		return t, nil
	}
	beg, err := cnv("from", from)
	if err != nil {
		return Period{}, err
	}
	end, err := cnv("to", to)
	if err != nil {
		return Period{}, err
	}
	if !beg.IsZero() && !end.IsZero() && end.Before(beg) {
		return Period{}, fmt.Errorf("invalid period: %s is before %s", to, from)
	}
	return Days(beg, end, loc), nil
}
