// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampire

import (
	"fmt"
	"time"
)

// MinRestPeriod is the default shortest stop counted as a rest period.
const MinRestPeriod = 60 * time.Minute

// Rest is a stretch of time during which the vehicle was parked and not
// charging, together with the estimated range at both ends.
type Rest struct {
	Beg      time.Time `json:"beg"`
	End      time.Time `json:"end"`
	BegRange float64   `json:"beg_range"`
	EndRange float64   `json:"end_range"`
}

func (r Rest) Duration() time.Duration { return r.End.Sub(r.Beg) }
func (r Rest) Hours() float64          { return r.Duration().Hours() }
func (r Rest) Loss() float64           { return r.BegRange - r.EndRange }

// AvgLoss returns the range lost per hour.
// It returns 0 for a zero-length rest.
func (r Rest) AvgLoss() float64 {
	h := r.Hours()
	if h <= 0 {
		return 0
	}
	return r.Loss() / h
}

func (r Rest) String() string {
	return fmt.Sprintf(
		"Rest{%s -> %s, range: [%.2f, %.2f]}",
		r.Beg.Format(time.RFC3339), r.End.Format(time.RFC3339),
		r.BegRange, r.EndRange,
	)
}

// Scanner accumulates rest periods out of a time-ordered sample stream.
//
// At most one rest is open at a time. It is extended by every resting
// sample carrying a range, and closed by the first sample showing motion
// or charging.
type Scanner struct {
	min time.Duration

	cur  Rest
	open bool
}

// NewScanner returns a scanner keeping rests strictly longer than min.
func NewScanner(min time.Duration) *Scanner {
	return &Scanner{min: min}
}

// Step feeds one sample to the scanner.
// It returns the rest closed by this sample, if that rest is long enough.
func (sc *Scanner) Step(s Sample) (Rest, bool) {
	rest, ok := s.resting()
	switch {
	case !ok:
		return Rest{}, false
	case rest:
		if s.Range == nil {
			// range dropout: keep the current rest as is.
			return Rest{}, false
		}
		if !sc.open {
			sc.cur = Rest{Beg: s.Time, End: s.Time, BegRange: *s.Range, EndRange: *s.Range}
			sc.open = true
			return Rest{}, false
		}
		sc.cur.End = s.Time
		sc.cur.EndRange = *s.Range
		return Rest{}, false
	default:
		return sc.Flush()
	}
}

// Flush closes the open rest, if any.
// The rest is returned only if it lasted longer than the minimum.
func (sc *Scanner) Flush() (Rest, bool) {
	if !sc.open {
		return Rest{}, false
	}
	cur := sc.cur
	sc.cur = Rest{}
	sc.open = false
	if cur.Duration() > sc.min {
		return cur, true
	}
	return Rest{}, false
}

// Open returns the rest currently being accumulated.
func (sc *Scanner) Open() (Rest, bool) {
	return sc.cur, sc.open
}

// Scan runs a scanner over vs and returns the rests it found,
// including one still open at the end of the stream.
func Scan(vs []Sample, min time.Duration) []Rest {
	var (
		out []Rest
		sc  = NewScanner(min)
	)
	for _, v := range vs {
		if r, ok := sc.Step(v); ok {
			out = append(out, r)
		}
	}
	if r, ok := sc.Flush(); ok {
		out = append(out, r)
	}
	return out
}

// SplitDays cuts r at every local midnight it crosses.
//
// Each piece but the last ends at 23:59:59 and the next one starts one
// second later. The range at each cut is interpolated linearly over
// elapsed time.
func SplitDays(r Rest, loc *time.Location) []Rest {
	var out []Rest
	for {
		if sameDay(r.Beg, r.End, loc) {
			return append(out, r)
		}

		eod := endOfDay(r.Beg, loc)
		next := eod.Add(time.Second)
		if !r.End.After(next) {
			// nothing left past the cut.
			if !eod.After(r.Beg) {
				// r lies within the last second of its day and the first
				// instant of the next one: no piece fits in a single day.
				return out
			}
			return append(out, Rest{Beg: r.Beg, End: eod, BegRange: r.BegRange, EndRange: r.EndRange})
		}

		cut := r.BegRange
		if eod.After(r.Beg) {
			ratio := float64(eod.Sub(r.Beg)) / float64(r.End.Sub(r.Beg))
			cut = r.BegRange - (r.BegRange-r.EndRange)*ratio
			out = append(out, Rest{Beg: r.Beg, End: eod, BegRange: r.BegRange, EndRange: cut})
		}
		r = Rest{Beg: next, End: r.End, BegRange: cut, EndRange: r.EndRange}
	}
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// endOfDay returns 23:59:59 on the day of t, in loc.
func endOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}
