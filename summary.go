// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampire

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a list of rest periods.
type Summary struct {
	Rests   []Rest        `json:"rests"`
	Total   time.Duration `json:"total"`    // total time at rest
	Loss    float64       `json:"loss"`     // total range lost
	AvgLoss float64       `json:"avg_loss"` // range lost per hour at rest
	StdDev  float64       `json:"std_dev"`  // spread of the per-rest loss rate
}

// Summarize computes the totals over rests.
// It returns ErrNoData when there is no rest time to average over.
func Summarize(rests []Rest) (Summary, error) {
	sum := Summary{Rests: rests}
	for _, r := range rests {
		sum.Total += r.Duration()
		sum.Loss += r.Loss()
	}
	if sum.Total <= 0 {
		return sum, ErrNoData
	}
	sum.AvgLoss = sum.Loss / sum.Total.Hours()

	if len(rests) > 1 {
		var (
			rates = make([]float64, len(rests))
			hours = make([]float64, len(rests))
		)
		for i, r := range rests {
			rates[i] = r.AvgLoss()
			hours[i] = r.Hours()
		}
		_, v := stat.PopMeanVariance(rates, hours)
		sum.StdDev = math.Sqrt(v)
	}
	return sum, nil
}

// WriteReport writes a plain text report of the summary.
func (sum Summary) WriteReport(w io.Writer, loc *time.Location, units Units) error {
	o := new(strings.Builder)
	for _, r := range sum.Rests {
		var (
			beg = r.Beg.In(loc)
			end = r.End.In(loc)
		)
		fmt.Fprintf(o, "\t-------------------\n")
		fmt.Fprintf(o, "\tPeriod: [%s, %s], %3.2f hours\n",
			beg.Format("01/02 15:04"), end.Format("01/02 15:04"), r.Hours(),
		)
		fmt.Fprintf(o, "\tRange: [%3.2f, %3.2f], %3.2f %s\n", r.BegRange, r.EndRange, r.Loss(), units)
		fmt.Fprintf(o, "\tAverage loss per hour: %3.2f\n", r.AvgLoss())
	}
	fmt.Fprintf(o, "===================\n")
	fmt.Fprintf(o, "Total Hours Resting: %3.2f\n", sum.Total.Hours())
	fmt.Fprintf(o, "Total Loss: %3.2f %s\n", sum.Loss, units)
	fmt.Fprintf(o, "Total Average Loss / Hour: %3.2f\n", sum.AvgLoss)

	_, err := io.WriteString(w, o.String())
	return err
}

// Tooltip describes a single rest period in a few lines.
func (r Rest) Tooltip(loc *time.Location, units Units) string {
	var (
		elapsed = r.Duration().Truncate(time.Minute)
		hh      = int(elapsed / time.Hour)
		mm      = int((elapsed % time.Hour) / time.Minute)
	)
	return fmt.Sprintf(
		"Date: %s\nElapsed (HH:MM): %02d:%02d\nLoss: %3.2f %s\nLoss/hr: %3.2f",
		r.Beg.In(loc).Format("01/02 15:04"), hh, mm, r.Loss(), units, r.AvgLoss(),
	)
}

// Units is the distance unit used when displaying ranges.
type Units string

const (
	Miles      Units = "mi"
	Kilometers Units = "km"
)

// ParseUnits maps a distance unit name to Units.
// Anything starting with "mi" is miles, "km" or "" kilometres.
func ParseUnits(v string) (Units, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch {
	case strings.HasPrefix(v, "mi"):
		return Miles, nil
	case v == "", strings.HasPrefix(v, "km"), strings.HasPrefix(v, "kilo"):
		return Kilometers, nil
	default:
		return "", fmt.Errorf("vampire: invalid distance units %q", v)
	}
}

func (u Units) String() string { return string(u) }
