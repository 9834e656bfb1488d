// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampire

import (
	"fmt"
	"time"
)

// Config tunes rest period detection.
type Config struct {
	MinRest  time.Duration  // shortest stop counted as a rest
	Location *time.Location // time zone defining calendar days
}

func DefaultConfig() Config {
	return Config{
		MinRest:  MinRestPeriod,
		Location: time.Local,
	}
}

func (cfg Config) loc() *time.Location {
	if cfg.Location == nil {
		return time.Local
	}
	return cfg.Location
}

// Analyze returns the day-bounded rest periods found in the samples of vs
// falling within p.
func Analyze(vs []Sample, p Period, cfg Config) ([]Rest, error) {
	err := Validate(vs)
	if err != nil {
		return nil, fmt.Errorf("could not validate samples: %w", err)
	}

	var (
		out []Rest
		loc = cfg.loc()
		sc  = NewScanner(cfg.MinRest)
	)
	for _, v := range vs {
		if v.Time.Before(p.Beg) {
			continue
		}
		if !p.Contains(v.Time) {
			break
		}
		if r, ok := sc.Step(v); ok {
			out = append(out, SplitDays(r, loc)...)
		}
	}
	if r, ok := sc.Flush(); ok {
		out = append(out, SplitDays(r, loc)...)
	}
	return out, nil
}
