// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewer(t *testing.T) {
	s := func(t time.Time, rng float64) Sample {
		return Sample{Time: t, Speed: Value(0), Range: Value(rng)}
	}
	t0 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		name string
		vs   []Sample
		last Sample
		want []Sample
	}{
		{
			name: "empty",
		},
		{
			name: "sorted",
			vs:   []Sample{s(t0.Add(time.Minute), 2), s(t0, 1)},
			want: []Sample{s(t0, 1), s(t0.Add(time.Minute), 2)},
		},
		{
			name: "same-time-keeps-first",
			vs:   []Sample{s(t0, 1), s(t0, 2), s(t0.Add(time.Minute), 3), s(t0.Add(time.Minute), 4)},
			want: []Sample{s(t0, 1), s(t0.Add(time.Minute), 3)},
		},
		{
			name: "same-millisecond",
			vs:   []Sample{s(t0, 1), s(t0.Add(500*time.Microsecond), 2)},
			want: []Sample{s(t0, 1)},
		},
		{
			name: "after-last",
			vs:   []Sample{s(t0, 1), s(t0.Add(time.Minute), 2), s(t0.Add(2*time.Minute), 3)},
			last: s(t0.Add(time.Minute), 9),
			want: []Sample{s(t0.Add(2*time.Minute), 3)},
		},
		{
			name: "all-old",
			vs:   []Sample{s(t0, 1)},
			last: s(t0, 9),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := Newer(tc.vs, tc.last)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewerKeepsInput(t *testing.T) {
	t0 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	vs := []Sample{{Time: t0.Add(time.Minute)}, {Time: t0}}
	_ = Newer(vs, Sample{})
	assert.Equal(t, t0.Add(time.Minute), vs[0].Time)
}
