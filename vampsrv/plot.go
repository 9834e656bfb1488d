// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampsrv // import "sbinet.org/x/vampire/vampsrv"

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"time"

	"git.sr.ht/~sbinet/epok"
	"go-hep.org/x/hep/hplot"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"sbinet.org/x/vampire"
)

var (
	tcnv epok.UTCUnixTimeConverter

	colRest = color.NRGBA{B: 255, A: 64}
	colDot  = color.NRGBA{B: 255, A: 128}
	colAvg  = color.NRGBA{R: 255, A: 128}
)

func (mgr *manager) plot(rep *report, cfg Config) error {
	var grp errgroup.Group
	grp.Go(func() error {
		err := mgr.plotDay(&rep.plots.Day, rep.sum, cfg)
		if err != nil {
			return fmt.Errorf("could not create hour-of-day plot: %w", err)
		}
		return nil
	})

	grp.Go(func() error {
		err := mgr.plotSeq(&rep.plots.Seq, rep.sum, cfg)
		if err != nil {
			return fmt.Errorf("could not create sequence plot: %w", err)
		}
		return nil
	})

	grp.Go(func() error {
		err := mgr.plotTime(&rep.plots.Time, rep.sum, cfg)
		if err != nil {
			return fmt.Errorf("could not create timeline plot: %w", err)
		}
		return nil
	})

	err := grp.Wait()
	if err != nil {
		return fmt.Errorf("could not create plots: %w", err)
	}

	return nil
}

// plotDay draws each rest period as a segment spanning its hours of the
// day, at the height of its loss rate.
func (mgr *manager) plotDay(buf *bytes.Buffer, sum vampire.Summary, cfg Config) error {
	plt := mgr.newPlot(cfg)
	plt.X.Label.Text = "Hour of day"

	loc := cfg.loc()
	for _, r := range sum.Rests {
		var (
			rate = r.AvgLoss()
			xs   = []float64{hourOfDay(r.Beg, loc), hourOfDay(r.End, loc)}
			ys   = []float64{rate, rate}
		)
		lin, err := hplot.NewLine(hplot.ZipXY(xs, ys))
		if err != nil {
			return fmt.Errorf("could not create rest line: %w", err)
		}
		lin.LineStyle.Color = colRest
		lin.LineStyle.Width = vg.Points(3)
		plt.Add(lin)
	}

	avg, err := avgLine(0, 23.99, sum.AvgLoss)
	if err != nil {
		return err
	}
	plt.Add(avg)

	plt.X.Min = 0
	plt.X.Max = 24
	ticks := make([]plot.Tick, 0, 25)
	for h := 0; h <= 24; h++ {
		tck := plot.Tick{Value: float64(h)}
		if h%2 == 0 {
			tck.Label = fmt.Sprintf("%2d", h%24)
		}
		ticks = append(ticks, tck)
	}
	plt.X.Tick.Marker = plot.ConstantTicks(ticks)

	return render(buf, plt)
}

// plotSeq draws the loss rate of each rest period, in order.
func (mgr *manager) plotSeq(buf *bytes.Buffer, sum vampire.Summary, cfg Config) error {
	plt := mgr.newPlot(cfg)
	plt.X.Label.Text = "Rest period"

	var (
		xs = make([]float64, 0, len(sum.Rests))
		ys = make([]float64, 0, len(sum.Rests))
	)
	for i, r := range sum.Rests {
		xs = append(xs, float64(i))
		ys = append(ys, r.AvgLoss())
	}

	sca, err := hplot.NewScatter(hplot.ZipXY(xs, ys))
	if err != nil {
		return fmt.Errorf("could not create scatter plot: %w", err)
	}
	sca.GlyphStyle.Color = colDot
	sca.GlyphStyle.Radius = vg.Points(4)
	sca.GlyphStyle.Shape = draw.CircleGlyph{}

	avg, err := avgLine(0, float64(len(sum.Rests)-1), sum.AvgLoss)
	if err != nil {
		return err
	}
	plt.Add(sca, avg)

	return render(buf, plt)
}

// plotTime draws the loss rate of each rest period against its start date.
func (mgr *manager) plotTime(buf *bytes.Buffer, sum vampire.Summary, cfg Config) error {
	loc := cfg.loc()
	plt := mgr.newPlot(cfg)
	plt.X.Label.Text = "Rest start (" + loc.String() + ")"
	plt.X.Tick.Marker = epok.Ticks{
		Converter: tcnv,
		Format:    "2006-01-02\n15:04",
	}

	var (
		xs = make([]float64, 0, len(sum.Rests))
		ys = make([]float64, 0, len(sum.Rests))
	)
	for _, r := range sum.Rests {
		xs = append(xs, tcnv.FromTime(wallClock(r.Beg, loc)))
		ys = append(ys, r.AvgLoss())
	}

	sca, err := hplot.NewScatter(hplot.ZipXY(xs, ys))
	if err != nil {
		return fmt.Errorf("could not create scatter plot: %w", err)
	}
	sca.GlyphStyle.Color = colDot
	sca.GlyphStyle.Radius = 2
	sca.GlyphStyle.Shape = draw.CircleGlyph{}

	lin, err := hplot.NewLine(hplot.ZipXY(xs, ys))
	if err != nil {
		return fmt.Errorf("could not create line plot: %w", err)
	}
	lin.LineStyle.Color = colRest

	plt.Add(lin, sca)
	return render(buf, plt)
}

func (mgr *manager) newPlot(cfg Config) *hplot.Plot {
	plt := hplot.New()
	plt.Title.Text = "Vampire loss - vehicle: " + mgr.id
	plt.Y.Label.Text = fmt.Sprintf("Loss [%s/h]", cfg.Units)
	plt.Add(hplot.NewGrid())
	return plt
}

func avgLine(beg, end, avg float64) (*plotter.Line, error) {
	lin, err := hplot.NewLine(hplot.ZipXY([]float64{beg, end}, []float64{avg, avg}))
	if err != nil {
		return nil, fmt.Errorf("could not create average line: %w", err)
	}
	lin.LineStyle.Color = colAvg
	lin.LineStyle.Width = vg.Points(4)
	return lin, nil
}

func render(buf *bytes.Buffer, plt *hplot.Plot) error {
	buf.Reset()

	const size = 20 * vg.Centimeter
	cnv := vgimg.PngCanvas{
		Canvas: vgimg.New(vg.Length(math.Phi)*size, size),
	}
	plt.Draw(draw.New(cnv))
	_, err := cnv.WriteTo(buf)
	if err != nil {
		return fmt.Errorf("could not encode plot: %w", err)
	}
	return nil
}

// wallClock returns the UTC instant reading the same as t does in loc,
// so that UTC ticks show local dates.
func wallClock(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func hourOfDay(t time.Time, loc *time.Location) float64 {
	t = t.In(loc)
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}
