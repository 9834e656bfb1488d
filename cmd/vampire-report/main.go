// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command vampire-report prints the vampire loss report of a vehicle,
// read from a samples database or from a JSON sample file.
package main // import "sbinet.org/x/vampire/cmd/vampire-report"

import (
	"errors"
	"fmt"
	"io"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/fatih/color"
	"sbinet.org/x/vampire"
	"sbinet.org/x/vampire/internal/cli"
	"sbinet.org/x/vampire/internal/vlog"
)

var version = "No version provided"

type Args struct {
	Vehicle string `arg:"--vehicle,env:VAMPIRE_VEHICLE" help:"vehicle id to analyze in DB"`
	Input   string `arg:"--input" help:"JSON sample file to analyze instead of the DB"`
	From    string `arg:"--from" help:"first day of the report (2006-01-02)"`
	To      string `arg:"--to" help:"last day of the report (2006-01-02), inclusive"`
	NoColor bool   `arg:"--no-color" help:"disable colored output"`
	Debug   bool   `arg:"--debug" help:"enable debug logging"`
	cli.StoreArgs
	cli.AnalysisArgs
}

func (Args) Version() string {
	return version
}

func (Args) Description() string {
	return "vampire-report prints rest periods and the vampire loss of a vehicle."
}

func main() {
	args := Args{AnalysisArgs: cli.DefaultAnalysisArgs}
	arg.MustParse(&args)

	log, err := vlog.New("vampire-report", args.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vampire-report: %+v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if args.NoColor {
		color.NoColor = true
	}

	err = xmain(os.Stdout, args)
	if err != nil {
		log.Errorw("could not create report", "error", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func xmain(w io.Writer, args Args) error {
	cfg, units, err := args.Config()
	if err != nil {
		return fmt.Errorf("could not configure analysis: %w", err)
	}

	p, err := vampire.ParseDays(args.From, args.To, cfg.Location)
	if err != nil {
		return fmt.Errorf("invalid report period: %w", err)
	}

	vs, err := load(args, p)
	if err != nil {
		return err
	}

	rests, err := vampire.Analyze(vs, p, cfg)
	if err != nil {
		return fmt.Errorf("could not analyze samples: %w", err)
	}

	title := color.New(color.FgHiWhite, color.Bold)
	_, _ = title.Fprintf(w, "Vampire loss report for %s\n", name(args))
	_, _ = color.New(color.FgHiBlack).Fprintf(w, "%d samples, minimum rest %v, %s\n", len(vs), cfg.MinRest, cfg.Location)

	sum, err := vampire.Summarize(rests)
	if errors.Is(err, vampire.ErrNoData) {
		_, _ = color.New(color.FgYellow).Fprintln(w, "No rest periods found in the selected period.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not summarize rest periods: %w", err)
	}

	err = sum.WriteReport(w, cfg.Location, units)
	if err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}
	return nil
}

func load(args Args, p vampire.Period) ([]vampire.Sample, error) {
	if args.Input != "" {
		return cli.LoadSamples(args.Input)
	}

	if args.Vehicle == "" {
		return nil, fmt.Errorf("missing vehicle id or input file")
	}

	db, err := args.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open vampire db: %w", err)
	}
	defer db.Close()

	return vampire.ReadAll(db, args.Vehicle, p)
}

func name(args Args) string {
	if args.Input != "" {
		return args.Input
	}
	return fmt.Sprintf("vehicle %q", args.Vehicle)
}
