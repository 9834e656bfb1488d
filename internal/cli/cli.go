// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cli holds the command-line arguments shared by the vampire commands.
package cli // import "sbinet.org/x/vampire/internal/cli"

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sbinet.org/x/vampire"
	"sbinet.org/x/vampire/internal/vbolt"
	"sbinet.org/x/vampire/internal/vsqlite"
)

// StoreArgs selects the samples database.
type StoreArgs struct {
	DB      string `arg:"--db,env:VAMPIRE_DB" help:"path to DB file"`
	Backend string `arg:"--backend,env:VAMPIRE_BACKEND" help:"storage backend (bolt|sqlite), guessed from the file extension when empty"`
}

// Open opens the database.
func (args StoreArgs) Open() (vampire.DB, error) {
	if args.DB == "" {
		return nil, fmt.Errorf("missing DB file name")
	}
	backend := strings.ToLower(args.Backend)
	if backend == "" {
		switch strings.ToLower(filepath.Ext(args.DB)) {
		case ".sqlite", ".sqlite3":
			backend = "sqlite"
		default:
			backend = "bolt"
		}
	}

	switch backend {
	case "bolt", "bbolt":
		return vbolt.Open(args.DB)
	case "sqlite", "sqlite3":
		return vsqlite.Open(args.DB)
	default:
		return nil, fmt.Errorf("invalid storage backend %q", args.Backend)
	}
}

// AnalysisArgs tunes rest period detection and its display.
type AnalysisArgs struct {
	MinRest time.Duration `arg:"--min-rest,env:VAMPIRE_MIN_REST" help:"shortest stop counted as a rest period"`
	TZ      string        `arg:"--tz,env:VAMPIRE_TZ" help:"time zone defining calendar days (Local, UTC, Europe/Paris, ...)"`
	Units   string        `arg:"--units,env:VAMPIRE_UNITS" help:"distance units used for display (mi|km)"`
}

var DefaultAnalysisArgs = AnalysisArgs{
	MinRest: vampire.MinRestPeriod,
	TZ:      "Local",
	Units:   "km",
}

// Config returns the analysis configuration and display units.
func (args AnalysisArgs) Config() (vampire.Config, vampire.Units, error) {
	cfg := vampire.DefaultConfig()
	if args.MinRest < 0 {
		return cfg, "", fmt.Errorf("invalid negative minimum rest period %v", args.MinRest)
	}
	if args.MinRest > 0 {
		cfg.MinRest = args.MinRest
	}

	loc, err := Location(args.TZ)
	if err != nil {
		return cfg, "", err
	}
	cfg.Location = loc

	units, err := vampire.ParseUnits(args.Units)
	if err != nil {
		return cfg, "", err
	}
	return cfg, units, nil
}

// Location loads the named time zone. An empty name is the local zone.
func Location(name string) (*time.Location, error) {
	switch name {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("could not load time zone %q: %w", name, err)
	}
	return loc, nil
}

// ReadSamples decodes a JSON array of samples, sorted by time.
func ReadSamples(r io.Reader) ([]vampire.Sample, error) {
	var vs []vampire.Sample
	err := json.NewDecoder(r).Decode(&vs)
	if err != nil {
		return nil, fmt.Errorf("could not decode samples: %w", err)
	}
	sort.Stable(vampire.Samples(vs))
	return vs, nil
}

// LoadSamples reads the samples stored in the named JSON file.
func LoadSamples(fname string) ([]vampire.Sample, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("could not open sample file: %w", err)
	}
	defer f.Close()

	return ReadSamples(f)
}
