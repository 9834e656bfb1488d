// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampsrv // import "sbinet.org/x/vampire/vampsrv"

import (
	"bytes"
	"errors"
	"fmt"

	"sbinet.org/x/vampire"
)

type manager struct {
	id string

	last vampire.Sample
}

func newManager(id string) *manager {
	return &manager{id: id}
}

func (mgr *manager) rows(db vampire.DB, p vampire.Period) ([]vampire.Sample, error) {
	rows, err := vampire.ReadAll(db, mgr.id, p)
	if err != nil {
		return nil, fmt.Errorf("could not read rows: %w", err)
	}
	return rows, nil
}

// report is the analysis of one vehicle over one period.
type report struct {
	sum    vampire.Summary
	noData bool
	text   string
	plots  struct {
		Day, Seq, Time bytes.Buffer
	}
}

func (mgr *manager) analyze(db vampire.DB, p vampire.Period, cfg Config) (*report, error) {
	rows, err := mgr.rows(db, p)
	if err != nil {
		return nil, err
	}

	rests, err := vampire.Analyze(rows, p, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("could not analyze samples for vehicle=%q: %w", mgr.id, err)
	}

	rep := new(report)
	rep.sum, err = vampire.Summarize(rests)
	switch {
	case errors.Is(err, vampire.ErrNoData):
		rep.noData = true
		rep.text = "No rest periods found in the selected period.\n"
		return rep, nil
	case err != nil:
		return nil, fmt.Errorf("could not summarize rest periods: %w", err)
	}

	buf := new(bytes.Buffer)
	err = rep.sum.WriteReport(buf, cfg.loc(), cfg.Units)
	if err != nil {
		return nil, fmt.Errorf("could not write report: %w", err)
	}
	rep.text = buf.String()

	err = mgr.plot(rep, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create plots for vehicle=%q: %w", mgr.id, err)
	}
	return rep, nil
}
