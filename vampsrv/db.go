// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampsrv // import "sbinet.org/x/vampire/vampsrv"

import (
	"errors"
	"fmt"
	"sort"

	"sbinet.org/x/vampire"
)

func (srv *Server) init() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	ids, err := srv.db.Vehicles()
	if err != nil {
		return fmt.Errorf("could not retrieve vehicle ids: %w", err)
	}
	srv.ids = ids

	sort.Strings(srv.ids)
	for _, id := range srv.ids {
		mgr := newManager(id)
		last, err := srv.db.Last(id)
		switch {
		case err == nil:
			mgr.last = last
		case errors.Is(err, vampire.ErrNoData):
			// ok.
		default:
			return fmt.Errorf("could not find last sample for %q: %w", id, err)
		}
		srv.mgrs[id] = mgr
	}

	return nil
}

func (srv *Server) addVehicle(id string) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	err := srv.db.AddVehicle(id)
	if err != nil {
		return fmt.Errorf("could not add vehicle %q: %w", id, err)
	}
	srv.mgrs[id] = newManager(id)
	srv.ids = append(srv.ids, id)
	sort.Strings(srv.ids)
	srv.log.Infow("added vehicle", "vehicle", id)
	return nil
}

func (srv *Server) write(id string, vs []vampire.Sample) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	mgr, ok := srv.mgrs[id]
	if !ok {
		return fmt.Errorf("no such vehicle %q: %w", id, vampire.ErrNoVehicle)
	}

	if len(vs) == 0 {
		return nil
	}

	plural := ""
	if len(vs) > 1 {
		plural = "s"
	}
	srv.log.Infof("writing %d new sample%s to db for vehicle=%q...", len(vs), plural, id)

	err := srv.db.PutSamples(id, vs)
	if err != nil {
		return fmt.Errorf("could not write samples to db: %w", err)
	}

	last, err := srv.db.Last(id)
	if err != nil && !errors.Is(err, vampire.ErrNoData) {
		return fmt.Errorf("could not update last sample for vehicle %q: %w", id, err)
	}
	mgr.last = last

	return nil
}
