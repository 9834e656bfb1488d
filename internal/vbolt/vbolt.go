// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vbolt provides an implementation of a vampire database, backed by bbolt.
package vbolt // import "sbinet.org/x/vampire/internal/vbolt"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
	"sbinet.org/x/vampire"
)

var (
	bucketRoot = []byte("vampire")
	bucketIDs  = []byte("vehicle-ids")
)

type DB struct {
	db *bbolt.DB

	last map[string]vampire.Sample
}

var _ vampire.DB = (*DB)(nil)

// Open opens and initializes a boltdb-backed vampire database.
func Open(fname string) (*DB, error) {
	db, err := bbolt.Open(fname, 0644, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open vampire db: %w", err)
	}

	var vehicles []string
	err = db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(bucketRoot)
		if err != nil {
			return fmt.Errorf("could not create %q bucket: %w", bucketRoot, err)
		}

		ids, err := root.CreateBucketIfNotExists(bucketIDs)
		if err != nil {
			return fmt.Errorf("could not create %q bucket: %w", bucketIDs, err)
		}
		return ids.ForEach(func(k, v []byte) error {
			vehicles = append(vehicles, string(k))
			return nil
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not setup vampire db buckets: %w", err)
	}

	sort.Strings(vehicles)
	last := make(map[string]vampire.Sample, len(vehicles))
	err = db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketRoot)
		for _, id := range vehicles {
			bkt := root.Bucket([]byte(id))
			if bkt == nil {
				return fmt.Errorf("could not find data bucket for vehicle %q", id)
			}
			var v vampire.Sample
			if _, raw := bkt.Cursor().Last(); raw != nil {
				err := unmarshal(&v, raw)
				if err != nil {
					return fmt.Errorf("could not decode last sample of vehicle %q: %w", id, err)
				}
			}
			last[id] = v
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not find last data sample: %w", err)
	}

	return &DB{db: db, last: last}, nil
}

// Close closes a vampire database
func (db *DB) Close() error {
	if db.db != nil {
		err := db.db.Close()
		if err != nil {
			return fmt.Errorf("could not close boltdb: %w", err)
		}
		db.db = nil
	}

	return nil
}

// PutSamples puts the provided samples for the vehicle id into the underlying store
func (db *DB) PutSamples(id string, vs []vampire.Sample) error {
	last, err := db.Last(id)
	if err != nil {
		switch {
		case errors.Is(err, vampire.ErrNoData):
			// ok.
		default:
			return err
		}
	}

	vs = vampire.Newer(vs, last)
	if len(vs) == 0 {
		return nil
	}

	err = db.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketRoot)
		if root == nil {
			return fmt.Errorf("could not access %q bucket", bucketRoot)
		}

		bkt := root.Bucket([]byte(id))
		if bkt == nil {
			return fmt.Errorf("could not access data bucket for vehicle %q", id)
		}

		for _, v := range vs {
			k, err := key(v.Time)
			if err != nil {
				return err
			}
			buf, err := marshal(v)
			if err != nil {
				return fmt.Errorf("could not marshal sample %v: %w", v.Time, err)
			}

			err = bkt.Put(k, buf)
			if err != nil {
				return fmt.Errorf("could not store sample %v: %w", v.Time, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not write samples to db: %w", err)
	}
	db.last[id] = vs[len(vs)-1]
	return nil
}

// Samples iterates over samples for the vehicle id and the requested period.
func (db *DB) Samples(id string, p vampire.Period) iter.Seq2[vampire.Sample, error] {
	return func(yield func(v vampire.Sample, err error) bool) {
		var rows []vampire.Sample
		err := db.db.View(func(tx *bbolt.Tx) error {
			root := tx.Bucket(bucketRoot)
			if root == nil {
				return fmt.Errorf("could not find %q bucket", bucketRoot)
			}

			bkt := root.Bucket([]byte(id))
			if bkt == nil {
				return fmt.Errorf("could not find data bucket for vehicle=%q: %w", id, vampire.ErrNoVehicle)
			}

			var (
				cur  = bkt.Cursor()
				k, v []byte
			)
			if p.Beg.UnixMilli() > 0 {
				beg, err := key(p.Beg)
				if err != nil {
					return err
				}
				k, v = cur.Seek(beg)
			} else {
				k, v = cur.First()
			}
			for ; k != nil; k, v = cur.Next() {
				var row vampire.Sample
				err := unmarshal(&row, v)
				if err != nil {
					return fmt.Errorf("could not decode sample: %w", err)
				}
				if !p.Contains(row.Time) {
					break
				}
				rows = append(rows, row)
			}
			return nil
		})
		if err != nil {
			_ = yield(vampire.Sample{}, fmt.Errorf("could not read rows: %w", err))
			return
		}

		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Last returns the last sample for the provided vehicle id
func (db *DB) Last(id string) (vampire.Sample, error) {
	last, ok := db.last[id]
	if !ok {
		return last, fmt.Errorf("could not find vehicle %q: %w", id, vampire.ErrNoVehicle)
	}

	if last.Time.IsZero() {
		return last, vampire.ErrNoData
	}

	return last, nil
}

// AddVehicle declares a new vehicle id
func (db *DB) AddVehicle(id string) error {
	if _, dup := db.last[id]; dup {
		return vampire.ErrDupVehicle
	}
	if id == "" || id == string(bucketIDs) {
		return fmt.Errorf("invalid vehicle id %q", id)
	}

	err := db.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketRoot)
		if root == nil {
			return fmt.Errorf("could not access %q bucket", bucketRoot)
		}

		ids := root.Bucket(bucketIDs)
		if ids == nil {
			return fmt.Errorf("could not access %q bucket", bucketIDs)
		}
		err := ids.Put([]byte(id), []byte(id))
		if err != nil {
			return fmt.Errorf("could not store vehicle id %q: %w", id, err)
		}

		_, err = root.CreateBucketIfNotExists([]byte(id))
		if err != nil {
			return fmt.Errorf("could not create data bucket for vehicle %q: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not add vehicle %q: %w", id, err)
	}
	db.last[id] = vampire.Sample{}
	return nil
}

// Vehicles returns the vehicle ids list
func (db *DB) Vehicles() ([]string, error) {
	vehicles := make([]string, 0, len(db.last))
	for id := range db.last {
		vehicles = append(vehicles, id)
	}
	sort.Strings(vehicles)
	return vehicles, nil
}

// key encodes t as big-endian milliseconds, so that keys sort in time order.
func key(t time.Time) ([]byte, error) {
	ms := t.UnixMilli()
	if ms < 0 {
		return nil, fmt.Errorf("invalid sample time %v: before epoch", t)
	}
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(ms))
	return k, nil
}

type record struct {
	Time    int64    `msgpack:"t"`
	Speed   *float64 `msgpack:"s"`
	Range   *float64 `msgpack:"r"`
	Voltage *float64 `msgpack:"v"`
}

func marshal(v vampire.Sample) ([]byte, error) {
	return msgpack.Marshal(record{
		Time:    v.Time.UnixMilli(),
		Speed:   v.Speed,
		Range:   v.Range,
		Voltage: v.Voltage,
	})
}

func unmarshal(v *vampire.Sample, p []byte) error {
	var rec record
	err := msgpack.Unmarshal(p, &rec)
	if err != nil {
		return err
	}
	*v = vampire.Sample{
		Time:    time.UnixMilli(rec.Time).UTC(),
		Speed:   rec.Speed,
		Range:   rec.Range,
		Voltage: rec.Voltage,
	}
	return nil
}
