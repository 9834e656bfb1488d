// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vsqlite provides an implementation of a vampire database, backed by SQlite3.
package vsqlite // import "sbinet.org/x/vampire/internal/vsqlite"

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
	"sbinet.org/x/vampire"
)

type DB struct {
	db *sql.DB

	last map[string]vampire.Sample
}

var _ vampire.DB = (*DB)(nil)

// Open opens and initializes a sqlite3-backed vampire database.
func Open(fname string) (*DB, error) {
	if _, err := os.Stat(fname); errors.Is(err, fs.ErrNotExist) {
		err = createDB(context.Background(), fname)
		if err != nil {
			return nil, fmt.Errorf("could not create vampire db: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fname)
	if err != nil {
		return nil, fmt.Errorf("could not open vampire db %q: %w", fname, err)
	}

	store := &DB{
		db:   db,
		last: make(map[string]vampire.Sample),
	}
	err = store.init()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not setup vampire db %q: %w", fname, err)
	}

	return store, nil
}

func createDB(ctx context.Context, fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create vampire db %q: %w", fname, err)
	}
	defer f.Close()

	db, err := sql.Open("sqlite", fname)
	if err != nil {
		return fmt.Errorf("could not open vampire db %q: %w", fname, err)
	}
	defer db.Close()

	{
		stmt := `CREATE TABLE vehicles (
		id    TEXT NOT NULL PRIMARY KEY, -- vehicle id (VIN or user label)
		name  TEXT NOT NULL              -- table name for this vehicle
)
`
		_, err = db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("could not create vehicles table %q: %w", fname, err)
		}
	}

	// Use Write Ahead Logging which improves SQLite concurrency.
	// Requires SQLite >= 3.7.0
	_, err = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	if err != nil {
		return fmt.Errorf("could not set WAL mode: %w", err)
	}

	var journalMode string
	if err = db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("could not determine sqlite3 journal_mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("could not set sqlite WAL mode")
	}

	return nil
}

const columns = `time, speed, est_range, voltage`

func (db *DB) init() error {
	{
		const stmt = `SELECT id FROM vehicles`
		rows, err := db.db.Query(stmt)
		if err != nil {
			return fmt.Errorf("could not retrieve vehicles list: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id  string
				err = rows.Scan(&id)
			)
			if err != nil {
				return fmt.Errorf("could not scan vehicle id row: %w", err)
			}
			db.last[id] = vampire.Sample{}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("could not iterate over vehicles: %w", err)
		}
	}

	ids := make([]string, 0, len(db.last))
	for id := range db.last {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		err := func(id string) error {
			tbl := db.table(id)
			rows, err := db.db.Query(`SELECT ` + columns + ` FROM ` + tbl + ` ORDER BY time DESC LIMIT 1`)
			if err != nil {
				return fmt.Errorf("could not issue query: %w", err)
			}
			defer rows.Close()

			if !rows.Next() {
				// no data.
				return rows.Err()
			}

			row, err := scan(rows)
			if err != nil {
				return fmt.Errorf("could not scan row: %w", err)
			}
			db.last[id] = row
			return nil
		}(id)
		if err != nil {
			return fmt.Errorf("could not fetch last sample for vehicle %q: %w", id, err)
		}
	}

	return nil
}

func (db *DB) table(id string) string {
	sha := sha256.New224()
	_, err := io.Copy(sha, strings.NewReader(id))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("veh_%x", sha.Sum(nil))
}

// Close closes a vampire database
func (db *DB) Close() error {
	if db.db != nil {
		err := db.db.Close()
		if err != nil {
			return fmt.Errorf("could not close sqlite db: %w", err)
		}
		db.db = nil
	}

	return nil
}

// PutSamples puts the provided samples for the vehicle id into the underlying store
func (db *DB) PutSamples(id string, vs []vampire.Sample) (err error) {
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

	tbl := db.table(id)
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("could not create sqlite transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	stmt := `INSERT OR REPLACE INTO ` + tbl + ` (` + columns + `) VALUES (?1, ?2, ?3, ?4)`
	for _, v := range vs {
		_, err = tx.Exec(stmt,
			v.Time.UnixMilli(),
			null(v.Speed),
			null(v.Range),
			null(v.Voltage),
		)
		if err != nil {
			return fmt.Errorf("could not insert sample %q: %w", v.Time, err)
		}
		last = v
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("could not commit sqlite transaction: %w", err)
	}
	db.last[id] = last

	return nil
}

// Samples iterates over samples for the vehicle id and the requested period.
func (db *DB) Samples(id string, p vampire.Period) iter.Seq2[vampire.Sample, error] {
	return func(yield func(v vampire.Sample, err error) bool) {
		if _, ok := db.last[id]; !ok {
			_ = yield(vampire.Sample{}, fmt.Errorf("could not find vehicle %q: %w", id, vampire.ErrNoVehicle))
			return
		}

		var (
			tbl  = db.table(id)
			q    = "SELECT " + columns + " FROM " + tbl + " WHERE ?1 <= time"
			args = []any{p.Beg.UnixMilli()}
		)
		if !p.Open() {
			q += " AND time <= ?2"
			args = append(args, p.End.UnixMilli())
		}
		q += " ORDER BY time ASC"

		rows, err := db.db.Query(q, args...)
		if err != nil {
			_ = yield(vampire.Sample{}, fmt.Errorf("could not issue query: %w", err))
			return
		}
		defer rows.Close()

		for i := 0; rows.Next(); i++ {
			row, err := scan(rows)
			if err != nil {
				_ = yield(row, fmt.Errorf("could not scan row %d: %w", i, err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			_ = yield(vampire.Sample{}, fmt.Errorf("could not iterate over rows: %w", err))
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
func (db *DB) AddVehicle(id string) (err error) {
	if _, dup := db.last[id]; dup {
		return vampire.ErrDupVehicle
	}
	if id == "" {
		return fmt.Errorf("invalid empty vehicle id")
	}

	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("could not create sqlite transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	name := db.table(id)
	{
		const q = `INSERT INTO vehicles (id, name) VALUES (?1, ?2)`
		_, err = tx.Exec(q, id, name)
		if err != nil {
			return fmt.Errorf("could not add vehicle %q to vehicles table: %w", id, err)
		}
	}
	{
		stmt := `CREATE TABLE ` + name + ` (
			time      INTEGER NOT NULL PRIMARY KEY, -- timestamp (milliseconds since epoch UTC)
			speed     REAL,                         -- speed (NULL when not reported)
			est_range REAL,                         -- estimated range (in distance units)
			voltage   REAL                          -- charger voltage (in V)
)
`
		_, err = tx.Exec(stmt)
		if err != nil {
			return fmt.Errorf("could not create vehicle table for %q: %w", id, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("could not commit sqlite transaction for vehicle %q: %w", id, err)
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

func scan(rows *sql.Rows) (vampire.Sample, error) {
	var (
		row            vampire.Sample
		ts             int64
		speed, rng, vv sql.NullFloat64
	)
	err := rows.Scan(&ts, &speed, &rng, &vv)
	if err != nil {
		return row, err
	}
	row.Time = time.UnixMilli(ts).UTC()
	row.Speed = opt(speed)
	row.Range = opt(rng)
	row.Voltage = opt(vv)
	return row, nil
}

func null(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func opt(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return vampire.Value(v.Float64)
}
