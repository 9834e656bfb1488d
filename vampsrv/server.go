// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vampsrv serves vampire loss reports and charts over HTTP.
package vampsrv // import "sbinet.org/x/vampire/vampsrv"

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/maypok86/otter/v2"
	"go.uber.org/zap"
	"sbinet.org/x/vampire"
)

// Config configures a Server.
type Config struct {
	vampire.Config

	Root  string        // URL prefix of all endpoints
	Units vampire.Units // distance units used for display
}

func (cfg Config) loc() *time.Location {
	if cfg.Location == nil {
		return time.Local
	}
	return cfg.Location
}

type Server struct {
	mux *mux.Router
	log *zap.SugaredLogger

	mu   sync.RWMutex
	db   vampire.DB
	ids  []string
	mgrs map[string]*manager

	cfg   Config
	root  string
	tmpl  *template.Template
	cache *otter.Cache[string, *report]
}

// NewServer creates a server for the vehicles stored in db.
// The server takes ownership of db.
func NewServer(db vampire.DB, cfg Config, log *zap.SugaredLogger) (*Server, error) {
	if cfg.Units == "" {
		cfg.Units = vampire.Kilometers
	}
	if cfg.MinRest == 0 {
		cfg.MinRest = vampire.MinRestPeriod
	}

	srv := &Server{
		db:   db,
		log:  log,
		mux:  mux.NewRouter(),
		mgrs: make(map[string]*manager),
		cfg:  cfg,
		root: strings.TrimRight(cfg.Root, "/") + "/",
		tmpl: template.Must(template.New("vampire").Parse(page)),
		cache: otter.Must(&otter.Options[string, *report]{
			MaximumSize: 256,
		}),
	}

	root := srv.root
	srv.mux.HandleFunc(root, srv.handleRoot).Methods(http.MethodGet)
	srv.mux.HandleFunc(root+"favicon.ico", func(w http.ResponseWriter, r *http.Request) {})
	srv.mux.HandleFunc(root+"post", srv.handleIngest).Methods(http.MethodPost)
	srv.mux.HandleFunc(root+"vehicles", srv.handleVehicles).Methods(http.MethodGet, http.MethodPost)
	srv.mux.HandleFunc(root+"plot-day", srv.handlePlot(func(rep *report) *bytes.Buffer { return &rep.plots.Day })).Methods(http.MethodGet)
	srv.mux.HandleFunc(root+"plot-seq", srv.handlePlot(func(rep *report) *bytes.Buffer { return &rep.plots.Seq })).Methods(http.MethodGet)
	srv.mux.HandleFunc(root+"plot-time", srv.handlePlot(func(rep *report) *bytes.Buffer { return &rep.plots.Time })).Methods(http.MethodGet)
	srv.mux.HandleFunc(root+"report", srv.handleReport).Methods(http.MethodGet)
	srv.mux.HandleFunc(root+"api", srv.handleAPI).Methods(http.MethodGet)

	err := srv.init()
	if err != nil {
		return nil, fmt.Errorf("could not initialize server: %w", err)
	}

	return srv, nil
}

func (srv *Server) Close() error {
	return srv.db.Close()
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.mux.ServeHTTP(w, r)
}

func (srv *Server) fail(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		srv.log.Errorw("request failed", "error", err)
	} else {
		srv.log.Debugw("bad request", "error", err)
	}
	http.Error(w, err.Error(), code)
}

// query is the vehicle and period a request asks about.
type query struct {
	mgr  *manager
	from string
	to   string
	p    vampire.Period
}

func (srv *Server) query(r *http.Request) (query, error) {
	var q query
	err := r.ParseForm()
	if err != nil {
		return q, fmt.Errorf("could not parse form: %w", err)
	}

	q.mgr, err = srv.mgrFor(r)
	if err != nil {
		return q, fmt.Errorf("could not find vehicle manager: %w", err)
	}

	if r.Form.Get("all") != "" {
		q.p = vampire.AllTime()
		return q, nil
	}

	q.from = r.Form.Get("from")
	q.to = r.Form.Get("to")
	q.p, err = vampire.ParseDays(q.from, q.to, srv.cfg.loc())
	if err != nil {
		return q, err
	}
	return q, nil
}

// report returns the analysis for q, computing it on a cache miss.
func (srv *Server) report(q query) (*report, error) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	key := fmt.Sprintf(
		"%s|%d|%d|%d", q.mgr.id,
		q.p.Beg.UnixMilli(), q.p.End.UnixMilli(), q.mgr.last.Time.UnixMilli(),
	)
	if rep, ok := srv.cache.GetIfPresent(key); ok {
		return rep, nil
	}

	start := time.Now()
	rep, err := q.mgr.analyze(srv.db, q.p, srv.cfg)
	if err != nil {
		return nil, err
	}
	srv.log.Debugw("analyzed rest periods",
		"vehicle", q.mgr.id,
		"rests", len(rep.sum.Rests),
		"elapsed", time.Since(start),
	)
	srv.cache.Set(key, rep)
	return rep, nil
}

func (srv *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	q, err := srv.query(r)
	if err != nil {
		srv.fail(w, http.StatusBadRequest, err)
		return
	}

	rep, err := srv.report(q)
	if err != nil {
		srv.fail(w, http.StatusInternalServerError, fmt.Errorf("could not analyze vehicle=%q: %w", q.mgr.id, err))
		return
	}

	srv.mu.RLock()
	ctx := struct {
		Root      string
		Vehicles  []string
		VehicleID string
		Status    string
		From      string
		To        string
		NoData    bool
		Report    string
	}{
		Root:      srv.root,
		Vehicles:  append([]string(nil), srv.ids...),
		VehicleID: q.mgr.id,
		Status:    status(q.mgr.last),
		From:      q.from,
		To:        q.to,
		NoData:    rep.noData,
		Report:    rep.text,
	}
	srv.mu.RUnlock()

	buf := new(bytes.Buffer)
	err = srv.tmpl.Execute(buf, ctx)
	if err != nil {
		srv.fail(w, http.StatusInternalServerError, fmt.Errorf("could not display page for vehicle=%q: %w", q.mgr.id, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.Copy(w, buf)
}

func (srv *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q, err := srv.query(r)
	if err != nil {
		srv.fail(w, http.StatusBadRequest, err)
		return
	}

	rep, err := srv.report(q)
	if err != nil {
		srv.fail(w, http.StatusInternalServerError, fmt.Errorf("could not analyze vehicle=%q: %w", q.mgr.id, err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, rep.text)
}

func (srv *Server) handlePlot(sel func(rep *report) *bytes.Buffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := srv.query(r)
		if err != nil {
			srv.fail(w, http.StatusBadRequest, err)
			return
		}

		rep, err := srv.report(q)
		if err != nil {
			srv.fail(w, http.StatusInternalServerError, fmt.Errorf("could not analyze vehicle=%q: %w", q.mgr.id, err))
			return
		}
		if rep.noData {
			http.Error(w, "no rest periods", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(sel(rep).Bytes())
	}
}

func (srv *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var (
		req struct {
			ID      string           `json:"vehicle_id"`
			Samples []vampire.Sample `json:"samples"`
		}
		err = json.NewDecoder(r.Body).Decode(&req)
	)
	if err != nil {
		srv.fail(w, http.StatusBadRequest, fmt.Errorf("could not decode JSON payload: %w", err))
		return
	}

	err = srv.write(req.ID, req.Samples)
	switch {
	case errors.Is(err, vampire.ErrNoVehicle):
		srv.fail(w, http.StatusBadRequest, fmt.Errorf("could not store samples for vehicle=%q: %w", req.ID, err))
		return
	case err != nil:
		srv.fail(w, http.StatusInternalServerError, fmt.Errorf("could not store samples for vehicle=%q: %w", req.ID, err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (srv *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var (
			req struct {
				ID string `json:"vehicle_id"`
			}
			err = json.NewDecoder(r.Body).Decode(&req)
		)
		if err != nil {
			srv.fail(w, http.StatusBadRequest, fmt.Errorf("could not decode JSON payload: %w", err))
			return
		}

		err = srv.addVehicle(req.ID)
		switch {
		case errors.Is(err, vampire.ErrDupVehicle):
			srv.fail(w, http.StatusConflict, err)
			return
		case err != nil:
			srv.fail(w, http.StatusBadRequest, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		return
	}

	srv.mu.RLock()
	ids := append([]string{}, srv.ids...)
	srv.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Vehicles []string `json:"vehicles"`
	}{ids})
}

// Message holds the vampire loss analysis of a vehicle.
type Message struct {
	Root      string   `json:"root"`
	Vehicles  []string `json:"vehicles"`
	VehicleID string   `json:"vehicle_id"`
	Status    string   `json:"status"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Units     string   `json:"units"`
	NoData    bool     `json:"no_data"`

	Hours   float64       `json:"hours,omitempty"`
	Loss    float64       `json:"loss,omitempty"`
	AvgLoss float64       `json:"avg_loss,omitempty"`
	StdDev  float64       `json:"std_dev,omitempty"`
	Rests   []RestMessage `json:"rests,omitempty"`
	Report  string        `json:"report"`

	Plots struct {
		Day  string `json:"day,omitempty"`
		Seq  string `json:"seq,omitempty"`
		Time string `json:"time,omitempty"`
	} `json:"plots"`
}

// RestMessage describes a single rest period.
type RestMessage struct {
	Beg      int64   `json:"beg"` // milliseconds since epoch
	End      int64   `json:"end"` // milliseconds since epoch
	BegRange float64 `json:"beg_range"`
	EndRange float64 `json:"end_range"`
	Hours    float64 `json:"hours"`
	Loss     float64 `json:"loss"`
	AvgLoss  float64 `json:"avg_loss"`
	Tooltip  string  `json:"tooltip"`
}

func (srv *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	q, err := srv.query(r)
	if err != nil {
		srv.fail(w, http.StatusBadRequest, err)
		return
	}

	rep, err := srv.report(q)
	if err != nil {
		srv.fail(w, http.StatusInternalServerError, fmt.Errorf("could not analyze vehicle=%q: %w", q.mgr.id, err))
		return
	}

	srv.mu.RLock()
	msg := Message{
		Root:      srv.root,
		Vehicles:  append([]string(nil), srv.ids...),
		VehicleID: q.mgr.id,
		Status:    status(q.mgr.last),
		From:      q.from,
		To:        q.to,
		Units:     string(srv.cfg.Units),
		NoData:    rep.noData,
		Report:    rep.text,
	}
	srv.mu.RUnlock()

	if !rep.noData {
		loc := srv.cfg.loc()
		msg.Hours = rep.sum.Total.Hours()
		msg.Loss = rep.sum.Loss
		msg.AvgLoss = rep.sum.AvgLoss
		msg.StdDev = rep.sum.StdDev
		msg.Rests = make([]RestMessage, len(rep.sum.Rests))
		for i, r := range rep.sum.Rests {
			msg.Rests[i] = RestMessage{
				Beg:      r.Beg.UnixMilli(),
				End:      r.End.UnixMilli(),
				BegRange: r.BegRange,
				EndRange: r.EndRange,
				Hours:    r.Hours(),
				Loss:     r.Loss(),
				AvgLoss:  r.AvgLoss(),
				Tooltip:  r.Tooltip(loc, srv.cfg.Units),
			}
		}
		msg.Plots.Day = base64.StdEncoding.EncodeToString(rep.plots.Day.Bytes())
		msg.Plots.Seq = base64.StdEncoding.EncodeToString(rep.plots.Seq.Bytes())
		msg.Plots.Time = base64.StdEncoding.EncodeToString(rep.plots.Time.Bytes())
	}

	buf := new(bytes.Buffer)
	err = json.NewEncoder(buf).Encode(msg)
	if err != nil {
		srv.fail(w, http.StatusInternalServerError, fmt.Errorf("could not encode message for vehicle=%q: %w", q.mgr.id, err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = io.Copy(w, buf)
	if err != nil {
		srv.log.Errorw("could not write message", "vehicle", q.mgr.id, "error", err)
	}
}

func (srv *Server) mgrFor(r *http.Request) (*manager, error) {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	id := r.Form.Get("vehicle_id")
	if id == "" {
		switch len(srv.ids) {
		case 0:
			return nil, fmt.Errorf("no vehicle registered: %w", vampire.ErrNoVehicle)
		case 1:
			id = srv.ids[0]
		default:
			return nil, fmt.Errorf("could not find vehicle_id parameter form")
		}
	}

	mgr, ok := srv.mgrs[id]
	if !ok {
		return nil, fmt.Errorf("could not find manager for vehicle=%q: %w", id, vampire.ErrNoVehicle)
	}

	return mgr, nil
}

func status(last vampire.Sample) string {
	if last.Time.IsZero() {
		return "No samples yet.\n"
	}
	return "Last sample:\n" + last.String()
}

const page = `
<html>
	<head>
		<title>Vampire loss</title>
	</head>

	<body>
{{- if .Vehicles}}
		<h2>Vehicles</h2>
		<ul>
{{- with $ctx := .}}
{{- range .Vehicles}}
			<li><a href="{{$ctx.Root}}?vehicle_id={{.}}&from={{$ctx.From}}&to={{$ctx.To}}">{{.}}</a></li>
{{- end}}
{{- end}}
		</ul>
{{- end}}
		<form action="{{.Root}}" method="get">
			<input type="hidden" name="vehicle_id" value="{{.VehicleID}}">
			From: <input type="date" name="from" value="{{.From}}">
			To: <input type="date" name="to" value="{{.To}}">
			<input type="submit" value="Select">
			<a href="{{.Root}}?vehicle_id={{.VehicleID}}&all=1">All data</a>
		</form>
		<pre>
Vehicle:     {{.VehicleID}}
{{.Status}}
		</pre>
		<hr>
		<pre>
{{.Report}}
		</pre>
{{- if not .NoData}}
		<!-- Loss by hour of day -->
		<hr>
        <div class="row align-items-center justify-content-center">
		  <img src="{{.Root}}plot-day?vehicle_id={{.VehicleID}}&from={{.From}}&to={{.To}}"/>
        </div>

		<!-- Loss by rest period -->
		<hr>
        <div class="row align-items-center justify-content-center">
		  <img src="{{.Root}}plot-seq?vehicle_id={{.VehicleID}}&from={{.From}}&to={{.To}}"/>
        </div>

		<!-- Loss over time -->
		<hr>
        <div class="row align-items-center justify-content-center">
		  <img src="{{.Root}}plot-time?vehicle_id={{.VehicleID}}&from={{.From}}&to={{.To}}"/>
        </div>
{{- end}}
	</body>
</html>
`
