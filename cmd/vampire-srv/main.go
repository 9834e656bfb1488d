// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command vampire-srv serves vampire loss reports over HTTP.
package main // import "sbinet.org/x/vampire/cmd/vampire-srv"

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	arg "github.com/alexflint/go-arg"
	"go.uber.org/zap"
	"sbinet.org/x/vampire/internal/cli"
	"sbinet.org/x/vampire/internal/vlog"
	"sbinet.org/x/vampire/vampsrv"
)

var version = "No version provided"

type Args struct {
	Addr  string `arg:"--addr,env:VAMPIRE_ADDR" help:"[host]:addr to serve"`
	Root  string `arg:"--root,env:VAMPIRE_ROOT" help:"URL prefix of the served pages"`
	Debug bool   `arg:"--debug" help:"enable debug logging"`
	cli.StoreArgs
	cli.AnalysisArgs
}

func (Args) Version() string {
	return version
}

var defaultArgs = Args{
	Addr:         ":8080",
	Root:         "/",
	StoreArgs:    cli.StoreArgs{DB: "vampire.db"},
	AnalysisArgs: cli.DefaultAnalysisArgs,
}

func procArgs(input []string) (Args, error) {
	args := defaultArgs

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

func main() {
	args, err := procArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "vampire-srv: %+v\n", err)
		os.Exit(2)
	}

	log, err := vlog.New("vampire-srv", args.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vampire-srv: %+v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	err = xmain(args, log)
	if err != nil {
		log.Errorw("could not run server", "error", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func xmain(args Args, log *zap.SugaredLogger) error {
	cfg, units, err := args.Config()
	if err != nil {
		return fmt.Errorf("could not configure analysis: %w", err)
	}

	db, err := args.Open()
	if err != nil {
		return fmt.Errorf("could not open vampire db: %w", err)
	}

	srv, err := vampsrv.NewServer(db, vampsrv.Config{
		Config: cfg,
		Root:   args.Root,
		Units:  units,
	}, log)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("could not create vampire server: %w", err)
	}
	defer srv.Close()

	log.Infow("serving",
		"addr", args.Addr,
		"db", args.DB,
		"min-rest", cfg.MinRest,
		"tz", cfg.Location.String(),
		"units", units,
	)
	err = http.ListenAndServe(args.Addr, srv)
	if err != nil {
		return fmt.Errorf("could not serve %q: %w", args.Addr, err)
	}
	return nil
}
