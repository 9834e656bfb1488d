// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command vampire-push uploads a JSON sample file to a vampire-srv server.
package main // import "sbinet.org/x/vampire/cmd/vampire-push"

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
	"sbinet.org/x/vampire"
	"sbinet.org/x/vampire/internal/cli"
	"sbinet.org/x/vampire/internal/vlog"
)

var version = "No version provided"

type Args struct {
	Server   string        `arg:"--server,env:VAMPIRE_SERVER" help:"base URL of the vampire server"`
	Vehicle  string        `arg:"--vehicle,required,env:VAMPIRE_VEHICLE" help:"vehicle id"`
	Input    string        `arg:"positional,required" help:"JSON sample file to upload"`
	Register bool          `arg:"--register" help:"register the vehicle before uploading"`
	Batch    int           `arg:"--batch" help:"number of samples per upload"`
	Attempts uint          `arg:"--attempts" help:"number of upload attempts per batch"`
	Delay    time.Duration `arg:"--delay" help:"initial delay between attempts"`
	Timeout  time.Duration `arg:"--timeout" help:"HTTP request timeout"`
	Debug    bool          `arg:"--debug" help:"enable debug logging"`
}

func (Args) Version() string {
	return version
}

var defaultArgs = Args{
	Server:   "http://localhost:8080",
	Batch:    1000,
	Attempts: 5,
	Delay:    time.Second,
	Timeout:  10 * time.Second,
}

func main() {
	args := defaultArgs
	arg.MustParse(&args)

	log, err := vlog.New("vampire-push", args.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vampire-push: %+v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	err = xmain(context.Background(), args, log)
	if err != nil {
		log.Errorw("could not push samples", "error", err)
		_ = log.Sync()
		os.Exit(1)
	}
}

func xmain(ctx context.Context, args Args, log *zap.SugaredLogger) error {
	vs, err := cli.LoadSamples(args.Input)
	if err != nil {
		return err
	}

	c := newClient(args, log)
	if args.Register {
		err = c.register(ctx)
		if err != nil {
			return fmt.Errorf("could not register vehicle %q: %w", args.Vehicle, err)
		}
	}

	err = c.upload(ctx, vs)
	if err != nil {
		return fmt.Errorf("could not upload samples of vehicle %q: %w", args.Vehicle, err)
	}
	return nil
}

type client struct {
	ep  string
	id  string
	log *zap.SugaredLogger

	batch    int
	attempts uint
	delay    time.Duration
	http     *http.Client
}

func newClient(args Args, log *zap.SugaredLogger) *client {
	batch := args.Batch
	if batch <= 0 {
		batch = defaultArgs.Batch
	}
	attempts := args.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return &client{
		ep:       strings.TrimRight(args.Server, "/"),
		id:       args.Vehicle,
		log:      log,
		batch:    batch,
		attempts: attempts,
		delay:    args.Delay,
		http: &http.Client{
			Timeout: args.Timeout,
		},
	}
}

// register adds the vehicle to the server. An already known vehicle is fine.
func (c *client) register(ctx context.Context) error {
	body := struct {
		ID string `json:"vehicle_id"`
	}{c.id}
	err := c.post(ctx, "/vehicles", body, http.StatusCreated, http.StatusConflict)
	if err != nil {
		return err
	}
	c.log.Infow("registered vehicle", "vehicle", c.id)
	return nil
}

func (c *client) upload(ctx context.Context, vs []vampire.Sample) error {
	for len(vs) > 0 {
		n := min(c.batch, len(vs))
		body := struct {
			ID      string           `json:"vehicle_id"`
			Samples []vampire.Sample `json:"samples"`
		}{c.id, vs[:n]}

		c.log.Infof("uploading %d samples...", n)
		err := c.post(ctx, "/post", body, http.StatusOK)
		if err != nil {
			return err
		}
		c.log.Infof("uploading %d samples... [done]", n)
		vs = vs[n:]
	}
	return nil
}

// post sends body as JSON to the endpoint, retrying on network and server errors.
func (c *client) post(ctx context.Context, path string, body any, codes ...int) error {
	buf := new(bytes.Buffer)
	err := json.NewEncoder(buf).Encode(body)
	if err != nil {
		return fmt.Errorf("could not encode data to JSON: %w", err)
	}
	var (
		url     = c.ep + path
		payload = buf.Bytes()
	)

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("could not create HTTP request to %q: %w", url, err))
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("could not POST request to %q: %w", url, err)
			}
			defer resp.Body.Close()

			for _, code := range codes {
				if resp.StatusCode == code {
					return nil
				}
			}

			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			err = fmt.Errorf("invalid response from %q: %s: %s", url, resp.Status, bytes.TrimSpace(msg))
			if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(time.Minute),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warnw("retrying upload", "attempt", n+1, "url", url, "error", err)
		}),
	)
}
