// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vlog builds the loggers used by the vampire commands.
package vlog // import "sbinet.org/x/vampire/internal/vlog"

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a sugared zap logger named after the calling command.
func New(name string, debug bool) (*zap.SugaredLogger, error) {
	var (
		log *zap.Logger
		err error
	)
	if debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("could not initialize zap logger: %w", err)
	}
	return log.Named(name).Sugar(), nil
}

// Nop returns a logger discarding everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
