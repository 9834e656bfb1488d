// Copyright ©2024 The vampire Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vampire

import "errors"

var (
	ErrNoData     = errors.New("vampire: no data")
	ErrDupVehicle = errors.New("vampire: duplicate vehicle")
	ErrNoVehicle  = errors.New("vampire: no such vehicle")
	ErrUnordered  = errors.New("vampire: samples out of order")
)
