// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package optimize

import "math"

// CosineSchedule anneals a learning rate from Base at iteration 0 down
// to Floor with a half-cosine over Total iterations:
//
//	lr(t) = Floor + (Base-Floor) * (1 + cos(pi*t/Total)) / 2
//
// The floor keeps late iterations moving instead of decaying to zero,
// which matters for the point parameters: shapes keep refining their
// boundaries until the stage ends.
type CosineSchedule struct {
	Base  float64
	Floor float64
	Total int
}

// At returns the learning rate for iteration t. Iterations past Total
// stay at the floor.
func (s CosineSchedule) At(t int) float64 {
	if s.Total <= 0 {
		return s.Base
	}
	if t >= s.Total {
		return s.Floor
	}
	if t < 0 {
		t = 0
	}
	return s.Floor + (s.Base-s.Floor)*(1+math.Cos(math.Pi*float64(t)/float64(s.Total)))/2
}
