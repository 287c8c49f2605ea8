// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package optimize drives one fitting stage: Adam over point and fill
// parameter groups, cosine learning-rate annealing, and the weighted
// squared-error loss differentiated through the rendering oracle.
package optimize

import (
	"math"

	"github.com/chewxy/math32"
)

// Adam hyperparameters. Only the learning rate varies per run; the
// moment decays and epsilon are the standard defaults.
const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// Param is one flat optimizable tensor. Data aliases live scene memory
// (a path's point slice or a group's fill array), so stepping a Param
// mutates the scene the next render sees. Grad is overwritten before
// every step.
type Param struct {
	Data []float32
	Grad []float32
	m, v []float32
}

// NewParam wraps a parameter slice. The slice is aliased, not copied.
func NewParam(data []float32) *Param {
	n := len(data)
	return &Param{
		Data: data,
		Grad: make([]float32, n),
		m:    make([]float32, n),
		v:    make([]float32, n),
	}
}

// ZeroGrad clears the gradient.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// Adam is a bias-corrected Adam optimizer over a fixed set of
// parameters. The learning rate can be changed between steps, which is
// how the cosine schedule is applied.
type Adam struct {
	params []*Param
	lr     float32
	step   int
}

// NewAdam creates an optimizer for the given parameters.
func NewAdam(params []*Param, lr float32) *Adam {
	return &Adam{params: params, lr: lr}
}

// LR returns the current learning rate.
func (a *Adam) LR() float32 { return a.lr }

// SetLR replaces the learning rate used by subsequent steps.
func (a *Adam) SetLR(lr float32) { a.lr = lr }

// Params returns the optimizer's parameter set.
func (a *Adam) Params() []*Param { return a.params }

// ZeroGrad clears all parameter gradients.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Step applies one Adam update from the current gradients.
func (a *Adam) Step() {
	a.step++
	c1 := float32(1 - math.Pow(adamBeta1, float64(a.step)))
	c2 := float32(1 - math.Pow(adamBeta2, float64(a.step)))
	for _, p := range a.params {
		for i, g := range p.Grad {
			p.m[i] = adamBeta1*p.m[i] + (1-adamBeta1)*g
			p.v[i] = adamBeta2*p.v[i] + (1-adamBeta2)*g*g
			mh := p.m[i] / c1
			vh := p.v[i] / c2
			p.Data[i] -= a.lr * mh / (math32.Sqrt(vh) + adamEps)
		}
	}
}
