// Package scene holds the vector scene model consumed by the rendering
// oracle: closed Bezier paths, their fill groups, and the canvas they
// live on. Shapes and groups are kept as parallel arena-style slices
// that only ever grow; indices are assigned at append time and never
// renumbered, so a group's shape references stay valid for the lifetime
// of the scene.
package scene

import (
	"errors"
	"fmt"
)

// ErrShapeIndex means a group references a shape index outside the
// scene's shape arena.
var ErrShapeIndex = errors.New("scene: shape index out of range")

// Group assigns a fill to one or more shapes. In this system every
// group holds exactly one shape, but the renderer and the SVG writer
// accept the general form: all member shapes are filled together as one
// region under the group's fill rule.
//
// Fill is RGBA with straight (non-premultiplied) alpha, each channel in
// [0,1]. It is addressed as a flat array so the optimizer can alias it
// as a parameter tensor.
type Group struct {
	Shapes  []int
	Fill    [4]float32
	EvenOdd bool
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	cp := &Group{Fill: g.Fill, EvenOdd: g.EvenOdd}
	cp.Shapes = append(cp.Shapes, g.Shapes...)
	return cp
}

// Scene is the canvas plus the accumulated shapes and groups of a
// progressive run. It grows append-only across stages.
type Scene struct {
	W, H   int
	Shapes []*Path
	Groups []*Group
}

// NewScene creates an empty scene with the given canvas size.
func NewScene(w, h int) *Scene {
	return &Scene{W: w, H: h}
}

// Append extends the scene with new shapes and groups. Group shape
// indices must already be absolute (offset by the shape count before
// the append); Append verifies they land inside the grown arena and
// reports ErrShapeIndex otherwise.
func (s *Scene) Append(shapes []*Path, groups []*Group) error {
	total := len(s.Shapes) + len(shapes)
	for _, g := range groups {
		for _, id := range g.Shapes {
			if id < 0 || id >= total {
				return fmt.Errorf("%w: %d with %d shapes", ErrShapeIndex, id, total)
			}
		}
	}
	s.Shapes = append(s.Shapes, shapes...)
	s.Groups = append(s.Groups, groups...)
	return nil
}

// Clone returns a deep copy of the scene. Freeze tests use this to
// compare parameters before and after a stage.
func (s *Scene) Clone() *Scene {
	cp := &Scene{W: s.W, H: s.H}
	cp.Shapes = make([]*Path, len(s.Shapes))
	for i, p := range s.Shapes {
		cp.Shapes[i] = p.Clone()
	}
	cp.Groups = make([]*Group, len(s.Groups))
	for i, g := range s.Groups {
		cp.Groups[i] = g.Clone()
	}
	return cp
}
