package scene

// Gradients carries the derivative of a scalar loss with respect to
// every optimizable scene parameter, laid out parallel to the scene:
// Points[i] matches Shapes[i].Points element for element, Fills[i]
// matches Groups[i].Fill.
//
// A rendering oracle's backward pass produces one of these; the stage
// optimizer copies the trainable subset into its parameter gradients
// and ignores the rest.
type Gradients struct {
	Points [][]float32
	Fills  [][4]float32
}

// NewGradients allocates a zeroed gradient set shaped like s.
func NewGradients(s *Scene) *Gradients {
	g := &Gradients{
		Points: make([][]float32, len(s.Shapes)),
		Fills:  make([][4]float32, len(s.Groups)),
	}
	for i, p := range s.Shapes {
		g.Points[i] = make([]float32, len(p.Points))
	}
	return g
}

// Zero resets all gradient entries in place.
func (g *Gradients) Zero() {
	for _, pts := range g.Points {
		for i := range pts {
			pts[i] = 0
		}
	}
	for i := range g.Fills {
		g.Fills[i] = [4]float32{}
	}
}

// Accumulate adds o into g element-wise. The renderer merges per-row
// partial gradients with this, always in row-major order, so the sum is
// identical no matter how rows were distributed across workers.
func (g *Gradients) Accumulate(o *Gradients) {
	for i, pts := range o.Points {
		dst := g.Points[i]
		for k, v := range pts {
			dst[k] += v
		}
	}
	for i, f := range o.Fills {
		for k, v := range f {
			g.Fills[i][k] += v
		}
	}
}
