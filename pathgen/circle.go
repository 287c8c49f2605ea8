package pathgen

import "github.com/chewxy/math32"

// bezierCircle builds the control points of a closed cubic
// approximation of a circle with the given radius, centered at
// (cx, cy), using segments arcs. The arm length for a unit arc is
// (4/3)*tan(pi/(2*segments)); anchors sit on the unit circle and the
// two interior controls of each arc sit at radius sqrt(1+arm^2),
// offset from the enclosing anchors by the arm angle. The point list
// runs clockwise and has 3*segments entries laid out
// anchor,control,control per segment with the final anchor shared.
func bezierCircle(radius, cx, cy float32, segments int) []float32 {
	s := float32(segments)
	arm := 4.0 / 3.0 * math32.Tan(math32.Pi/(2*s))
	ctrlRadius := math32.Sqrt(1 + arm*arm)
	step := 2 * math32.Pi / s

	// Counter-clockwise construction: start anchor, then per arc the
	// two controls and the next anchor.
	pts := make([]float32, 0, 2*(3*segments+1))
	pts = append(pts, 1, 0)
	for i := 0; i < segments; i++ {
		a0 := float32(i) * step
		a1 := a0 + step
		pts = append(pts,
			ctrlRadius*math32.Cos(a0+arm), ctrlRadius*math32.Sin(a0+arm),
			ctrlRadius*math32.Cos(a1-arm), ctrlRadius*math32.Sin(a1-arm),
			math32.Cos(a1), math32.Sin(a1),
		)
	}

	// Reverse to clockwise and drop the duplicated start anchor, then
	// scale and translate into place.
	n := len(pts) / 2
	out := make([]float32, 0, 2*(n-1))
	for i := n - 1; i >= 1; i-- {
		out = append(out, pts[2*i]*radius+cx, pts[2*i+1]*radius+cy)
	}
	return out
}
