package scene

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrSVGSyntax means an SVG document could not be parsed back into a
// scene. ReadSVG only understands the subset WriteSVG produces.
var ErrSVGSyntax = errors.New("scene: malformed svg document")

const svgXMLNS = "http://www.w3.org/2000/svg"

// WriteSVG serializes the scene as a standalone SVG document: one
// <path> element per group, subpaths for every member shape, hex fill
// plus fill-opacity, and the group's fill rule. The output is stable
// byte for byte for identical scenes and re-loadable by standard SVG
// renderers (and by ReadSVG).
func WriteSVG(w io.Writer, s *Scene) error {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<svg xmlns="%s" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		svgXMLNS, s.W, s.H, s.W, s.H)
	for _, g := range s.Groups {
		var d strings.Builder
		for _, id := range g.Shapes {
			appendPathData(&d, s.Shapes[id])
		}
		rule := "nonzero"
		if g.EvenOdd {
			rule = "evenodd"
		}
		fmt.Fprintf(&b, `<path d="%s" fill="#%02x%02x%02x" fill-opacity="%s" fill-rule="%s" stroke="none"/>`+"\n",
			strings.TrimSpace(d.String()),
			channelByte(g.Fill[0]), channelByte(g.Fill[1]), channelByte(g.Fill[2]),
			ftoa(g.Fill[3]), rule)
	}
	b.WriteString("</svg>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// SaveSVG writes the scene to path, creating or truncating the file.
func (s *Scene) SaveSVG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("scene: save svg: %w", err)
	}
	if err := WriteSVG(f, s); err != nil {
		f.Close()
		return fmt.Errorf("scene: save svg: %w", err)
	}
	return f.Close()
}

// appendPathData emits one shape as an absolute-command subpath.
// A closed path's final segment ends on point 0 and is followed by Z,
// so the wrap anchor appears explicitly in the data.
func appendPathData(d *strings.Builder, p *Path) {
	x, y := p.Pt(0)
	fmt.Fprintf(d, "M %s %s ", ftoa(x), ftoa(y))
	for _, idx := range p.AllSegments() {
		switch len(idx) {
		case 2:
			x, y := p.Pt(idx[1])
			fmt.Fprintf(d, "L %s %s ", ftoa(x), ftoa(y))
		case 3:
			cx, cy := p.Pt(idx[1])
			x, y := p.Pt(idx[2])
			fmt.Fprintf(d, "Q %s %s %s %s ", ftoa(cx), ftoa(cy), ftoa(x), ftoa(y))
		case 4:
			c1x, c1y := p.Pt(idx[1])
			c2x, c2y := p.Pt(idx[2])
			x, y := p.Pt(idx[3])
			fmt.Fprintf(d, "C %s %s %s %s %s %s ", ftoa(c1x), ftoa(c1y),
				ftoa(c2x), ftoa(c2y), ftoa(x), ftoa(y))
		}
	}
	if p.Closed {
		d.WriteString("Z ")
	}
}

// ftoa formats a float32 with the shortest representation that parses
// back to the same value.
func ftoa(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

// channelByte quantizes a [0,1] channel to 8 bits.
func channelByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// ReadSVG parses an SVG document produced by WriteSVG back into a
// scene. It understands exactly the written subset: absolute M/L/Q/C/Z
// path data, hex fills, fill-opacity and fill-rule attributes. Fill
// colors come back 8-bit quantized.
func ReadSVG(r io.Reader) (*Scene, error) {
	dec := xml.NewDecoder(r)
	var s *Scene
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSVGSyntax, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "svg":
			w, h, err := svgCanvasSize(se)
			if err != nil {
				return nil, err
			}
			s = NewScene(w, h)
		case "path":
			if s == nil {
				return nil, fmt.Errorf("%w: path before svg element", ErrSVGSyntax)
			}
			if err := readSVGPath(s, se); err != nil {
				return nil, err
			}
		}
	}
	if s == nil {
		return nil, fmt.Errorf("%w: missing svg element", ErrSVGSyntax)
	}
	return s, nil
}

func svgCanvasSize(se xml.StartElement) (w, h int, err error) {
	for _, a := range se.Attr {
		switch a.Name.Local {
		case "width":
			w, err = strconv.Atoi(a.Value)
		case "height":
			h, err = strconv.Atoi(a.Value)
		}
		if err != nil {
			return 0, 0, fmt.Errorf("%w: canvas size %q", ErrSVGSyntax, a.Value)
		}
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: missing canvas size", ErrSVGSyntax)
	}
	return w, h, nil
}

func readSVGPath(s *Scene, se xml.StartElement) error {
	g := &Group{Fill: [4]float32{0, 0, 0, 1}}
	var data string
	for _, a := range se.Attr {
		switch a.Name.Local {
		case "d":
			data = a.Value
		case "fill":
			if err := parseHexFill(a.Value, &g.Fill); err != nil {
				return err
			}
		case "fill-opacity":
			v, err := strconv.ParseFloat(a.Value, 32)
			if err != nil {
				return fmt.Errorf("%w: fill-opacity %q", ErrSVGSyntax, a.Value)
			}
			g.Fill[3] = float32(v)
		case "fill-rule":
			g.EvenOdd = a.Value == "evenodd"
		}
	}
	shapes, err := parsePathData(data)
	if err != nil {
		return err
	}
	base := len(s.Shapes)
	for i := range shapes {
		g.Shapes = append(g.Shapes, base+i)
	}
	return s.Append(shapes, []*Group{g})
}

func parseHexFill(v string, fill *[4]float32) error {
	if len(v) != 7 || v[0] != '#' {
		return fmt.Errorf("%w: fill %q", ErrSVGSyntax, v)
	}
	for c := 0; c < 3; c++ {
		n, err := strconv.ParseUint(v[1+2*c:3+2*c], 16, 8)
		if err != nil {
			return fmt.Errorf("%w: fill %q", ErrSVGSyntax, v)
		}
		fill[c] = float32(n) / 255
	}
	return nil
}

// parsePathData rebuilds shapes from absolute path data. Each M starts
// a new subpath; Z closes it, dropping the explicit wrap anchor that
// WriteSVG emits for closed paths.
func parsePathData(data string) ([]*Path, error) {
	fields := strings.Fields(strings.ReplaceAll(data, ",", " "))
	var shapes []*Path
	var pts []float32
	var controls []int
	closed := false

	flush := func() error {
		if pts == nil {
			return nil
		}
		if closed && len(pts) >= 4 &&
			pts[len(pts)-2] == pts[0] && pts[len(pts)-1] == pts[1] {
			pts = pts[:len(pts)-2]
		}
		p, err := NewPath(pts, controls, closed)
		if err != nil {
			return err
		}
		shapes = append(shapes, p)
		pts, controls, closed = nil, nil, false
		return nil
	}

	i := 0
	next := func() (float32, error) {
		if i >= len(fields) {
			return 0, fmt.Errorf("%w: truncated path data", ErrSVGSyntax)
		}
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return 0, fmt.Errorf("%w: coordinate %q", ErrSVGSyntax, fields[i])
		}
		i++
		return float32(v), nil
	}
	coords := func(n int) error {
		for k := 0; k < n; k++ {
			v, err := next()
			if err != nil {
				return err
			}
			pts = append(pts, v)
		}
		return nil
	}

	for i < len(fields) {
		cmd := fields[i]
		i++
		var err error
		switch cmd {
		case "M":
			if err = flush(); err != nil {
				return nil, err
			}
			err = coords(2)
		case "L":
			controls = append(controls, 0)
			err = coords(2)
		case "Q":
			controls = append(controls, 1)
			err = coords(4)
		case "C":
			controls = append(controls, 2)
			err = coords(6)
		case "Z":
			closed = true
			err = flush()
		default:
			err = fmt.Errorf("%w: command %q", ErrSVGSyntax, cmd)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(shapes) == 0 {
		return nil, fmt.Errorf("%w: empty path data", ErrSVGSyntax)
	}
	return shapes, nil
}
