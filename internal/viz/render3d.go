package viz

import (
	"math"
	"sort"

	"github.com/san-kum/rocketland/internal/dynamo"
)

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Length() float64      { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Position returns the position block of a rocket state.
func Position(x dynamo.State) Vec3 {
	if len(x) < 3 {
		return Vec3{}
	}
	return Vec3{x[0], x[1], x[2]}
}

// Camera looks at the landing pad from a fixed distance. The world z axis is
// up; screen y is world z before rotation.
type Camera struct {
	Distance   float64
	Yaw, Pitch float64
	Zoom       float64
}

func NewCamera() *Camera {
	return &Camera{Distance: 80, Yaw: math.Pi / 6, Pitch: 0.3, Zoom: 1.0}
}

func (c *Camera) RotateYaw(a float64)   { c.Yaw += a }
func (c *Camera) RotatePitch(a float64) { c.Pitch = math.Max(-1.4, math.Min(1.4, c.Pitch+a)) }
func (c *Camera) ZoomIn()               { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut()              { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// view rotates p into camera coordinates: x right, y up, z toward the
// viewer.
func (c *Camera) view(p Vec3) Vec3 {
	cy, sy := math.Cos(c.Yaw), math.Sin(c.Yaw)
	x, depth := p.X*cy-p.Y*sy, p.X*sy+p.Y*cy
	cp, sp := math.Cos(c.Pitch), math.Sin(c.Pitch)
	y, z := p.Z*cp-depth*sp, p.Z*sp+depth*cp
	return Vec3{x, y, z}
}

// Project converts world coordinates to sub-pixel coordinates of a sw x sh
// screen. Returns x, y, depth and visibility.
func (c *Camera) Project(p Vec3, sw, sh int) (int, int, float64, bool) {
	rot := c.view(p).Scale(c.Zoom)
	dist := c.Distance
	if rot.Z >= dist-0.1 {
		return 0, 0, 0, false
	}
	scale := dist / (dist - rot.Z)
	pScale := float64(min(sw, sh)) / 40.0
	sx := int(rot.X*scale*pScale) + sw/2
	sy := int(-rot.Y*scale*pScale) + sh*3/4
	return sx, sy, rot.Z, sx >= 0 && sx < sw && sy >= 0 && sy < sh
}

type Edge struct {
	Start, End Vec3
}

type Wireframe struct{ Edges []Edge }

func NewWireframe() *Wireframe           { return &Wireframe{Edges: make([]Edge, 0)} }
func (w *Wireframe) AddEdge(s, e Vec3)   { w.Edges = append(w.Edges, Edge{s, e}) }
func (w *Wireframe) AddPoint(p Vec3)     { w.Edges = append(w.Edges, Edge{p, p}) }
func (w *Wireframe) AddPath(ps []Vec3)   { w.addPath(ps, 1) }
func (w *Wireframe) AddDotted(ps []Vec3) { w.addPath(ps, 3) }

func (w *Wireframe) addPath(ps []Vec3, stride int) {
	if stride == 1 {
		for i := 1; i < len(ps); i++ {
			w.AddEdge(ps[i-1], ps[i])
		}
		return
	}
	for i := 0; i < len(ps); i += stride {
		w.AddPoint(ps[i])
	}
}

type projectedEdge struct {
	x1, y1, x2, y2 int
	depth          float64
}

// Render3D draws the wireframe to the canvas using a simple painter's algorithm.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	cw, ch := c.PixelWidth(), c.PixelHeight()
	proj := make([]projectedEdge, 0, len(w.Edges))
	for _, e := range w.Edges {
		x1, y1, d1, v1 := cam.Project(e.Start, cw, ch)
		x2, y2, d2, v2 := cam.Project(e.End, cw, ch)
		if v1 || v2 {
			proj = append(proj, projectedEdge{x1, y1, x2, y2, (d1 + d2) / 2})
		}
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].depth < proj[j].depth })
	for _, e := range proj {
		if e.x1 == e.x2 && e.y1 == e.y2 {
			c.Set(e.x1, e.y1)
		} else {
			c.DrawLine(e.x1, e.y1, e.x2, e.y2)
		}
	}
}

// LandingScene builds the pad, the glide-slope cone up to height top, the
// dotted reference path and the flown path. glideTan is the cone's
// horizontal reach per metre of height; zero omits the cone.
func LandingScene(ref, flown []dynamo.State, glideTan, top float64) *Wireframe {
	w := NewWireframe()

	const pad = 3.0
	w.AddEdge(Vec3{-pad, 0, 0}, Vec3{pad, 0, 0})
	w.AddEdge(Vec3{0, -pad, 0}, Vec3{0, pad, 0})

	if glideTan > 0 && top > 0 {
		r := glideTan * top
		const spokes = 8
		rim := make([]Vec3, spokes+1)
		for i := range rim {
			a := 2 * math.Pi * float64(i) / spokes
			rim[i] = Vec3{r * math.Cos(a), r * math.Sin(a), top}
		}
		for _, p := range rim[:spokes] {
			w.AddEdge(Vec3{}, p)
		}
		w.AddPath(rim)
	}

	w.AddDotted(positions(ref))
	w.AddPath(positions(flown))
	return w
}

func positions(xs []dynamo.State) []Vec3 {
	out := make([]Vec3, len(xs))
	for i, x := range xs {
		out[i] = Position(x)
	}
	return out
}
