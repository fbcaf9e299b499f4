package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/viz"
)

const background = "#0a0a0a"

// CanvasToSVG draws every lit braille sub-pixel of canvas as a dot of the
// given colour, scale pixels apart.
func CanvasToSVG(canvas *viz.Canvas, scale float64, color string) string {
	if canvas == nil {
		return ""
	}
	pw, ph := canvas.PixelWidth(), canvas.PixelHeight()
	width := float64(pw) * scale
	height := float64(ph) * scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="%s">
`, width, height, width, height, background, color)

	r := scale * 0.4
	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			if !canvas.IsSet(x, y) {
				continue
			}
			fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
				float64(x)*scale+scale/2, float64(y)*scale+scale/2, r)
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// Point is a sample of a side-view plot.
type Point struct{ X, Y float64 }

// SideView projects states onto (lateral distance from the pad, altitude).
func SideView(xs []dynamo.State) []Point {
	out := make([]Point, 0, len(xs))
	for _, x := range xs {
		if len(x) < 3 {
			continue
		}
		out = append(out, Point{math.Hypot(x[0], x[1]), x[2]})
	}
	return out
}

type plotArea struct {
	minX, maxX, minY, maxY float64
	width, height          int
}

func newPlotArea(width, height int, series ...[]Point) plotArea {
	a := plotArea{width: width, height: height}
	for _, s := range series {
		for _, p := range s {
			a.minX = math.Min(a.minX, p.X)
			a.maxX = math.Max(a.maxX, p.X)
			a.minY = math.Min(a.minY, p.Y)
			a.maxY = math.Max(a.maxY, p.Y)
		}
	}
	rangeX := a.maxX - a.minX
	rangeY := a.maxY - a.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	a.minX -= rangeX * 0.1
	a.maxX += rangeX * 0.1
	a.minY -= rangeY * 0.1
	a.maxY += rangeY * 0.1
	return a
}

func (a plotArea) pixel(p Point) (float64, float64) {
	x := (p.X - a.minX) / (a.maxX - a.minX) * float64(a.width)
	y := float64(a.height) - (p.Y-a.minY)/(a.maxY-a.minY)*float64(a.height)
	return x, y
}

func (a plotArea) path(sb *strings.Builder, pts []Point, stroke, extra string) {
	if len(pts) < 2 {
		return
	}
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5"%s d="M`, stroke, extra)
	for i, p := range pts {
		x, y := a.pixel(p)
		if i == 0 {
			fmt.Fprintf(sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")
}

// TrajectoryToSVG plots a single side-view path.
func TrajectoryToSVG(points []Point, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}
	a := newPlotArea(width, height, points)
	var sb strings.Builder
	a.header(&sb)
	a.path(&sb, points, strokeColor, "")
	sb.WriteString("</svg>")
	return sb.String()
}

func (a plotArea) header(sb *strings.Builder) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, a.width, a.height, a.width, a.height, background)
}

// LandingSVG draws the side view of a landing: the ground, the glide-slope
// boundary (glideTan is horizontal reach per metre of height, zero omits
// it), the dashed reference and the flown path. Either path may be empty.
func LandingSVG(ref, flown []dynamo.State, glideTan float64, width, height int) string {
	refPts, flownPts := SideView(ref), SideView(flown)
	if len(refPts) < 2 && len(flownPts) < 2 {
		return ""
	}
	a := newPlotArea(width, height, refPts, flownPts)

	var sb strings.Builder
	a.header(&sb)

	x0, y0 := a.pixel(Point{a.minX, 0})
	x1, _ := a.pixel(Point{a.maxX, 0})
	fmt.Fprintf(&sb, "<line x1=\"%.1f\" y1=\"%.1f\" x2=\"%.1f\" y2=\"%.1f\" stroke=\"#8b5a2b\" stroke-width=\"2\"/>\n", x0, y0, x1, y0)

	if glideTan > 0 {
		// the cone edge reaches the plot's top at altitude maxY
		a.path(&sb, []Point{{0, 0}, {glideTan * a.maxY, a.maxY}}, "#ffb000", ` stroke-dasharray="2,4"`)
	}
	a.path(&sb, refPts, "#5fafff", ` stroke-dasharray="6,4"`)
	a.path(&sb, flownPts, "#00ff87", "")

	sb.WriteString("</svg>")
	return sb.String()
}
