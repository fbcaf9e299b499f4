package viz

import (
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a braille pixel grid of Width x Height cells, i.e. 2*Width by
// 4*Height sub-pixels.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// PixelWidth and PixelHeight give the sub-pixel resolution.
func (c *Canvas) PixelWidth() int  { return 2 * c.Width }
func (c *Canvas) PixelHeight() int { return 4 * c.Height }

// Set lights the sub-pixel (x, y). Points off the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// IsSet reports whether the sub-pixel (x, y) is lit.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// Frame maps a world rectangle in metres onto the canvas, keeping the aspect
// ratio so slopes are drawn true. World y points up.
type Frame struct {
	x0, y0 float64
	scale  float64
	h      int
}

// NewFrame fits [xmin, xmax] x [ymin, ymax] into c.
func NewFrame(c *Canvas, xmin, xmax, ymin, ymax float64) Frame {
	w, h := float64(c.PixelWidth()-1), float64(c.PixelHeight()-1)
	dx, dy := math.Max(xmax-xmin, 1e-9), math.Max(ymax-ymin, 1e-9)
	scale := math.Min(w/dx, h/dy)
	// center the unused axis
	x0 := xmin - (w/scale-dx)/2
	return Frame{x0: x0, y0: ymin, scale: scale, h: c.PixelHeight() - 1}
}

func (f Frame) Point(x, y float64) (int, int) {
	px := int(math.Round((x - f.x0) * f.scale))
	py := f.h - int(math.Round((y-f.y0)*f.scale))
	return px, py
}

func (c *Canvas) Plot(f Frame, x, y float64) {
	c.Set(f.Point(x, y))
}

func (c *Canvas) Line(f Frame, x0, y0, x1, y1 float64) {
	a, b := f.Point(x0, y0)
	p, q := f.Point(x1, y1)
	c.DrawLine(a, b, p, q)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
