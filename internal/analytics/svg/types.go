// Package svg renders the analytics charts as standalone SVG documents.
package svg

// Point is one labelled value of a series.
type Point struct {
	Label string
	Value float64
}

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	XLabel      string
	YLabel      string
	EmptyText   string
	StrokeColor string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
}

// Defaults for the analytics charts.
const (
	DefaultWidth   = 800
	DefaultHeight  = 500
	DefaultPadding = 56.0
	DefaultTicks   = 5
)
