package svg

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Line renders a line chart of points with round markers, a dashed grid and
// axis titles. An empty series renders the frame with EmptyText in place of
// the line.
func Line(width, height int, points []Point, opts LineOpts) ([]byte, error) {
	f, err := newFrame(width, height, opts)
	if err != nil {
		return nil, err
	}
	lo, hi := 0.0, 1.0
	if len(points) > 0 {
		lo, hi = bounds(points)
	}
	f.lo, f.hi = lo, hi

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" role="img" aria-labelledby="chart-title chart-desc">`, f.width, f.height, f.width, f.height)
	b.WriteString(`<title id="chart-title">`)
	escape(&b, fallback(opts.Title, "Line chart"))
	b.WriteString(`</title><desc id="chart-desc">`)
	escape(&b, fallback(opts.Description, fallback(opts.Title, "Line chart")))
	b.WriteString(`</desc>`)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"></rect>`, f.width, f.height)

	f.grid(&b)
	f.axes(&b)

	if len(points) == 0 {
		fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" fill="%s" font-size="14" text-anchor="middle">`, f.left+f.plotW/2, f.top+f.plotH/2, f.axis)
		escape(&b, fallback(opts.EmptyText, "No data"))
		b.WriteString(`</text>`)
	} else {
		f.series(&b, points)
	}

	b.WriteString(`</svg>`)
	return b.Bytes(), nil
}

type frame struct {
	width, height int
	left, top     float64
	plotW, plotH  float64
	ticks         int
	lo, hi        float64
	stroke        string
	axis          string
	gridColor     string
	opts          LineOpts
}

func newFrame(width, height int, opts LineOpts) (*frame, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	ticks := opts.TickCount
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	f := &frame{
		width:     width,
		height:    height,
		left:      padding,
		top:       padding,
		plotW:     float64(width) - 2*padding,
		plotH:     float64(height) - 2*padding,
		ticks:     ticks,
		stroke:    fallback(opts.StrokeColor, "#1f77b4"),
		axis:      fallback(opts.AxisColor, "#333333"),
		gridColor: fallback(opts.GridColor, "#d0d0d0"),
		opts:      opts,
	}
	if f.plotW <= 0 || f.plotH <= 0 {
		return nil, errors.New("svg: viewport too small")
	}
	return f, nil
}

func (f *frame) x(i, n int) float64 {
	if n <= 1 {
		return f.left + f.plotW/2
	}
	return f.left + float64(i)*f.plotW/float64(n-1)
}

func (f *frame) y(v float64) float64 {
	return f.top + f.plotH - (v-f.lo)/(f.hi-f.lo)*f.plotH
}

func (f *frame) grid(b *bytes.Buffer) {
	for i := 0; i <= f.ticks; i++ {
		v := f.lo + (f.hi-f.lo)*float64(i)/float64(f.ticks)
		y := f.y(v)
		fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="3,3"></line>`, f.left, y, f.left+f.plotW, y, f.gridColor)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="11" text-anchor="end">%s</text>`, f.left-6, y+4, f.axis, formatTick(v))
	}
}

func (f *frame) axes(b *bytes.Buffer) {
	bottom := f.top + f.plotH
	fmt.Fprintf(b, `<g stroke="%s" stroke-width="1">`, f.axis)
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line>`, f.left, f.top, f.left, bottom)
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"></line>`, f.left, bottom, f.left+f.plotW, bottom)
	b.WriteString(`</g>`)
	if f.opts.Title != "" {
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="16" text-anchor="middle">`, float64(f.width)/2, f.top/2, f.axis)
		escape(b, f.opts.Title)
		b.WriteString(`</text>`)
	}
	if f.opts.XLabel != "" {
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="12" text-anchor="middle">`, f.left+f.plotW/2, float64(f.height)-8, f.axis)
		escape(b, f.opts.XLabel)
		b.WriteString(`</text>`)
	}
	if f.opts.YLabel != "" {
		cx, cy := 14.0, f.top+f.plotH/2
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="12" text-anchor="middle" transform="rotate(-90 %.2f %.2f)">`, cx, cy, f.axis, cx, cy)
		escape(b, f.opts.YLabel)
		b.WriteString(`</text>`)
	}
}

func (f *frame) series(b *bytes.Buffer, points []Point) {
	var path strings.Builder
	for i, p := range points {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, f.x(i, len(points)), f.y(p.Value))
	}
	fmt.Fprintf(b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round"></path>`, strings.TrimSpace(path.String()), f.stroke)
	bottom := f.top + f.plotH
	for i, p := range points {
		x := f.x(i, len(points))
		fmt.Fprintf(b, `<circle cx="%.2f" cy="%.2f" r="4" fill="%s"><title>`, x, f.y(p.Value), f.stroke)
		escape(b, p.Label+": "+formatTick(p.Value))
		b.WriteString(`</title></circle>`)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="11" text-anchor="middle">`, x, bottom+16, f.axis)
		escape(b, p.Label)
		b.WriteString(`</text>`)
	}
}

// bounds returns the value range, always including zero and never empty.
func bounds(points []Point) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, p := range points {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	if hi-lo < 1e-9 {
		hi = lo + 1
	}
	return lo, hi
}

func escape(b *bytes.Buffer, s string) {
	_ = xml.EscapeText(b, []byte(s))
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 10_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case math.Abs(v-math.Round(v)) < 1e-9:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}
