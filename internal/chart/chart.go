// Package chart renders PNG charts of a joined variable series.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/KaramelBytes/munidata-cli/internal/table"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Kind is a chart type.
type Kind string

const (
	Bar  Kind = "bar"
	Line Kind = "line"
	Box  Kind = "box"
)

// ErrNoData is returned when a series has no numeric points to draw.
var ErrNoData = errors.New("no numeric data to plot")

// ParseKind validates a chart type; empty means bar.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", Bar:
		return Bar, nil
	case Line:
		return Line, nil
	case Box, "boxplot":
		return Box, nil
	default:
		return "", fmt.Errorf("unsupported chart type: %s (use bar|line|box)", s)
	}
}

// Point is one labelled value.
type Point struct {
	Label string
	Value float64
}

// Points extracts labelled numeric values from a joined table, skipping
// nulls. When the table spans more than one year the year is appended to the
// label.
func Points(t *table.Table, labelCol, valueCol, yearCol string, nf table.NumberFormat) []Point {
	vi, li, yi := t.Index(valueCol), t.Index(labelCol), t.Index(yearCol)
	if vi < 0 {
		return nil
	}
	multiYear := false
	if yi >= 0 {
		if ys, err := t.Distinct(yearCol); err == nil && len(ys) > 1 {
			multiYear = true
		}
	}
	var out []Point
	for _, r := range t.Rows {
		x, ok := r[vi].FloatWith(nf)
		if !ok {
			continue
		}
		label := ""
		if li >= 0 {
			label = r[li].String()
		}
		if multiYear {
			label = fmt.Sprintf("%s (%s)", label, r[yi].Key())
		}
		out = append(out, Point{Label: label, Value: x})
	}
	return out
}

// Options sizes and titles a chart.
type Options struct {
	Title  string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

func (o Options) size(n int) (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 10 * vg.Inch
		if n > 20 {
			w = vg.Length(n) * vg.Inch / 2
		}
	}
	if h <= 0 {
		h = 6 * vg.Inch
	}
	return w, h
}

// Build assembles the plot without rendering it.
func Build(kind Kind, pts []Point, opt Options) (*plot.Plot, error) {
	if len(pts) == 0 {
		return nil, ErrNoData
	}
	p := plot.New()
	p.Title.Text = opt.Title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Y.Label.Text = opt.YLabel
	p.Add(plotter.NewGrid())

	values := make(plotter.Values, len(pts))
	labels := make([]string, len(pts))
	for i, pt := range pts {
		values[i] = pt.Value
		labels[i] = pt.Label
	}

	switch kind {
	case Bar, "":
		bars, err := plotter.NewBarChart(values, vg.Points(20))
		if err != nil {
			return nil, fmt.Errorf("bar chart: %w", err)
		}
		bars.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
		p.NominalX(labels...)
		rotateTicks(p)
	case Line:
		xys := make(plotter.XYs, len(pts))
		for i, pt := range pts {
			xys[i] = plotter.XY{X: float64(i), Y: pt.Value}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("line chart: %w", err)
		}
		line.Width = vg.Points(2)
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(line)
		p.NominalX(labels...)
		rotateTicks(p)
	case Box:
		box, err := plotter.NewBoxPlot(vg.Points(40), 0, values)
		if err != nil {
			return nil, fmt.Errorf("box plot: %w", err)
		}
		p.Add(box)
		p.NominalX(opt.YLabel)
	default:
		return nil, fmt.Errorf("unsupported chart type: %s", kind)
	}
	return p, nil
}

// Render draws a PNG chart to w.
func Render(w io.Writer, kind Kind, pts []Point, opt Options) error {
	p, err := Build(kind, pts, opt)
	if err != nil {
		return err
	}
	width, height := opt.size(len(pts))
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save writes a PNG chart to path.
func Save(path string, kind Kind, pts []Point, opt Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := Render(f, kind, pts, opt); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func rotateTicks(p *plot.Plot) {
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}
