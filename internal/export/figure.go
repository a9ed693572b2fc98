package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/san-kum/buoyopt/internal/analysis"
	"github.com/san-kum/buoyopt/internal/sim"
)

const (
	DefaultWidth  = 15 * vg.Inch
	DefaultHeight = 12 * vg.Inch
	figureDPI     = 96
	rows, cols    = 3, 3
)

// FigureData is what the summary figure draws for one candidate.
type FigureData struct {
	Title     string
	Result    *sim.Result
	Power     []float64
	Peak      analysis.Extremum
	MeanPower float64
	// MaxAcceleration draws ±limit guides on the acceleration panel when > 0.
	MaxAcceleration float64
}

type line struct {
	name string
	ys   []float64
}

// Panels lays the trajectory out as a 3x3 grid of plots.
func Panels(d FigureData) ([][]*plot.Plot, error) {
	res := d.Result
	if res == nil || res.Len() < 2 {
		return nil, fmt.Errorf("export: need at least two samples to plot")
	}
	if d.Power != nil && len(d.Power) != res.Len() {
		return nil, fmt.Errorf("export: power has %d samples, trajectory has %d", len(d.Power), res.Len())
	}

	type panel struct {
		title, ylabel string
		lines         []line
	}
	specs := []panel{
		{"Wave elevation", "η (m)", []line{{"", res.Elevation}}},
		{"Wave excitation force", "F (N)", []line{{"", res.FWave}}},
		{"Hydrostatic force", "F (N)", []line{{"", res.FHydrostatic}}},
		{"PTO force", "F (N)", []line{{"", res.FPTO}}},
		{"Radiation force", "F (N)", []line{{"", res.FRadiation}}},
		{"Drag force", "F (N)", []line{{"", res.FDrag}}},
		{"Heave acceleration", "a (m/s²)", []line{{"", res.ZDDot}}},
		{"Heave motion", "", []line{{"z (m)", res.Z}, {"ż (m/s)", res.ZDot}}},
		{"Electrical power", "P (W)", nil},
	}
	if d.Title != "" {
		specs[0].title = d.Title + ": " + specs[0].title
	}
	if d.Power != nil {
		specs[8].lines = []line{{"", d.Power}}
	}

	grid := make([][]*plot.Plot, rows)
	for r := range grid {
		grid[r] = make([]*plot.Plot, cols)
	}

	for i, s := range specs {
		p := plot.New()
		p.Title.Text = s.title
		p.X.Label.Text = "t (s)"
		p.Y.Label.Text = s.ylabel
		p.Add(plotter.NewGrid())

		for j, l := range s.lines {
			if err := addLine(p, res.Time, l, j); err != nil {
				return nil, fmt.Errorf("export: %s: %w", s.title, err)
			}
		}
		grid[i/cols][i%cols] = p
	}

	if err := markPeak(grid[2][0], d); err != nil {
		return nil, err
	}
	if d.Power != nil {
		mean := d.MeanPower
		guide(grid[2][2], fmt.Sprintf("mean %.1f kW", mean/1000), mean)
	}
	return grid, nil
}

func addLine(p *plot.Plot, xs []float64, l line, idx int) error {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = l.ys[i]
	}
	ln, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	ln.LineStyle.Width = vg.Points(1)
	ln.LineStyle.Color = plotutil.Color(idx)
	p.Add(ln)
	if l.name != "" {
		p.Legend.Add(l.name, ln)
	}
	return nil
}

func markPeak(p *plot.Plot, d FigureData) error {
	sc, err := plotter.NewScatter(plotter.XYs{{X: d.Peak.Time, Y: d.Peak.Value}})
	if err != nil {
		return fmt.Errorf("export: peak marker: %w", err)
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Radius = vg.Points(4)
	sc.GlyphStyle.Color = plotutil.Color(1)
	p.Add(sc)
	p.Legend.Add(fmt.Sprintf("peak %.3f m/s²", d.Peak.Abs()), sc)

	if d.MaxAcceleration > 0 {
		guide(p, "limit", d.MaxAcceleration)
		guide(p, "", -d.MaxAcceleration)
	}
	return nil
}

// guide draws a dashed horizontal line at y.
func guide(p *plot.Plot, name string, y float64) {
	f := plotter.NewFunction(func(float64) float64 { return y })
	f.LineStyle.Color = plotutil.Color(2)
	f.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(f)
	if name != "" {
		p.Legend.Add(name, f)
	}
	p.Y.Min = minf(p.Y.Min, y)
	p.Y.Max = maxf(p.Y.Max, y)
}

func minf(a, b float64) float64 {
	if b < a {
		return b
	}
	return a
}

func maxf(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}

func draw3x3(dc draw.Canvas, grid [][]*plot.Plot) {
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 3,
		PadBottom: vg.Millimeter * 3,
		PadLeft:   vg.Millimeter * 3,
		PadRight:  vg.Millimeter * 3,
	}
	canvases := plot.Align(grid, tiles, dc)
	for r := range grid {
		for c := range grid[r] {
			grid[r][c].Draw(canvases[r][c])
		}
	}
}

// WritePNG renders the figure as a PNG.
func WritePNG(w io.Writer, d FigureData, width, height vg.Length) error {
	grid, err := Panels(d)
	if err != nil {
		return err
	}
	c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(figureDPI))
	draw3x3(draw.New(c), grid)
	_, err = vgimg.PngCanvas{Canvas: c}.WriteTo(w)
	return err
}

func WriteSVG(w io.Writer, d FigureData, width, height vg.Length) error {
	grid, err := Panels(d)
	if err != nil {
		return err
	}
	c := vgsvg.New(width, height)
	draw3x3(draw.New(c), grid)
	_, err = c.WriteTo(w)
	return err
}

// SaveFigure writes the figure to path; the extension picks PNG or SVG.
func SaveFigure(path string, d FigureData) error {
	var write func(io.Writer, FigureData, vg.Length, vg.Length) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		write = WritePNG
	case ".svg":
		write = WriteSVG
	default:
		return fmt.Errorf("export: unsupported figure format %q", filepath.Ext(path))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, d, DefaultWidth, DefaultHeight); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
