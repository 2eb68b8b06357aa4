package headless

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/slamviewer/internal/viewer"
)

// segmentSamples is how many points each segment contributes to a 3D export.
const segmentSamples = 6

func (h *Host) outputPath(name, ext string) string {
	session := h.cfg.SessionID
	if len(session) > 8 {
		session = session[:8]
	}
	return filepath.Join(h.cfg.OutputDir, fmt.Sprintf("%s_%s_%06d.%s", name, session, h.index, ext))
}

// Project maps a world point onto the 2D plane viewed for an axis preset:
// the plane orthogonal to the up axis, mirrored for the negative presets.
// AxisNone views the X-Y plane.
func Project(p viewer.Point, axis viewer.AxisPreset) (x, y float64) {
	switch axis {
	case viewer.AxisX:
		return p.Y, p.Z
	case viewer.AxisNegX:
		return -p.Y, p.Z
	case viewer.AxisY:
		return p.X, p.Z
	case viewer.AxisNegY:
		return -p.X, p.Z
	case viewer.AxisNegZ:
		return -p.X, p.Y
	default:
		return p.X, p.Y
	}
}

func toRGBA(c viewer.Color) color.RGBA {
	clamp := func(v float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return color.RGBA{R: clamp(c.R), G: clamp(c.G), B: clamp(c.B), A: 255}
}

func hexColor(c viewer.Color) string {
	rgba := toRGBA(c)
	return fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)
}

// segmentPlotter draws disjoint line segments in one pass.
type segmentPlotter struct {
	segs  [][2]plotter.XY
	style draw.LineStyle
}

func (s *segmentPlotter) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	for _, seg := range s.segs {
		c.StrokeLine2(s.style, trX(seg[0].X), trY(seg[0].Y), trX(seg[1].X), trY(seg[1].Y))
	}
}

func (s *segmentPlotter) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, seg := range s.segs {
		for _, p := range seg {
			xmin, xmax = math.Min(xmin, p.X), math.Max(xmax, p.X)
			ymin, ymax = math.Min(ymin, p.Y), math.Max(ymax, p.Y)
		}
	}
	return xmin, xmax, ymin, ymax
}

// renderPNG draws f projected on its axis preset's view plane.
func renderPNG(f Frame, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("frame %d (up %s)", f.Index, f.View.Axis)
	p.BackgroundColor = toRGBA(f.Background)
	p.X.Label.Text = "m"
	p.Y.Label.Text = "m"

	for _, b := range f.Lines {
		if len(b.Segments) == 0 {
			continue
		}
		sp := &segmentPlotter{
			segs:  make([][2]plotter.XY, len(b.Segments)),
			style: draw.LineStyle{Color: toRGBA(b.Style.Color), Width: vg.Points(math.Max(b.Style.LineWidth, 0.5))},
		}
		for i, s := range b.Segments {
			x0, y0 := Project(s.From, f.View.Axis)
			x1, y1 := Project(s.To, f.View.Axis)
			sp.segs[i] = [2]plotter.XY{{X: x0, Y: y0}, {X: x1, Y: y1}}
		}
		p.Add(sp)
	}

	for _, b := range f.Points {
		if len(b.Points) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(b.Points))
		for i, pt := range b.Points {
			xys[i].X, xys[i].Y = Project(pt, f.View.Axis)
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("scatter: %w", err)
		}
		sc.GlyphStyle.Color = toRGBA(b.Style.Color)
		sc.GlyphStyle.Radius = vg.Points(math.Max(b.Style.PointSize, 1) / 2)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
	}

	w := vg.Length(viewer.WindowWidth) * vg.Inch / 96
	h := vg.Length(viewer.WindowHeight) * vg.Inch / 96
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save window %s: %w", path, err)
	}
	return nil
}

// renderHTML writes f as a go-echarts 3D scatter. Line batches are sampled
// along each segment so edges stay visible in the point cloud.
func renderHTML(f Frame, session, path string) error {
	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "slamviewer object",
			Width:     fmt.Sprintf("%dpx", viewer.WindowWidth),
			Height:    fmt.Sprintf("%dpx", viewer.WindowHeight),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("frame %d", f.Index),
			Subtitle: "session " + session,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	for i, b := range f.Points {
		data := make([]opts.Chart3DData, 0, len(b.Points))
		for _, p := range b.Points {
			data = append(data, opts.Chart3DData{Value: []interface{}{p.X, p.Y, p.Z}})
		}
		scatter.AddSeries(fmt.Sprintf("points %d", i), data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(b.Style.Color)}))
	}
	for i, b := range f.Lines {
		data := make([]opts.Chart3DData, 0, len(b.Segments)*segmentSamples)
		for _, s := range b.Segments {
			for k := 0; k < segmentSamples; k++ {
				t := float64(k) / float64(segmentSamples-1)
				p := viewer.Point{
					X: s.From.X + t*(s.To.X-s.From.X),
					Y: s.From.Y + t*(s.To.Y-s.From.Y),
					Z: s.From.Z + t*(s.To.Z-s.From.Z),
				}
				data = append(data, opts.Chart3DData{Value: []interface{}{p.X, p.Y, p.Z}})
			}
		}
		scatter.AddSeries(fmt.Sprintf("lines %d", i), data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(b.Style.Color)}))
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save object: %w", err)
	}
	if err := scatter.Render(out); err != nil {
		out.Close()
		return fmt.Errorf("render object %s: %w", path, err)
	}
	return out.Close()
}
