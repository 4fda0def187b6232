// Package render draws prediction frames over a map patch and encodes them
// into animations.
package render

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/Noofbiz/trajviz/datasets"
	"github.com/Noofbiz/trajviz/geom"
)

// Style selects how an agent is drawn.
type Style int

const (
	StyleObject Style = iota
	StyleTarget
	StyleTwoWheeler
	StyleVehicle
	StylePedestrian
)

func (s Style) String() string {
	switch s {
	case StyleTarget:
		return "target"
	case StyleTwoWheeler:
		return "two-wheeler"
	case StyleVehicle:
		return "vehicle"
	case StylePedestrian:
		return "pedestrian"
	default:
		return "object"
	}
}

// Agent is one annotated instance in a frame, in map coordinates.
type Agent struct {
	InstanceToken string
	Style         Style
	Position      r2.Vec
	Yaw           float64
	// History is chronological and ends at Position. Future is chronological
	// and may be empty.
	History []r2.Vec
	Future  []r2.Vec
}

// Mode is one predicted trajectory in map coordinates.
type Mode struct {
	Trajectory  []r2.Vec
	Probability float64
}

// Frame is everything drawn for one sample.
type Frame struct {
	Title    string
	Location string
	Ego      geom.Pose
	Agents   []Agent
	// Modes are drawn in order; callers pass them ranked.
	Modes []Mode
}

// MapSource provides the map polygons drawn under a frame.
type MapSource interface {
	MapPolygons(location string, patch geom.Patch, layers []string) ([]datasets.MapPolygon, error)
}

// Options controls the layout of rendered frames.
type Options struct {
	Layers       []string
	PatchMargin  float64
	MinDiffPatch float64
	// FrameInches is the side of the square image, DPI its resolution.
	FrameInches float64
	DPI         int
	// HistoryLabel and FutureLabel name the dashed lines in the legend.
	HistoryLabel string
	FutureLabel  string
}

// DefaultOptions returns the default frame layout.
func DefaultOptions() Options {
	return Options{
		Layers:       []string{"lane", "road_segment", "road_block", "ped_crossing", "walkway"},
		PatchMargin:  50,
		MinDiffPatch: 50,
		FrameInches:  10,
		DPI:          60,
		HistoryLabel: "2s past trajectory",
		FutureLabel:  "6s future ground truth trajectory",
	}
}

// Renderer draws frames. Maps may be nil, in which case no map is drawn.
type Renderer struct {
	Maps MapSource
	Opts Options
}

// NewRenderer returns a Renderer with the given options. Zero-valued sizes
// fall back to DefaultOptions.
func NewRenderer(maps MapSource, opts Options) *Renderer {
	def := DefaultOptions()
	if opts.Layers == nil {
		opts.Layers = def.Layers
	}
	if opts.PatchMargin <= 0 {
		opts.PatchMargin = def.PatchMargin
	}
	if opts.MinDiffPatch <= 0 {
		opts.MinDiffPatch = def.MinDiffPatch
	}
	if opts.FrameInches <= 0 {
		opts.FrameInches = def.FrameInches
	}
	if opts.DPI <= 0 {
		opts.DPI = def.DPI
	}
	if opts.HistoryLabel == "" {
		opts.HistoryLabel = def.HistoryLabel
	}
	if opts.FutureLabel == "" {
		opts.FutureLabel = def.FutureLabel
	}
	return &Renderer{Maps: maps, Opts: opts}
}

var (
	egoColor        = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	targetColor     = color.RGBA{R: 0, G: 0, B: 139, A: 255}
	vehicleColor    = color.RGBA{R: 173, G: 216, B: 230, A: 255}
	twoWheelerColor = color.RGBA{R: 0, G: 128, B: 0, A: 255}
	pedestrianColor = color.RGBA{R: 0, G: 191, B: 191, A: 255}
	objectColor     = color.RGBA{R: 191, G: 191, B: 0, A: 255}
	historyColor    = color.Black
	futureColor     = color.White

	// nuScenes map layer colours.
	layerColors = map[string]color.RGBA{
		"drivable_area": {R: 0xa6, G: 0xce, B: 0xe3, A: 255},
		"road_segment":  {R: 0x1f, G: 0x78, B: 0xb4, A: 255},
		"road_block":    {R: 0xb2, G: 0xdf, B: 0x8a, A: 255},
		"lane":          {R: 0x33, G: 0xa0, B: 0x2c, A: 255},
		"ped_crossing":  {R: 0xfb, G: 0x9a, B: 0x99, A: 255},
		"walkway":       {R: 0xe3, G: 0x1a, B: 0x1c, A: 255},
		"stop_line":     {R: 0xfd, G: 0xbf, B: 0x6f, A: 255},
		"carpark_area":  {R: 0xff, G: 0x7f, B: 0x00, A: 255},
	}

	// Layers drawn but left out of the legend.
	unlabelledLayers = map[string]bool{"lane": true, "road_block": true}

	dashes = []vg.Length{vg.Points(4), vg.Points(3)}
)

const (
	mapAlpha       = 0.3
	modeAlpha      = 0.8
	circleRadius   = 0.4 // metres
	carLength      = 4.5
	carWidth       = 2.0
	colorBarInches = 1.2
)

// Render draws f over the map patch around the ego vehicle and rasterises
// it.
func (r *Renderer) Render(f Frame) (image.Image, error) {
	patch := geom.PatchAround(f.Ego.Translation, r.Opts.PatchMargin, r.Opts.MinDiffPatch)

	p := plot.New()
	p.Title.Text = f.Title
	p.X.Min, p.X.Max = patch.MinX, patch.MaxX
	p.Y.Min, p.Y.Max = patch.MinY, patch.MaxY
	p.Legend.Top = true

	if err := r.addMap(p, f.Location, patch); err != nil {
		return nil, err
	}

	// Lines first, then icons, predictions, and the target on top.
	var target *Agent
	for i := range f.Agents {
		a := &f.Agents[i]
		if err := addDashed(p, a.History, historyColor, vg.Points(1)); err != nil {
			return nil, errors.Wrapf(err, "history of %s", a.InstanceToken)
		}
		if err := addDashed(p, a.Future, futureColor, vg.Points(1)); err != nil {
			return nil, errors.Wrapf(err, "future of %s", a.InstanceToken)
		}
	}
	for i := range f.Agents {
		a := &f.Agents[i]
		if a.Style == StyleTarget {
			target = a
			continue
		}
		if err := addAgent(p, *a); err != nil {
			return nil, errors.Wrapf(err, "agent %s", a.InstanceToken)
		}
	}
	if err := addFilled(p, carOutline(f.Ego.Translation, f.Ego.Yaw()), egoColor); err != nil {
		return nil, errors.Wrap(err, "ego")
	}

	cmap := newCoolMap()
	for n, m := range f.Modes {
		line, err := modeLine(m, cmap)
		if err != nil {
			return nil, errors.Wrapf(err, "mode %d", n)
		}
		if line == nil {
			continue
		}
		p.Add(line)
		if n == 0 {
			p.Legend.Add("Predicted Trajectory", line)
		}
	}
	if target != nil {
		if err := addAgent(p, *target); err != nil {
			return nil, errors.Wrapf(err, "target %s", target.InstanceToken)
		}
	}

	if err := r.addLegend(p); err != nil {
		return nil, err
	}

	side := vg.Length(r.Opts.FrameInches) * vg.Inch
	c := vgimg.NewWith(vgimg.UseWH(side, side), vgimg.UseDPI(r.Opts.DPI))
	dc := draw.New(c)
	bar := vg.Length(colorBarInches) * vg.Inch
	p.Draw(draw.Crop(dc, 0, -bar, 0, 0))

	cb := plot.New()
	cb.HideX()
	cb.Y.Label.Text = "Probability of each mode"
	cb.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})
	cb.Draw(draw.Crop(dc, side-bar, 0, 0, 0))

	return c.Image(), nil
}

func (r *Renderer) addMap(p *plot.Plot, location string, patch geom.Patch) error {
	if r.Maps == nil || len(r.Opts.Layers) == 0 {
		return nil
	}
	polys, err := r.Maps.MapPolygons(location, patch, r.Opts.Layers)
	if err != nil {
		return errors.Wrapf(err, "map patch of %s", location)
	}
	labelled := make(map[string]bool)
	for _, poly := range polys {
		if len(poly.Vertices) < 3 {
			continue
		}
		pg, err := plotter.NewPolygon(toXYs(poly.Vertices))
		if err != nil {
			return errors.Wrapf(err, "polygon %s/%s", poly.Layer, poly.ID)
		}
		pg.Color = withAlpha(layerColor(poly.Layer), mapAlpha)
		pg.LineStyle.Width = 0
		p.Add(pg)
		if !labelled[poly.Layer] && !unlabelledLayers[poly.Layer] {
			labelled[poly.Layer] = true
			p.Legend.Add(poly.Layer, pg)
		}
	}
	return nil
}

func (r *Renderer) addLegend(p *plot.Plot) error {
	hist, err := legendLine(historyColor)
	if err != nil {
		return err
	}
	fut, err := legendLine(futureColor)
	if err != nil {
		return err
	}
	p.Legend.Add(r.Opts.HistoryLabel, hist)
	p.Legend.Add(r.Opts.FutureLabel, fut)

	for _, e := range []struct {
		label string
		col   color.Color
	}{
		{"Autonomous Vehicle", egoColor},
		{"Focal vehicle", targetColor},
		{"Surrounding vehicles", vehicleColor},
	} {
		pg, err := plotter.NewPolygon(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}})
		if err != nil {
			return err
		}
		pg.Color = e.col
		p.Legend.Add(e.label, pg)
	}
	for _, e := range []struct {
		label string
		col   color.Color
	}{
		{"Pedestrians", pedestrianColor},
		{"Bicycles", twoWheelerColor},
		{"Objects", objectColor},
	} {
		sc, err := plotter.NewScatter(plotter.XYs{{}})
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = e.col
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Legend.Add(e.label, sc)
	}
	return nil
}

func addAgent(p *plot.Plot, a Agent) error {
	switch a.Style {
	case StyleTarget:
		return addFilled(p, carOutline(a.Position, a.Yaw), targetColor)
	case StyleVehicle:
		return addFilled(p, carOutline(a.Position, a.Yaw), vehicleColor)
	case StyleTwoWheeler:
		return addFilled(p, circle(a.Position, circleRadius), twoWheelerColor)
	case StylePedestrian:
		return addFilled(p, circle(a.Position, circleRadius), pedestrianColor)
	default:
		return addFilled(p, circle(a.Position, circleRadius), objectColor)
	}
}

func addFilled(p *plot.Plot, outline []r2.Vec, col color.Color) error {
	pg, err := plotter.NewPolygon(toXYs(outline))
	if err != nil {
		return err
	}
	pg.Color = col
	pg.LineStyle.Color = col
	pg.LineStyle.Width = vg.Points(0.5)
	p.Add(pg)
	return nil
}

func addDashed(p *plot.Plot, pts []r2.Vec, col color.Color, width vg.Length) error {
	if len(pts) < 2 {
		return nil
	}
	line, err := plotter.NewLine(toXYs(pts))
	if err != nil {
		return err
	}
	line.Color = col
	line.Width = width
	line.Dashes = dashes
	p.Add(line)
	return nil
}

func legendLine(col color.Color) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 0}})
	if err != nil {
		return nil, err
	}
	line.Color = col
	line.Width = vg.Points(1)
	line.Dashes = dashes
	return line, nil
}

// modeLine styles a predicted trajectory: colour from the cool map at four
// times the probability, width max(1, 7p) points.
func modeLine(m Mode, cmap *coolMap) (*plotter.Line, error) {
	if len(m.Trajectory) < 2 {
		return nil, nil
	}
	line, err := plotter.NewLine(toXYs(m.Trajectory))
	if err != nil {
		return nil, err
	}
	line.Color = withAlpha(cmap.clamped(4*m.Probability), modeAlpha)
	line.Width = vg.Points(math.Max(1, 7*m.Probability))
	line.Dashes = dashes
	return line, nil
}

// carOutline returns a car-shaped polygon centred at pos and pointing along
// yaw.
func carOutline(pos r2.Vec, yaw float64) []r2.Vec {
	l, w := carLength/2, carWidth/2
	nose := 0.6
	shape := []r2.Vec{
		{X: -l, Y: -w}, {X: l - nose, Y: -w}, {X: l, Y: 0}, {X: l - nose, Y: w}, {X: -l, Y: w},
	}
	rot := r2.NewRotation(yaw, r2.Vec{})
	for i, v := range shape {
		shape[i] = r2.Add(rot.Rotate(v), pos)
	}
	return shape
}

func circle(c r2.Vec, radius float64) []r2.Vec {
	const n = 16
	out := make([]r2.Vec, n)
	for i := range out {
		a := 2 * math.Pi * float64(i) / n
		out[i] = r2.Vec{X: c.X + radius*math.Cos(a), Y: c.Y + radius*math.Sin(a)}
	}
	return out
}

func layerColor(layer string) color.RGBA {
	if c, ok := layerColors[layer]; ok {
		return c
	}
	return color.RGBA{R: 128, G: 128, B: 128, A: 255}
}

func withAlpha(c color.Color, alpha float64) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(math.Round(float64(n.A) * alpha))
	return n
}

func toXYs(pts []r2.Vec) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, v := range pts {
		xys[i] = plotter.XY{X: v.X, Y: v.Y}
	}
	return xys
}
