package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ayusman/palmchef/internal/gesture"
)

var labelColors = map[gesture.Label]color.RGBA{
	gesture.Next:   {R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	gesture.Prev:   {R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	gesture.Repeat: {R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	gesture.Timer:  {R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

// RenderPNG saves the timeline as an image. The format follows the file
// extension of path.
func RenderPNG(path, title string, samples []Sample) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	s := split(samples)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = "confidence"
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	for _, l := range gesture.Labels {
		pts := s.live[l]
		if len(pts) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(pts))
		for i, pt := range pts {
			xys[i] = plotter.XY{X: pt[0], Y: pt[1]}
		}
		ln, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("line for %s: %w", l, err)
		}
		ln.Width = vg.Points(1)
		ln.Color = labelColors[l]
		p.Add(ln)
		p.Legend.Add(string(l), ln)
	}

	if len(s.fires) > 0 {
		xys := make(plotter.XYs, len(s.fires))
		for i, pt := range s.fires {
			xys[i] = plotter.XY{X: pt[0], Y: pt[1]}
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("fire markers: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(4)
		sc.GlyphStyle.Color = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
		p.Add(sc)
		p.Legend.Add("fired", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(12*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
