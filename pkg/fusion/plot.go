package fusion

import(
	"fmt"
	"math"

	"github.com/fogleman/gg"
)

// PlotResponse draws the recovered response curves: pixel value along the
// X axis, ln(exposure) up the Y axis.
func (s *Stack)PlotResponse(filename string) error {
	if s.Response == nil {
		return fmt.Errorf("PlotResponse: no response curve, run Calibrate first")
	}

	const W, H, margin = 600, 400, 40.0

	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for c := range s.Response.Curves {
		for z:=0; z<LDRSize; z++ {
			v := s.Response.LogE(c, z)
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if hi <= lo {
		hi = lo + 1
	}

	px := func(z int) float64 { return margin + float64(z) / float64(LDRSize-1) * (W - 2*margin) }
	py := func(v float64) float64 { return H - margin - (v - lo) / (hi - lo) * (H - 2*margin) }

	dc := gg.NewContext(W, H)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0.6, 0.6, 0.6)
	dc.DrawLine(margin, H-margin, W-margin, H-margin)
	dc.DrawLine(margin, margin, margin, H-margin)
	dc.Stroke()

	colors := [][3]float64{{0.8, 0, 0}, {0, 0.6, 0}, {0, 0, 0.8}}
	if len(s.Response.Curves) == 1 {
		colors = [][3]float64{{0, 0, 0}}
	}
	for c := range s.Response.Curves {
		dc.SetRGB(colors[c][0], colors[c][1], colors[c][2])
		dc.MoveTo(px(0), py(s.Response.LogE(c, 0)))
		for z:=1; z<LDRSize; z++ {
			dc.LineTo(px(z), py(s.Response.LogE(c, z)))
		}
		dc.Stroke()
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawString("pixel value", W/2-30, H-10)
	dc.DrawString(fmt.Sprintf("ln E: [%.2f, %.2f]", lo, hi), margin, 20)

	return dc.SavePNG(filename)
}
