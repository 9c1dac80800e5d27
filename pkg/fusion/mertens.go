package fusion

import(
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/abworrall/hdr-bracket/pkg/emath"
	"github.com/abworrall/hdr-bracket/pkg/framestore"
)

// Fuse runs the configured exposure fusion engine.
func (s *Stack)Fuse() (image.Image, error) {
	fuser, err := s.GetFuser()
	if err != nil {
		return nil, err
	}
	s.stage(fmt.Sprintf("Exposure fusion: %s", s.Fuser))
	return fuser(s)
}

// MertensWeights computes the per-pixel quality of a layer, from Mertens,
// Kautz & Van Reeth (2007): local contrast (Laplacian of the gray image),
// saturation (spread of the channels) and well-exposedness (closeness to
// mid-gray). Each term is raised to its configured weight. Saturation is
// left out for single channel stacks, where it would always be zero.
func (s *Stack)MertensWeights(l *Layer) emath.FloatGrid {
	w, h := s.Dx(), s.Dy()

	chans := make([]emath.FloatGrid, s.NChan)
	for c := range chans {
		chans[c] = l.Channels[c].Copy()
		chans[c].Apply(func(v float64) float64 { return v / 255.0 })
	}

	gray := chans[0]
	if s.NChan == 3 {
		gray = emath.NewFloatGrid(w, h)
		for y:=0; y<h; y++ {
			for x:=0; x<w; x++ {
				gray.Set(x, y, emath.Vec3{chans[0].Get(x,y), chans[1].Get(x,y), chans[2].Get(x,y)}.Luma())
			}
		}
	}
	contrast := gray.Laplacian()

	weights := emath.NewFloatGrid(w, h)
	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			mean := 0.0
			for c := range chans {
				mean += chans[c].Get(x, y)
			}
			mean /= float64(s.NChan)

			variance := 0.0
			wellExp := 1.0
			for c := range chans {
				v := chans[c].Get(x, y)
				variance += (v - mean) * (v - mean)
				wellExp *= math.Exp(-(v - 0.5) * (v - 0.5) / 0.08)
			}
			saturation := math.Sqrt(variance / float64(s.NChan))

			q := math.Pow(math.Abs(contrast.Get(x, y)), s.ContrastWeight)
			if s.NChan > 1 {
				q *= math.Pow(saturation, s.SaturationWeight)
			}
			q *= math.Pow(wellExp, s.ExposureWeight)

			weights.Set(x, y, q + 1e-12)
		}
	}
	return weights
}

// FuseMertens blends the layers with a Laplacian pyramid, weighting each
// layer per pixel by its normalized MertensWeights.
func FuseMertens(s *Stack) (image.Image, error) {
	w, h := s.Dx(), s.Dy()
	levels := emath.PyramidLevels(w, h)

	weights := []emath.FloatGrid{}
	sum := emath.NewFloatGrid(w, h)
	for i := range s.Layers {
		wt := s.MertensWeights(&s.Layers[i])
		sum.AddIn(wt)
		weights = append(weights, wt)
	}

	res := make([][]emath.FloatGrid, s.NChan) // [channel][level]
	for i := range s.Layers {
		wt := weights[i]
		for j, v := range wt.Values() {
			wt.Values()[j] = v / sum.Values()[j]
		}
		if s.DumpWeights {
			name := fmt.Sprintf("%s%02d.png", framestore.OutputWeightsPrefix, i)
			if err := wt.ToImg(s.Layers[i].Filename(), filepath.Join(filepath.Dir(s.Layers[i].LoadFilename), name)); err != nil {
				return nil, fmt.Errorf("dump weights: %w", err)
			}
		}

		wPyr := emath.GaussianPyramid(wt, levels)
		for c:=0; c<s.NChan; c++ {
			img := s.Layers[i].Channels[c].Copy()
			img.Apply(func(v float64) float64 { return v / 255.0 })
			lPyr := emath.LaplacianPyramid(img, levels)

			if res[c] == nil {
				res[c] = make([]emath.FloatGrid, levels+1)
				for lvl := range lPyr {
					res[c][lvl] = lPyr[lvl].NewFromThis()
				}
			}
			for lvl := range lPyr {
				res[c][lvl].AddIn(lPyr[lvl].Mul(wPyr[lvl]))
			}
		}
	}

	out := make([]emath.FloatGrid, s.NChan)
	for c := range out {
		out[c] = emath.CollapsePyramid(res[c])
	}

	// clip(fusion*255), truncated to 8 bits
	to8 := func(v float64) uint8 { return uint8(math.Min(math.Max(v * 255.0, 0), 255)) }

	if s.NChan == 1 {
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y:=0; y<h; y++ {
			for x:=0; x<w; x++ {
				img.Pix[y*img.Stride + x] = to8(out[0].Get(x, y))
			}
		}
		return img, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			i := y*img.Stride + 4*x
			img.Pix[i+0] = to8(out[0].Get(x, y))
			img.Pix[i+1] = to8(out[1].Get(x, y))
			img.Pix[i+2] = to8(out[2].Get(x, y))
			img.Pix[i+3] = 0xFF
		}
	}
	return img, nil
}
