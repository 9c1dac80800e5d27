package fusion

import(
	"image"
	"math"

	"github.com/abworrall/hdr-bracket/pkg/emath"
)

// A pixelPicker chooses which layer supplies the pixel at (x,y).
type pixelPicker func(s *Stack, x, y int) int

// pickByLayer builds a radiance map where each pixel comes from a single
// layer, scaled back by that layer's exposure time. If a response curve
// has been recovered it linearizes the pixel values; otherwise they are
// taken as linear already.
func (s *Stack)pickByLayer(pick pixelPicker) *Radiance {
	w, h := s.Dx(), s.Dy()
	rad := Radiance{Channels: make([]emath.FloatGrid, s.NChan)}
	for c := range rad.Channels {
		rad.Channels[c] = emath.NewFloatGrid(w, h)
	}

	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			l := &s.Layers[pick(s, x, y)]
			for c:=0; c<s.NChan; c++ {
				z := l.Z(c, x, y)
				e := (float64(z) + 0.5) / LDRSize
				if s.Response != nil {
					e = s.Response.Curves[c][z]
				}
				rad.Channels[c].Set(x, y, e / l.Seconds())
			}
		}
	}
	return &rad
}

func (l *Layer)luma(x, y int) float64 {
	if len(l.Channels) == 1 {
		return l.Channels[0].Get(x, y) / 255.0
	}
	return emath.Vec3{l.Channels[0].Get(x, y), l.Channels[1].Get(x, y), l.Channels[2].Get(x, y)}.Luma() / 255.0
}

// FuseByPickMostExposed looks for the layer that is most exposed (i.e.
// has received the most photons and will thus have lowest noise), but not
// over-exposed at this pixel (luma no more than FuserLuminance).
func FuseByPickMostExposed(s *Stack) (image.Image, error) {
	maxY := s.FuserLuminance

	// Layers are sorted by ascending exposure, so start at the end
	pick := func(s *Stack, x, y int) int {
		for i:=len(s.Layers)-1; i>0; i-- {
			if s.Layers[i].luma(x, y) <= maxY {
				return i
			}
		}
		return 0
	}

	return gammaTonemap(s.pickByLayer(pick), s.Gamma, s.Verbosity), nil
}

// FuseBySector cuts up the image into pie slices, and simply picks a
// source layer based on which slice the pixel lies inside. It's useful
// for checking how well the layers have been aligned.
func FuseBySector(s *Stack) (image.Image, error) {
	cx, cy := float64(s.Dx())/2, float64(s.Dy())/2
	numSegmentsPerLayer := 5
	numSegments := len(s.Layers) * numSegmentsPerLayer
	segmentWidth := 360.0 / float64(numSegments)

	pick := func(s *Stack, x, y int) int {
		thetaDegrees := 180 + math.Atan2(float64(y)-cy, float64(x)-cx) * 180.0 / math.Pi
		thisSegment := int(thetaDegrees / segmentWidth)
		return thisSegment % len(s.Layers)
	}

	return gammaTonemap(s.pickByLayer(pick), s.Gamma, s.Verbosity), nil
}
