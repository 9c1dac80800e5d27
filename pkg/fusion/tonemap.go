package fusion

import(
	"fmt"
	"image"
	"log"
	"math"
	"path/filepath"

	"github.com/mdouchement/hdr/tmo"

	"github.com/abworrall/hdr-bracket/pkg/emath"
	"github.com/abworrall/hdr-bracket/pkg/framestore"
)

var(
	Tonemappers = []string{"gamma", "drago03", "durand", "icam06", "linear", "reinhard05"}
)

func ListTonemappers() string {
	return fmt.Sprintf("%v", Tonemappers)
}

// Tonemap compresses the radiance map into an 8-bit image, using the configured operator.
func (s *Stack)Tonemap() (image.Image, error) {
	return s.TonemapWith(s.Tonemapper)
}

func (s *Stack)TonemapWith(name string) (image.Image, error) {
	if s.Radiance == nil {
		return nil, fmt.Errorf("tonemap: no radiance map, run Merge first")
	}
	s.stage(fmt.Sprintf("Tonemapping: %s", name))

	if name == "gamma" {
		return s.tonemapGamma(), nil
	}
	op, err := s.SetupTonemapper(name)
	if err != nil {
		return nil, err
	}
	return op.Perform(), nil
}

// TonemapAll writes one image per operator into dir, as tmo-<name>.jpg.
func (s *Stack)TonemapAll(dir string) error {
	for _, name := range Tonemappers {
		img, err := s.TonemapWith(name)
		if err != nil {
			return err
		}
		if err := WriteJPEG(img, filepath.Join(dir, fmt.Sprintf("%s%s.jpg", framestore.OutputTonemapPrefix, name))); err != nil {
			return err
		}
	}
	return nil
}

// SetupTonemapper builds one of the operators from the tmo package.
func (s *Stack)SetupTonemapper(name string) (tmo.ToneMappingOperator, error) {
	switch name {
	case "drago03":
		op := tmo.NewDefaultDrago03(s.Radiance)
		op.Bias = 0.85
		return op, nil

	case "durand":
		return tmo.NewDefaultDurand(s.Radiance), nil

	case "icam06":
		op := tmo.NewDefaultICam06(s.Radiance)
		op.MaxClipping = 0.999
		return op, nil

	case "linear":
		return tmo.NewLinear(s.Radiance), nil

	case "reinhard05":
		return tmo.NewDefaultReinhard05(s.Radiance), nil
	}

	return nil, fmt.Errorf("ToneMapper %q not recognized, wanted %s", name, ListTonemappers())
}

// tonemapGamma scales the radiance into [0,1] by its min and max, applies
// 1/gamma, and stretches the result across the 8-bit range.
func (s *Stack)tonemapGamma() image.Image {
	return gammaTonemap(s.Radiance, s.Gamma, s.Verbosity)
}

func gammaTonemap(rad *Radiance, gamma float64, verbosity int) image.Image {
	w, h := rad.Bounds().Dx(), rad.Bounds().Dy()

	min, max := rad.MinMax()
	scale := 1.0
	if max - min > 1e-12 {
		scale = 1.0 / (max - min)
	} else {
		min = 0
	}

	if gamma <= 0 { gamma = 1 }

	mapped := make([]emath.FloatGrid, len(rad.Channels))
	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for c, g := range rad.Channels {
		mapped[c] = g.Copy()
		mapped[c].Apply(func(v float64) float64 { return math.Pow(math.Max((v - min) * scale, 0), 1.0/gamma) })
		gmin, gmax := mapped[c].MinMax()
		lo, hi = math.Min(lo, gmin), math.Max(hi, gmax)
	}

	// NORM_MINMAX into [0,255], then truncate
	norm := 0.0
	if hi > lo {
		norm = 255.0 / (hi - lo)
	}
	to8 := func(v float64) uint8 { return uint8(math.Min(math.Max((v - lo) * norm, 0), 255)) }

	if verbosity > 0 {
		log.Printf("gamma tonemap: radiance [%g,%g], gamma %.2f\n", min, max, gamma)
	}

	if len(mapped) == 1 {
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y:=0; y<h; y++ {
			for x:=0; x<w; x++ {
				img.Pix[y*img.Stride + x] = to8(mapped[0].Get(x, y))
			}
		}
		return img
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			i := y*img.Stride + 4*x
			img.Pix[i+0] = to8(mapped[0].Get(x, y))
			img.Pix[i+1] = to8(mapped[1].Get(x, y))
			img.Pix[i+2] = to8(mapped[2].Get(x, y))
			img.Pix[i+3] = 0xFF
		}
	}
	return img
}
