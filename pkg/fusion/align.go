package fusion

import(
	"image"
	"log"
	"sort"
	"sync"

	"golang.org/x/image/draw"      // replace by "image/draw" at some point
	"golang.org/x/image/math/f64"  // replace by "image/math/f64" at some point

	"github.com/abworrall/hdr-bracket/pkg/emath"
)

// Align finds the translation that lines each layer up with the middle
// (reference) layer, using median threshold bitmaps (Ward, 2003), which
// don't care about the exposure differences. The shifted images are then
// cropped to the area that every layer covers.
func (s *Stack)Align() error {
	if len(s.Layers) < 2 {
		return nil
	}
	s.stage("Aligning frames")

	pivot := len(s.Layers) / 2
	bounds := s.Layers[pivot].LoadedImage.Bounds()
	ref := splitGray(s.Layers[pivot].LoadedImage)

	var wg sync.WaitGroup
	for i := range s.Layers {
		if i == pivot {
			continue
		}
		if s.Layers[i].LoadedImage.Bounds() != bounds {
			continue // Prepare will complain
		}
		wg.Add(1)
		go func(l *Layer) {
			defer wg.Done()
			l.Shift = CalculateShift(ref, splitGray(l.LoadedImage), s.AlignBits, s.AlignExclude)
			l.Image = ShiftImage(l.LoadedImage, l.Shift)
		}(&s.Layers[i])
	}
	wg.Wait()

	// Crop to the area that has real pixels in every layer
	area := bounds
	for _, l := range s.Layers {
		area = area.Intersect(bounds.Add(l.Shift))
		if s.Verbosity > 0 {
			log.Printf(" -- %s\n", l)
		}
	}
	if area.Empty() {
		area = bounds
	}
	s.Area = area
	log.Printf("Aligned %d frames to %s, common area %v\n", len(s.Layers), s.Layers[pivot].Filename(), area)
	return nil
}

// splitGray reads the image's luma as 8-bit values.
func splitGray(img image.Image) emath.FloatGrid {
	b := img.Bounds()
	g := emath.NewFloatGrid(b.Dx(), b.Dy())
	for y:=0; y<b.Dy(); y++ {
		for x:=0; x<b.Dx(); x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.Set(x, y, emath.Vec3{float64(r>>8), float64(gr>>8), float64(bl>>8)}.Luma())
		}
	}
	return g
}

// bitmaps is a threshold bitmap (pixel above median) and an exclusion
// bitmap (pixel far enough from the median to be trusted).
type bitmaps struct {
	w, h      int
	threshold []bool
	exclusion []bool
}

func median(g emath.FloatGrid) float64 {
	vals := append([]float64{}, g.Values()...)
	sort.Float64s(vals)
	if len(vals) == 0 {
		return 0
	}
	return vals[len(vals)/2]
}

func computeBitmaps(g emath.FloatGrid, exclude int) bitmaps {
	med := median(g)
	bm := bitmaps{w: g.Dx(), h: g.Dy()}
	for _, v := range g.Values() {
		bm.threshold = append(bm.threshold, v > med)
		bm.exclusion = append(bm.exclusion, v > med + float64(exclude) || v < med - float64(exclude))
	}
	return bm
}

// mismatch counts trusted pixels where the bitmaps disagree, with b2 shifted by (dx,dy).
func mismatch(b1, b2 bitmaps, dx, dy int) int {
	n := 0
	for y:=0; y<b1.h; y++ {
		for x:=0; x<b1.w; x++ {
			x2, y2 := x-dx, y-dy
			t2, e2 := false, false // shifted-in pixels are zero
			if x2 >= 0 && x2 < b2.w && y2 >= 0 && y2 < b2.h {
				t2 = b2.threshold[y2*b2.w + x2]
				e2 = b2.exclusion[y2*b2.w + x2]
			}
			i := y*b1.w + x
			if b1.threshold[i] != t2 && b1.exclusion[i] && e2 {
				n++
			}
		}
	}
	return n
}

// CalculateShift returns the translation to apply to img to line it up with ref.
func CalculateShift(ref, img emath.FloatGrid, maxBits, exclude int) image.Point {
	if maxBits < 1 {
		maxBits = 1
	}
	pyr0 := []emath.FloatGrid{ref}
	pyr1 := []emath.FloatGrid{img}
	for i:=1; i<maxBits; i++ {
		pyr0 = append(pyr0, pyr0[i-1].DownSample())
		pyr1 = append(pyr1, pyr1[i-1].DownSample())
	}

	shift := image.Point{}
	for level:=maxBits-1; level>=0; level-- {
		shift = shift.Mul(2)
		b1 := computeBitmaps(pyr0[level], exclude)
		b2 := computeBitmaps(pyr1[level], exclude)

		best := shift
		minErr := b1.w * b1.h + 1
		for dy:=-1; dy<=1; dy++ {
			for dx:=-1; dx<=1; dx++ {
				test := shift.Add(image.Point{dx, dy})
				if err := mismatch(b1, b2, test.X, test.Y); err < minErr {
					best, minErr = test, err
				}
			}
		}
		shift = best
	}
	return shift
}

// ShiftImage translates img by p, filling the uncovered edge with black.
func ShiftImage(img image.Image, p image.Point) image.Image {
	if p == (image.Point{}) {
		return img
	}

	var dst draw.Image
	if _, gray := img.(*image.Gray); gray {
		dst = image.NewGray(img.Bounds())
	} else {
		dst = image.NewRGBA64(img.Bounds())
	}

	m := emath.Identity().Translate(float64(p.X), float64(p.Y))
	draw.NearestNeighbor.Transform(dst, f64.Aff3(m), img, img.Bounds(), draw.Src, nil)
	return dst
}
