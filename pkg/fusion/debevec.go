package fusion

import(
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LDRSize is the number of distinct pixel values in an 8-bit frame
const LDRSize = 256

func logf(f float64) float64 { return math.Log(f) }

// TriangleWeight is the hat function used to trust mid-range pixel values
// more than values near black or white. It never reaches zero.
func TriangleWeight(z int) float64 {
	if z < LDRSize/2 {
		return float64(z + 1)
	}
	return float64(LDRSize - z)
}

// Response is the recovered camera response: for each channel, the
// relative exposure (radiance * seconds) that produces each pixel value.
type Response struct {
	Curves [][LDRSize]float64
}

// LogE returns ln(exposure) for pixel value z in channel c.
func (r *Response)LogE(c, z int) float64 {
	return math.Log(r.Curves[c][z])
}

// SamplePoints picks the pixels used to recover the response. By default
// they are a regular grid of roughly `n` points.
func SamplePoints(w, h, n int, random bool, seed int64) ([]image.Point, error) {
	pts := []image.Point{}

	if random {
		rnd := rand.New(rand.NewSource(seed))
		for i:=0; i<n; i++ {
			pts = append(pts, image.Point{rnd.Intn(w), rnd.Intn(h)})
		}
		return pts, nil
	}

	xPoints := int(math.Sqrt(float64(n) * float64(w) / float64(h)))
	if xPoints <= 0 || xPoints > w {
		return nil, fmt.Errorf("can't place %d samples across a %dx%d image", n, w, h)
	}
	yPoints := n / xPoints
	if yPoints <= 0 || yPoints > h {
		return nil, fmt.Errorf("can't place %d samples down a %dx%d image", n, w, h)
	}

	stepX := w / xPoints
	stepY := h / yPoints
	for i, x := 0, stepX/2; i < xPoints; i, x = i+1, x+stepX {
		for j, y := 0, stepY/2; j < yPoints; j, y = j+1, y+stepY {
			if x >= 0 && x < w && y >= 0 && y < h {
				pts = append(pts, image.Point{x, y})
			}
		}
	}
	return pts, nil
}

// Calibrate recovers the camera response curve from the layers, following
// Debevec & Malik (1997). For each channel it solves, in the least squares
// sense, for g(z) = ln(exposure that yields pixel value z) and for the log
// radiance of each sampled pixel:
//
//   w(z_ij) * [ g(z_ij) - lnE_i ] = w(z_ij) * ln(t_j)
//   g(128) = 0
//   lambda * w(z) * [ g(z-1) - 2g(z) + g(z+1) ] = 0
func (s *Stack)Calibrate() error {
	s.stage("Calibrating camera response")

	pts, err := SamplePoints(s.Dx(), s.Dy(), s.Samples, s.RandomSamples, s.Seed)
	if err != nil {
		return err
	}
	if len(pts) * (len(s.Layers)-1) < LDRSize {
		log.Printf("Warning: only %d samples x %d frames, the response curve may be poorly constrained\n", len(pts), len(s.Layers))
	}

	logT := s.LogTimes()
	nRows := len(pts)*len(s.Layers) + 1 + (LDRSize - 2)
	nCols := LDRSize + len(pts)

	resp := Response{Curves: make([][LDRSize]float64, s.NChan)}

	for c:=0; c<s.NChan; c++ {
		A := mat.NewDense(nRows, nCols, nil)
		b := mat.NewVecDense(nRows, nil)

		k := 0
		for i, pt := range pts {
			for j := range s.Layers {
				z := s.Layers[j].Z(c, pt.X, pt.Y)
				wij := TriangleWeight(z)
				A.Set(k, z, wij)
				A.Set(k, LDRSize+i, -wij)
				b.SetVec(k, wij*logT[j])
				k++
			}
		}

		// Fix the curve's scale
		A.Set(k, LDRSize/2, 1)
		k++

		for z:=0; z<LDRSize-2; z++ {
			wz := TriangleWeight(z+1)
			A.Set(k, z,   s.Lambda * wz)
			A.Set(k, z+1, -2 * s.Lambda * wz)
			A.Set(k, z+2, s.Lambda * wz)
			k++
		}

		var x mat.VecDense
		if err := x.SolveVec(A, b); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return fmt.Errorf("response solve, channel %d: %w", c, err)
			}
			log.Printf("Warning: response solve, channel %d: %v\n", c, err)
		}

		for z:=0; z<LDRSize; z++ {
			resp.Curves[c][z] = math.Exp(x.AtVec(z))
		}
	}

	s.Response = &resp
	if s.Verbosity > 0 {
		log.Printf("Response curve (ch0): E(0)=%g, E(128)=%g, E(255)=%g\n", resp.Curves[0][0], resp.Curves[0][128], resp.Curves[0][255])
	}
	return nil
}
