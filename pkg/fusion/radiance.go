package fusion

import(
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"os"
	"sync"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/hdr-bracket/pkg/emath"
)

// Radiance is the merged HDR image, one grid of relative radiance per
// channel. Implements the hdr.Image interface.
type Radiance struct {
	Channels []emath.FloatGrid
}

// Implement image.Image
func (r *Radiance)ColorModel() color.Model  { return hdrcolor.RGBModel }
func (r *Radiance)Bounds() image.Rectangle  { return image.Rect(0, 0, r.Channels[0].Dx(), r.Channels[0].Dy()) }
func (r *Radiance)At(x, y int) color.Color  { return r.HDRAt(x, y) }

// Implement hdr.Image
func (r *Radiance)Size() int                { return r.Channels[0].Dx() * r.Channels[0].Dy() }

func (r *Radiance)HDRAt(x, y int) hdrcolor.Color {
	if len(r.Channels) == 1 {
		v := r.Channels[0].Get(x, y)
		return hdrcolor.RGB{R: v, G: v, B: v}
	}
	return hdrcolor.RGB{R: r.Channels[0].Get(x, y), G: r.Channels[1].Get(x, y), B: r.Channels[2].Get(x, y)}
}

func (r *Radiance)MinMax() (float64, float64) {
	min, max := math.MaxFloat64, -math.MaxFloat64
	for _, g := range r.Channels {
		gmin, gmax := g.MinMax()
		min = math.Min(min, gmin)
		max = math.Max(max, gmax)
	}
	return min, max
}

// Merge combines the layers into a radiance map, using the recovered
// response. Each pixel is the weighted mean over layers of
// g(z) - ln(t); the weight is the hat function averaged over channels.
func (s *Stack)Merge() error {
	if s.Response == nil {
		return fmt.Errorf("merge: no response curve, run Calibrate first")
	}
	s.stage("Merging radiance map")

	w, h := s.Dx(), s.Dy()
	rad := Radiance{Channels: make([]emath.FloatGrid, s.NChan)}
	for c := range rad.Channels {
		rad.Channels[c] = emath.NewFloatGrid(w, h)
	}

	logT := s.LogTimes()

	var wg sync.WaitGroup
	rows := make(chan int, h)

	// Rows are independent, so run them on a pool of goroutines
	nWorkers := s.Workers
	if nWorkers < 1 { nWorkers = 1 }
	for i:=0; i<nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sum := make([]float64, s.NChan)
			for y := range rows {
				for x:=0; x<w; x++ {
					for c := range sum { sum[c] = 0 }
					wSum := 0.0
					for j := range s.Layers {
						l := &s.Layers[j]
						wj := 0.0
						for c:=0; c<s.NChan; c++ {
							wj += TriangleWeight(l.Z(c, x, y))
						}
						wj /= float64(s.NChan)
						for c:=0; c<s.NChan; c++ {
							sum[c] += wj * (s.Response.LogE(c, l.Z(c, x, y)) - logT[j])
						}
						wSum += wj
					}
					for c:=0; c<s.NChan; c++ {
						rad.Channels[c].Set(x, y, math.Exp(sum[c] / wSum))
					}
				}
			}
		}()
	}

	for y:=0; y<h; y++ {
		rows<- y
	}
	close(rows)
	wg.Wait()

	s.Radiance = &rad
	if s.Verbosity > 0 {
		min, max := rad.MinMax()
		log.Printf("Radiance range [%g, %g], %.1f stops\n", min, max, math.Log2(max/min))
	}
	return nil
}

// WriteHDR outputs the radiance map as Radiance RGBE. You can load this into photoshop or other HDR tools.
func (s *Stack)WriteHDR(filename string) error {
	if s.Radiance == nil {
		return fmt.Errorf("WriteHDR: no radiance map, run Merge first")
	}
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("WriteHDR, open+w '%s': %w", filename, err)
	}
	defer writer.Close()
	if err := rgbe.Encode(writer, s.Radiance); err != nil {
		return fmt.Errorf("WriteHDR, encoding RGBE file: %w", err)
	}
	return nil
}
