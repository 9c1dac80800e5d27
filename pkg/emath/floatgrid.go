package emath

import(
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

// A FloatGrid is a single channel of float64 values, e.g. one color
// plane of an image, or a per-pixel weight map.
type FloatGrid struct {
	stride int
	values []float64
}

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

func (g1 *FloatGrid)NewFromThis() FloatGrid  { return NewFloatGrid(g1.Dx(), g1.Dy()) }
func (fg *FloatGrid)Set(x, y int, v float64) { fg.values[fg.stride*y + x] = v }
func (fg *FloatGrid)Get(x, y int) float64    { return fg.values[fg.stride*y + x] }
func (fg *FloatGrid)Dx() int                 { return fg.stride }
func (fg *FloatGrid)Values() []float64       { return fg.values }

func (fg *FloatGrid)Dy() int {
	if fg.stride == 0 {
		return 0
	}
	return len(fg.values) / fg.stride
}

func (g1 *FloatGrid)Copy() FloatGrid {
	g2 := FloatGrid{stride: g1.stride, values:make([]float64, len(g1.values))}
	copy(g2.values, g1.values)
	return g2
}

// Fill sets every value in the grid to v.
func (fg *FloatGrid)Fill(v float64) {
	for i := range fg.values {
		fg.values[i] = v
	}
}

// GetClamped treats the grid as extending its edge values out to infinity.
func (fg *FloatGrid)GetClamped(x, y int) float64 {
	x = ClampInt(x, 0, fg.Dx()-1)
	y = ClampInt(y, 0, fg.Dy()-1)
	return fg.Get(x, y)
}

// reflect101 maps an out-of-range index back inside [0,n) the way
// OpenCV's BORDER_REFLECT_101 does (-1 -> 1, n -> n-2).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

// GaussianBlur applies a separable [1 2 1]/4 kernel, first along X
// then along Y.
func (g1 FloatGrid)GaussianBlur() FloatGrid {
	width := g1.Dx()
	height := g1.Dy()
	g2 := g1.NewFromThis()
	if width == 0 || height == 0 {
		return g2
	}

	T := g1.NewFromThis()

	//--- X blur, build up in T
	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			t := 2.0*g1.Get(x,y)
			t += g1.Get(reflect101(x-1, width), y)
			t += g1.Get(reflect101(x+1, width), y)
			T.Set(x, y, t/4.0)
		}
	}

	//--- Y blur, read from T and generate output
	for x:=0; x<width; x++ {
		for y:=0; y<height; y++ {
			t := 2.0*T.Get(x,y)
			t += T.Get(x, reflect101(y-1, height))
			t += T.Get(x, reflect101(y+1, height))
			g2.Set(x, y, t/4.0)
		}
	}

	return g2
}

// DownSample returns a grid that is 1/4 of the size, each value the average
// of a 2x2 block. A 1-pixel dimension stays at 1.
func (g1 *FloatGrid)DownSample() FloatGrid {
	width := MaxInt(g1.Dx() / 2, 1)
	height := MaxInt(g1.Dy() / 2, 1)
	g2 := NewFloatGrid(width, height)

	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			p := g1.GetClamped(2*x,   2*y)
			p += g1.GetClamped(2*x+1, 2*y)
			p += g1.GetClamped(2*x,   2*y+1)
			p += g1.GetClamped(2*x+1, 2*y+1)
			g2.Set(x, y, p/4.0)
		}
	}

	return g2
}

// UpSampleInto populates a grid `B`, which is assumed be 2x as big,
// by simply copying each value from `A` four times into a 2x2 block
// of values in `B`
func (A *FloatGrid)UpSampleInto(B *FloatGrid) {
	awidth  := A.Dx()
	aheight := A.Dy()
	width   := B.Dx()
	height  := B.Dy()

	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			ax := x/2
			ay := y/2
			if ax >= awidth  { ax = awidth-1 }
			if ay >= aheight { ay = aheight-1 }
			B.Set(x, y, A.Get(ax, ay))
		}
	}
}

// Expand is the inverse of a blur+DownSample step: it upsamples into a
// (w,h) grid and smooths the blocky result.
func (g1 *FloatGrid)Expand(w, h int) FloatGrid {
	g2 := NewFloatGrid(w, h)
	g1.UpSampleInto(&g2)
	return g2.GaussianBlur()
}

// Laplacian applies the 4-neighbour [0 1 0; 1 -4 1; 0 1 0] kernel.
func (g1 *FloatGrid)Laplacian() FloatGrid {
	width := g1.Dx()
	height := g1.Dy()
	g2 := g1.NewFromThis()

	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			v := -4.0 * g1.Get(x, y)
			v += g1.Get(reflect101(x-1, width), y)
			v += g1.Get(reflect101(x+1, width), y)
			v += g1.Get(x, reflect101(y-1, height))
			v += g1.Get(x, reflect101(y+1, height))
			g2.Set(x, y, v)
		}
	}

	return g2
}

func (g1 *FloatGrid)mustMatch(g2 *FloatGrid, op string) {
	if g1.stride != g2.stride || len(g1.values) != len(g2.values) {
		panic(fmt.Sprintf("FloatGrid.%s: size mismatch %dx%d vs %dx%d", op, g1.Dx(), g1.Dy(), g2.Dx(), g2.Dy()))
	}
}

// AddIn adds g2 into g1, in place.
func (g1 *FloatGrid)AddIn(g2 FloatGrid) {
	g1.mustMatch(&g2, "AddIn")
	for i := range g1.values {
		g1.values[i] += g2.values[i]
	}
}

// Sub returns g1 - g2.
func (g1 *FloatGrid)Sub(g2 FloatGrid) FloatGrid {
	g1.mustMatch(&g2, "Sub")
	g3 := g1.NewFromThis()
	for i := range g1.values {
		g3.values[i] = g1.values[i] - g2.values[i]
	}
	return g3
}

// Mul returns the elementwise product of g1 and g2.
func (g1 *FloatGrid)Mul(g2 FloatGrid) FloatGrid {
	g1.mustMatch(&g2, "Mul")
	g3 := g1.NewFromThis()
	for i := range g1.values {
		g3.values[i] = g1.values[i] * g2.values[i]
	}
	return g3
}

// Apply runs f over every value, in place.
func (fg *FloatGrid)Apply(f func(float64) float64) {
	for i, v := range fg.values {
		fg.values[i] = f(v)
	}
}

func (fg *FloatGrid)MinMax() (float64, float64) {
	min := math.MaxFloat64
	max := -1.0 * min
	for _, v := range fg.values {
		if v > max { max = v }
		if v < min { min = v }
	}
	return min, max
}

func (fg *FloatGrid)Stats() string {
	min, max := fg.MinMax()
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}]", fg.Dx(), fg.Dy(), min, max)
}

// ToImg saves a simple grayscale, based on the range of values in the grid, and gamma scaling the
// gray to look normal for human vision
func (fg *FloatGrid)ToImg(title, filename string) error {
	min, max := fg.MinMax()
	if max <= min {
		max = min + 1
	}

	img := image.NewRGBA64(image.Rectangle{Max:image.Point{fg.Dx(), fg.Dy()}})
	for x:=0; x<fg.Dx(); x++ {
		for y:=0; y<fg.Dy(); y++ {
			gray := uint16(GammaExpand_F64((fg.Get(x,y) - min) / (max - min)) * 65535.0)
			img.Set(x, y, color.RGBA64{gray, gray, gray, 0xFFFF})
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1,0,0)
	dc.DrawString(title, 10, 20)
	return dc.SavePNG(filename)
}
