package emath

import "math"

// PyramidLevels is the number of times the smaller image dimension can
// be halved before it hits a single pixel.
func PyramidLevels(w, h int) int {
	minDim := w
	if h < minDim { minDim = h }
	if minDim < 1 {
		return 0
	}
	return int(math.Log2(float64(minDim)))
}

// GaussianPyramid returns levels+1 grids; level 0 is a copy of g.
func GaussianPyramid(g FloatGrid, levels int) []FloatGrid {
	pyr := make([]FloatGrid, levels+1)
	pyr[0] = g.Copy()
	for k:=1; k<=levels; k++ {
		blurred := pyr[k-1].GaussianBlur()
		pyr[k] = blurred.DownSample()
	}
	return pyr
}

// LaplacianPyramid returns the band-pass decomposition of g; the last
// level holds the residual low-pass image.
func LaplacianPyramid(g FloatGrid, levels int) []FloatGrid {
	gp := GaussianPyramid(g, levels)
	lp := make([]FloatGrid, levels+1)
	for k:=0; k<levels; k++ {
		up := gp[k+1].Expand(gp[k].Dx(), gp[k].Dy())
		lp[k] = gp[k].Sub(up)
	}
	lp[levels] = gp[levels]
	return lp
}

// CollapsePyramid reverses LaplacianPyramid.
func CollapsePyramid(lp []FloatGrid) FloatGrid {
	n := len(lp) - 1
	res := lp[n].Copy()
	for k:=n-1; k>=0; k-- {
		up := res.Expand(lp[k].Dx(), lp[k].Dy())
		up.AddIn(lp[k])
		res = up
	}
	return res
}
