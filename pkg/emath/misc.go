package emath

import "math"

// Some functions that only operate on basic types, that are useful

func ClampInt(v, min, max int) int {
	if v < min { return min }
	if v > max { return max }
	return v
}

func MaxInt(a, b int) int {
	if a > b { return a }
	return b
}

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
func GammaExpand_F64(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055 * math.Pow(f, 1.0/2.4) - 0.055
}
