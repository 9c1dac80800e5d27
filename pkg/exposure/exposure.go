// Package exposure maps a normalized bracket position onto an exposure
// time, in microseconds.
package exposure

import(
	"fmt"
	"math"
)

// Bounds is a closed range of exposure times, in microseconds.
type Bounds struct {
	Min float64 `yaml:"exp_min" koanf:"exp_min"`
	Max float64 `yaml:"exp_max" koanf:"exp_max"`
}

func (b Bounds)String() string { return fmt.Sprintf("[%.0f,%.0f]us", b.Min, b.Max) }

func (b Bounds)Valid() bool {
	return b.Min > 0 && b.Max >= b.Min && !math.IsInf(b.Max, 0) && !math.IsNaN(b.Min) && !math.IsNaN(b.Max)
}

// Intersect narrows the user's bounds to what the hardware supports.
func Intersect(hw, user Bounds) (Bounds, error) {
	b := Bounds{
		Min: math.Max(hw.Min, user.Min),
		Max: math.Min(hw.Max, user.Max),
	}
	if !b.Valid() {
		return b, fmt.Errorf("exposure range %s does not overlap hardware range %s", user, hw)
	}
	return b, nil
}

// LogMap places x on a geometric scale between the bounds, so equal
// steps in x are equal steps in EV.
func LogMap(x float64, b Bounds) float64 {
	if x == 1 {
		return b.Max
	}
	return b.Min * math.Pow(b.Max/b.Min, x)
}

// Resolve turns x into an exposure time. Values up to 1 are positions
// within the bounds; larger values are taken as absolute microseconds.
func Resolve(x float64, b Bounds) int {
	if x <= 1 {
		return int(LogMap(x, b))
	}
	return int(x)
}

// Clamp keeps v at or below the hardware maximum.
func Clamp(v int, hwMax float64) int {
	if float64(v) > hwMax {
		return int(hwMax)
	}
	return v
}

// Position is the normalized bracket position of frame i, of n.
func Position(i, n int) float64 {
	return float64(i+1) / float64(n)
}

// Schedule lists the exposure times for an n frame bracket, shortest first.
func Schedule(n int, b Bounds) []int {
	ret := []int{}
	for i:=0; i<n; i++ {
		ret = append(ret, Clamp(Resolve(Position(i, n), b), b.Max))
	}
	return ret
}

// EV is the exposure value difference between two times.
func EV(shortUs, longUs float64) float64 {
	return math.Log2(longUs / shortUs)
}
