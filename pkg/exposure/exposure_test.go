package exposure

import(
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSchedule(t *testing.T) {
	tests := []struct{
		N   int
		B   Bounds
		Exp []int
	}{
		{3, Bounds{100, 10000}, []int{464, 2154, 10000}},
		{1, Bounds{30, 65000}, []int{65000}},
		{2, Bounds{1000, 1000}, []int{1000, 1000}},
	}

	for i, test := range tests {
		got := Schedule(test.N, test.B)
		if diff := cmp.Diff(test.Exp, got); diff != "" {
			t.Errorf("[%d] Schedule(%d, %s) mismatch (-want +got):\n%s", i, test.N, test.B, diff)
		}
	}
}

func TestLogMapProperties(t *testing.T) {
	b := Bounds{30, 65000}

	prev := 0.0
	for _, x := range []float64{0.001, 0.1, 0.25, 0.5, 0.75, 0.999, 1.0} {
		v := LogMap(x, b)
		if v < b.Min || v > b.Max+1e-9 {
			t.Errorf("LogMap(%f) = %f, outside %s", x, v, b)
		}
		if v <= prev {
			t.Errorf("LogMap(%f) = %f, not above previous %f", x, v, prev)
		}
		prev = v
	}

	if v := LogMap(1.0, b); math.Abs(v - b.Max) > 1e-9 {
		t.Errorf("LogMap(1) = %f, expected %f", v, b.Max)
	}
	if v := LogMap(1e-12, b); math.Abs(v - b.Min) > 1e-6 {
		t.Errorf("LogMap(~0) = %f, expected ~%f", v, b.Min)
	}
}

func TestResolveAbsolute(t *testing.T) {
	b := Bounds{30, 65000}
	if v := Resolve(5000, b); v != 5000 {
		t.Errorf("Resolve(5000) = %d, expected it to pass through", v)
	}
	if v := Clamp(Resolve(1e9, b), 30e6); v != 30000000 {
		t.Errorf("clamped absolute: got %d", v)
	}
}

func TestIntersect(t *testing.T) {
	tests := []struct{
		HW, User Bounds
		Exp      Bounds
		Err      bool
	}{
		{Bounds{6, 30e6}, Bounds{30, 65000}, Bounds{30, 65000}, false},
		{Bounds{100, 20000}, Bounds{30, 65000}, Bounds{100, 20000}, false},
		{Bounds{100, 200}, Bounds{300, 400}, Bounds{}, true},
		{Bounds{6, 30e6}, Bounds{0, 65000}, Bounds{6, 65000}, false},
	}

	for i, test := range tests {
		got, err := Intersect(test.HW, test.User)
		if test.Err {
			if err == nil {
				t.Errorf("[%d] expected error, got %s", i, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("[%d] unexpected error: %v", i, err)
		} else if got != test.Exp {
			t.Errorf("[%d] got %s, expected %s", i, got, test.Exp)
		}
	}
}

func ExampleSchedule() {
	fmt.Println(Schedule(3, Bounds{Min: 100, Max: 10000}))
	// Output: [464 2154 10000]
}
