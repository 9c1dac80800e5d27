package fusion

import(
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/abworrall/hdr-bracket/pkg/camera/sim"
	"github.com/abworrall/hdr-bracket/pkg/emath"
	"github.com/abworrall/hdr-bracket/pkg/framestore"
)

// renderFrame exposes the simulated scene for `us` microseconds.
func renderFrame(w, h int, us float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			v := sim.Response(sim.Radiance(x, y, w, h) * us / 1e6 * 100)
			img.Pix[y*img.Stride + x] = uint8(math.Round(v * 255))
		}
	}
	return img
}

func writeBracket(t *testing.T, dir string, w, h int, exposures []int) {
	t.Helper()
	store, err := framestore.New(dir, "png")
	if err != nil {
		t.Fatal(err)
	}
	for _, us := range exposures {
		if _, err := store.Save(framestore.Frame{Image: renderFrame(w, h, float64(us)), ExposureUs: us}); err != nil {
			t.Fatal(err)
		}
	}
}

var testExposures = []int{50, 300, 2000, 12000, 65000}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	writeBracket(t, dir, 64, 48, testExposures)

	s := NewStack()
	s.Config.PlotResponse = true
	if err := s.LoadFilesAndDirs(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s.Layers) != len(testExposures) {
		t.Fatalf("loaded %d layers", len(s.Layers))
	}

	written, err := s.Process(dir)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	for _, name := range []string{framestore.OutputHDR, framestore.OutputLDR, framestore.OutputFusion, framestore.OutputResponse} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if len(written) != 4 {
		t.Errorf("written: %v", written)
	}

	if s.NChan != 1 {
		t.Errorf("gray frames gave %d channels", s.NChan)
	}

	// The response should rise with pixel value
	c := s.Response.Curves[0]
	if !(c[20] < c[128] && c[128] < c[235]) {
		t.Errorf("response not increasing: E(20)=%g E(128)=%g E(235)=%g", c[20], c[128], c[235])
	}

	// The scene gets brighter left to right; so should the radiance
	rad := s.Radiance.Channels[0]
	if !(rad.Get(5, 20) < rad.Get(32, 20) && rad.Get(32, 20) < rad.Get(58, 20)) {
		t.Errorf("radiance not increasing: %g, %g, %g", rad.Get(5, 20), rad.Get(32, 20), rad.Get(58, 20))
	}

	ldr, err := s.TonemapWith("gamma")
	if err != nil {
		t.Fatal(err)
	}
	lo, hi := uint8(255), uint8(0)
	for _, v := range ldr.(*image.Gray).Pix {
		if v < lo { lo = v }
		if v > hi { hi = v }
	}
	if lo != 0 || hi < 254 {
		t.Errorf("gamma tonemap spans [%d,%d], expected to reach both ends", lo, hi)
	}

	// Loading the directory again must skip the outputs
	s2 := NewStack()
	if err := s2.LoadFilesAndDirs(dir); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(s2.Layers) != len(testExposures) {
		t.Errorf("reload picked up %d layers", len(s2.Layers))
	}
}

func TestProcessTwice(t *testing.T) {
	dir := t.TempDir()
	writeBracket(t, dir, 32, 24, testExposures[:3])

	for run:=0; run<2; run++ {
		s := NewStack()
		s.Config.Tonemapper = "all"
		s.Config.DumpWeights = true
		if err := s.LoadFilesAndDirs(dir); err != nil {
			t.Fatalf("run %d: load: %v", run, err)
		}
		if len(s.Layers) != 3 {
			t.Errorf("run %d: loaded %d layers", run, len(s.Layers))
		}
		if _, err := s.Process(dir); err != nil {
			t.Fatalf("run %d: process: %v", run, err)
		}
	}

	for _, name := range []string{"tmo-drago03.jpg", "weights-00.png", "weights-02.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestLayersSortedByExposure(t *testing.T) {
	dir := t.TempDir()
	writeBracket(t, dir, 16, 12, []int{2000, 50, 65000, 300})

	s := NewStack()
	if err := s.LoadFilesAndDirs(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	for i:=1; i<len(s.Layers); i++ {
		if s.Layers[i-1].ExposureUs >= s.Layers[i].ExposureUs {
			t.Errorf("layers out of order: %s", s)
		}
	}
}

func TestBadFilename(t *testing.T) {
	dir := t.TempDir()
	writeBracket(t, dir, 16, 12, []int{100, 1000})
	if err := WritePNG(renderFrame(16, 12, 100), filepath.Join(dir, "holiday.png")); err != nil {
		t.Fatal(err)
	}

	s := NewStack()
	err := s.LoadFilesAndDirs(dir)
	var nameErr *framestore.NameError
	if !errors.As(err, &nameErr) {
		t.Errorf("expected NameError, got %v", err)
	}
}

func TestTooFewLayers(t *testing.T) {
	dir := t.TempDir()
	writeBracket(t, dir, 16, 12, []int{100})

	s := NewStack()
	if err := s.LoadFilesAndDirs(dir); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := s.Process(dir); !errors.Is(err, ErrTooFewLayers) {
		t.Errorf("expected ErrTooFewLayers, got %v", err)
	}
}

func TestSamplePoints(t *testing.T) {
	pts, err := SamplePoints(640, 480, 70, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	// x_points = int(sqrt(70*640/480)) = 9, y_points = 70/9 = 7
	if len(pts) != 63 {
		t.Errorf("got %d points", len(pts))
	}
	if pts[0] != (image.Point{35, 34}) {
		t.Errorf("first point %v", pts[0])
	}

	if _, err := SamplePoints(1, 1, 70, false, 0); err == nil {
		t.Errorf("expected error for tiny image")
	}
}

func TestTriangleWeight(t *testing.T) {
	for z, exp := range map[int]float64{0: 1, 127: 128, 128: 128, 255: 1} {
		if got := TriangleWeight(z); got != exp {
			t.Errorf("TriangleWeight(%d) = %f, expected %f", z, got, exp)
		}
	}
}

func texture(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			v := 128 + 100*math.Sin(float64(x)/9.0)*math.Cos(float64(y)/7.0)
			img.Pix[y*img.Stride + x] = uint8(emath.ClampInt(int(v), 0, 255))
		}
	}
	return img
}

func TestCalculateShift(t *testing.T) {
	ref := texture(128, 96)
	moved := ShiftImage(ref, image.Point{3, -2})

	got := CalculateShift(splitGray(ref), splitGray(moved), 3, 4)
	if got != (image.Point{-3, 2}) {
		t.Errorf("got shift %v, expected (-3,2)", got)
	}
}

func TestFuserLookup(t *testing.T) {
	cfg := NewConfig()
	if _, err := cfg.GetFuser(); err != nil {
		t.Errorf("default fuser: %v", err)
	}
	cfg.Fuser = "nope"
	if _, err := cfg.GetFuser(); err == nil {
		t.Errorf("expected error for unknown fuser")
	}
}

func TestMertensFlatStack(t *testing.T) {
	// Identical frames should fuse back to (nearly) the same image
	img := texture(40, 30)
	s := NewStack()
	s.AddLayer(Layer{LoadFilename: "a", LoadedImage: img, Image: img, ExposureUs: 10})
	s.AddLayer(Layer{LoadFilename: "b", LoadedImage: img, Image: img, ExposureUs: 20})
	if err := s.Prepare(); err != nil {
		t.Fatal(err)
	}

	out, err := FuseMertens(&s)
	if err != nil {
		t.Fatal(err)
	}
	g := out.(*image.Gray)
	for _, pt := range []image.Point{{0, 0}, {20, 15}, {39, 29}} {
		if d := int(g.GrayAt(pt.X, pt.Y).Y) - int(img.GrayAt(pt.X, pt.Y).Y); d < -1 || d > 1 {
			t.Errorf("pixel %v: got %d, expected %d", pt, g.GrayAt(pt.X, pt.Y).Y, img.GrayAt(pt.X, pt.Y).Y)
		}
	}
}

func TestPixelFusers(t *testing.T) {
	dir := t.TempDir()
	writeBracket(t, dir, 48, 36, testExposures)

	for _, name := range []string{"mostexposed", "sector"} {
		s := NewStack()
		if err := s.LoadFilesAndDirs(dir); err != nil {
			t.Fatal(err)
		}
		s.Fuser = name
		if err := s.Prepare(); err != nil {
			t.Fatal(err)
		}
		img, err := s.Fuse()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if img.Bounds().Size() != (image.Point{48, 36}) {
			t.Errorf("%s: output is %v", name, img.Bounds())
		}
	}
}

func TestPickMostExposed(t *testing.T) {
	s := NewStack()
	dark := texture(8, 8)
	bright := image.NewGray(dark.Bounds())
	for i := range bright.Pix {
		bright.Pix[i] = 250
	}
	bright.Pix[0] = 100
	s.AddLayer(Layer{LoadFilename: "a", LoadedImage: dark, Image: dark, ExposureUs: 10})
	s.AddLayer(Layer{LoadFilename: "b", LoadedImage: bright, Image: bright, ExposureUs: 1000})
	if err := s.Prepare(); err != nil {
		t.Fatal(err)
	}

	// Without a response curve, values are taken as linear
	rad := s.pickByLayer(func(s *Stack, x, y int) int {
		if s.Layers[1].luma(x, y) <= s.FuserLuminance { return 1 }
		return 0
	})
	if got, exp := rad.Channels[0].Get(0, 0), 100.5/256/0.001; math.Abs(got - exp) > 1e-9 {
		t.Errorf("pixel (0,0): got %g, expected %g from the long exposure", got, exp)
	}
	z := float64(dark.Pix[1])
	if got, exp := rad.Channels[0].Get(1, 0), (z+0.5)/256/0.00001; math.Abs(got - exp) > 1e-6 {
		t.Errorf("pixel (1,0): got %g, expected %g from the short exposure", got, exp)
	}
}
