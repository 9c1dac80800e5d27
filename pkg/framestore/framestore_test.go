package framestore

import(
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abworrall/hdr-bracket/pkg/camera"
	"github.com/abworrall/hdr-bracket/pkg/exposure"
)

func TestParseName(t *testing.T) {
	tests := []struct{
		Name string
		Us   int
		Ext  string
		Err  bool
	}{
		{"exp_464_us.jpg", 464, "jpg", false},
		{"/some/dir/exp_65000_us.fits", 65000, "fits", false},
		{"exp_0_us.jpg", 0, "", true},
		{"exp_12.5_us.jpg", 0, "", true},
		{"exp_abc_us.jpg", 0, "", true},
		{"photo.jpg", 0, "", true},
		{"exp_100_ms.jpg", 0, "", true},
	}

	for i, test := range tests {
		us, ext, err := ParseName(test.Name)
		if test.Err {
			var nameErr *NameError
			if !errors.As(err, &nameErr) {
				t.Errorf("[%d] %s: expected NameError, got %v", i, test.Name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("[%d] %s: unexpected error %v", i, test.Name, err)
		} else if us != test.Us || ext != test.Ext {
			t.Errorf("[%d] %s: got (%d,%s), expected (%d,%s)", i, test.Name, us, ext, test.Us, test.Ext)
		}
	}
}

func ExampleFormatName() {
	fmt.Println(FormatName(2154, "jpg"))
	// Output: exp_2154_us.jpg
}

func TestPrepare(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images", "run1")
	if err := Prepare(dir); err != nil {
		t.Fatalf("Prepare new dir: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "exp_1_us.jpg"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(dir, "keep"), 0755)

	if err := Prepare(dir); err != nil {
		t.Fatalf("Prepare existing dir: %v", err)
	}
	contents, _ := os.ReadDir(dir)
	if len(contents) != 1 || contents[0].Name() != "keep" {
		t.Errorf("dir not cleared: %v", contents)
	}
}

func testImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 256)
	}
	return img
}

func TestSaveAndLoad(t *testing.T) {
	for _, format := range Formats {
		dir := t.TempDir()
		store, err := New(dir, format)
		if err != nil {
			t.Fatalf("New(%s): %v", format, err)
		}

		img := testImage(40, 30)
		filename, err := store.Save(Frame{Image: img, ExposureUs: 2154, Gain: 1, Session: "abc"})
		if err != nil {
			t.Fatalf("%s: save: %v", format, err)
		}
		if filepath.Base(filename) != FormatName(2154, format) {
			t.Errorf("%s: wrote %s", format, filename)
		}

		loaded, err := LoadImage(filename)
		if err != nil {
			t.Fatalf("%s: load: %v", format, err)
		}
		if loaded.Bounds() != img.Bounds() {
			t.Errorf("%s: bounds %v, expected %v", format, loaded.Bounds(), img.Bounds())
		}

		us, err := LookupExposure(filename, FromFilename, nil)
		if err != nil || us != 2154 {
			t.Errorf("%s: exposure from filename: %f, %v", format, us, err)
		}

		// Lossless formats should give back exactly what went in
		if format == "png" || format == "fits" {
			for _, pt := range []image.Point{{0, 0}, {17, 3}, {39, 29}} {
				r, _, _, _ := loaded.At(pt.X, pt.Y).RGBA()
				if exp := uint32(img.GrayAt(pt.X, pt.Y).Y) * 257; r != exp {
					t.Errorf("%s: pixel %v = %d, expected %d", format, pt, r, exp)
				}
			}
		}
	}
}

func TestFITSEveryPixel(t *testing.T) {
	img := testImage(33, 17)
	filename, err := writeFrame(t, "fits", img)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadImage(filename)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g16, ok := loaded.(*image.Gray16)
	if !ok {
		t.Fatalf("loaded a %T, expected *image.Gray16", loaded)
	}
	for y:=0; y<17; y++ {
		for x:=0; x<33; x++ {
			if got, exp := g16.Gray16At(x, y).Y, uint16(img.GrayAt(x, y).Y)*257; got != exp {
				t.Fatalf("pixel (%d,%d) = %d, expected %d", x, y, got, exp)
			}
		}
	}
}

func TestFITSEmbeddedExposure(t *testing.T) {
	store, _ := New(t.TempDir(), "fits")
	filename, err := store.Save(Frame{Image: testImage(8, 8), ExposureUs: 464, Session: "s"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	us, err := LookupExposure(filename, FromEmbedded, nil)
	if err != nil {
		t.Fatalf("embedded: %v", err)
	}
	if us < 463.999 || us > 464.001 {
		t.Errorf("got %f, expected 464", us)
	}
}

func TestManifest(t *testing.T) {
	dir := t.TempDir()
	m := Manifest{
		Session: "0b7f",
		Created: time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC),
		Camera:  camera.Info{{Name: "DeviceModelName", Value: "Sim"}},
		Gain:    1,
		Bounds:  exposure.Bounds{Min: 30, Max: 65000},
	}
	m.Add(FrameRecord{Index: 1, File: "exp_2154_us.jpg", Requested: 2154, ExposureUs: 2150})
	m.Add(FrameRecord{Index: 0, File: "exp_464_us.jpg", Requested: 464, ExposureUs: 464})

	if err := m.Write(dir); err != nil {
		t.Fatalf("write: %v", err)
	}
	m2, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(m, *m2); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}

	us, err := LookupExposure(filepath.Join(dir, "exp_2154_us.jpg"), FromManifest, m2)
	if err != nil || us != 2150 {
		t.Errorf("manifest lookup: %f, %v", us, err)
	}
	if _, err := LookupExposure("other.jpg", FromManifest, m2); err == nil {
		t.Errorf("expected error for unlisted file")
	}
}

func TestIsOutput(t *testing.T) {
	for _, name := range []string{"hdr_image.hdr", "/x/y/fusion.jpg", "ldr_image.jpg", "tmo-drago03.jpg", "weights-03.png"} {
		if !IsOutput(name) {
			t.Errorf("%s should be an output", name)
		}
	}
	if IsOutput("exp_10_us.jpg") {
		t.Errorf("frame treated as output")
	}
}

func writeFrame(t *testing.T, format string, img *image.Gray) (string, error) {
	t.Helper()
	store, err := New(t.TempDir(), format)
	if err != nil {
		return "", err
	}
	return store.Save(Frame{Image: img, ExposureUs: 1000, Session: "s"})
}
