// Package framestore persists captured frames, and loads them back along
// with their exposure times.
package framestore

import(
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"
)

var Formats = []string{"jpg", "png", "fits"}

// JPEGQuality matches what most imaging libraries default to
const JPEGQuality = 95

// Prepare creates dir if needed, and removes any files already in it. Subdirectories are left alone.
func Prepare(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir '%s': %w", dir, err)
	}

	contents, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("readdir '%s': %w", dir, err)
	}
	for _, content := range contents {
		if content.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, content.Name())); err != nil {
			return fmt.Errorf("remove '%s': %w", content.Name(), err)
		}
	}
	return nil
}

// Frame is what gets written for one capture.
type Frame struct {
	Image      *image.Gray
	ExposureUs int
	Gain       float64
	Session    string
}

// Store writes frames into one directory, in one format.
type Store struct {
	Dir    string
	Format string
}

func New(dir, format string) (*Store, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "jpeg" {
		format = "jpg"
	}
	for _, f := range Formats {
		if f == format {
			return &Store{Dir: dir, Format: format}, nil
		}
	}
	return nil, fmt.Errorf("frame format '%s' not supported (have %v)", format, Formats)
}

// Save writes the frame, named for its exposure time, and returns the full path.
func (s *Store)Save(f Frame) (string, error) {
	filename := filepath.Join(s.Dir, FormatName(f.ExposureUs, s.Format))

	writer, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("open+w '%s': %w", filename, err)
	}

	switch s.Format {
	case "jpg":  err = jpeg.Encode(writer, f.Image, &jpeg.Options{Quality: JPEGQuality})
	case "png":  err = png.Encode(writer, f.Image)
	case "fits": err = WriteFITS(writer, f)
	}

	if closeErr := writer.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("write '%s': %w", filename, err)
	}
	return filename, nil
}

// WriteFITS streams a 16-bit FITS image. The 8-bit pixels are scaled up to
// the full 16-bit range, and stored signed with a BZERO offset.
func WriteFITS(w io.Writer, f Frame) error {
	b := f.Image.Bounds()
	width, height := b.Dx(), b.Dy()

	cards := []fitsio.Card{
		{Name: "BZERO", Value: 32768},
		{Name: "BSCALE", Value: 1.0},
		{Name: "EXPTIME", Value: float64(f.ExposureUs) / 1e6, Comment: "exposure time, seconds"},
		{Name: "EXPUS", Value: f.ExposureUs, Comment: "exposure time, microseconds"},
		{Name: "GAIN", Value: f.Gain, Comment: "sensor gain, dB"},
		{Name: "SESSION", Value: f.Session, Comment: "capture session id"},
	}

	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()

	im := fitsio.NewImage(16, []int{width, height})
	defer im.Close()
	if err := im.Header().Append(cards...); err != nil {
		return err
	}

	ints := make([]int16, width*height)
	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			v := uint16(f.Image.GrayAt(b.Min.X+x, b.Min.Y+y).Y) * 257
			ints[y*width + x] = int16(v - 32768)
		}
	}
	if err := im.Write(ints); err != nil {
		return err
	}
	return fits.Write(im)
}
