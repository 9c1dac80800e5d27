package framestore

import(
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"
)

// Where to find a frame's exposure time
const(
	FromFilename = "filename"
	FromManifest = "manifest"
	FromEmbedded = "embedded"
)

var ExposureSources = []string{FromFilename, FromManifest, FromEmbedded}

// IsImage reports whether we know how to decode the file, going by its extension.
func IsImage(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".fits", ".fit":
		return true
	}
	return false
}

// LoadImage decodes an image file, picking the decoder by extension.
func LoadImage(filename string) (image.Image, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r img '%s': %w", filename, err)
	}
	defer reader.Close()

	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".jpg", ".jpeg": img, err = jpeg.Decode(reader)
	case ".png":          img, err = png.Decode(reader)
	case ".tif", ".tiff": img, err = tiff.Decode(reader)
	case ".fits", ".fit": img, _, err = readFITS(reader)
	default:
		return nil, fmt.Errorf("'%s': unsupported image type '%s'", filename, ext)
	}

	if err != nil {
		return nil, fmt.Errorf("decode '%s': %w", filename, err)
	}
	return img, nil
}

// readFITS loads the primary HDU written by WriteFITS, undoing the BZERO
// offset and the 8->16 bit scaling. It also returns the header.
func readFITS(r *os.File) (image.Image, *fitsio.Header, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, nil, errors.New("primary HDU is not an image")
	}
	hdr := hdu.Header()
	axes := hdr.Axes()
	if len(axes) != 2 || hdr.Bitpix() != 16 {
		return nil, hdr, fmt.Errorf("want 2D 16-bit image, have axes=%v bitpix=%d", axes, hdr.Bitpix())
	}
	width, height := axes[0], axes[1]

	raw := make([]int16, width*height)
	if err := hdu.Read(&raw); err != nil {
		return nil, hdr, err
	}
	if len(raw) != width*height {
		return nil, hdr, fmt.Errorf("read %d pixels, expected %d", len(raw), width*height)
	}

	bzero := 0.0
	if card := hdr.Get("BZERO"); card != nil {
		if bzero, err = cardFloat(card.Value); err != nil {
			return nil, hdr, fmt.Errorf("BZERO: %w", err)
		}
	}

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for i, v := range raw {
		u := uint16(float64(v) + bzero)
		img.Pix[2*i]   = uint8(u >> 8)
		img.Pix[2*i+1] = uint8(u)
	}
	return img, hdr, nil
}

func cardFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64: return n, nil
	case float32: return float64(n), nil
	case int:     return float64(n), nil
	case int64:   return float64(n), nil
	case int32:   return float64(n), nil
	}
	return 0, fmt.Errorf("card value %v (%T) is not a number", v, v)
}

// LookupExposure finds the exposure time in microseconds of the frame in
// `filename`, using the named source. `m` is only needed for FromManifest.
func LookupExposure(filename, source string, m *Manifest) (float64, error) {
	switch source {
	case FromFilename, "":
		us, _, err := ParseName(filename)
		return float64(us), err

	case FromManifest:
		if m == nil {
			return 0, fmt.Errorf("'%s': no %s to look up exposure in", filename, ManifestName)
		}
		if us, exists := m.Exposure(filename); exists {
			return float64(us), nil
		}
		return 0, fmt.Errorf("'%s': not listed in %s", filename, ManifestName)

	case FromEmbedded:
		return embeddedExposure(filename)
	}

	return 0, fmt.Errorf("exposure source '%s' not known (have %v)", source, ExposureSources)
}

func embeddedExposure(filename string) (float64, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return 0, fmt.Errorf("open+r exif '%s': %w", filename, err)
	}
	defer reader.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".fits", ".fit":
		_, hdr, err := readFITS(reader)
		if err != nil {
			return 0, fmt.Errorf("fits '%s': %w", filename, err)
		}
		card := hdr.Get("EXPTIME")
		if card == nil {
			return 0, fmt.Errorf("fits '%s': no EXPTIME card", filename)
		}
		secs, err := cardFloat(card.Value)
		if err != nil {
			return 0, fmt.Errorf("fits '%s' EXPTIME: %w", filename, err)
		}
		return secs * 1e6, nil
	}

	ex, err := exif.Decode(reader)
	if err != nil {
		return 0, fmt.Errorf("exif parsing '%s': %w", filename, err)
	}
	tag, err := ex.Get(exif.ExposureTime)
	if err != nil {
		return 0, fmt.Errorf("exif ExposureTime '%s': %w", filename, err)
	}
	num, denom, err := tag.Rat2(0)
	if err != nil {
		return 0, fmt.Errorf("exif ExposureTime '%s': %w", filename, err)
	} else if denom == 0 || num <= 0 {
		return 0, fmt.Errorf("exif ExposureTime '%s': bad value %d/%d", filename, num, denom)
	}
	return float64(num) / float64(denom) * 1e6, nil
}
