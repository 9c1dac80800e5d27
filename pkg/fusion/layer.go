package fusion

import(
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/abworrall/hdr-bracket/pkg/emath"
)

// A Layer is one bracketed frame, with the exposure time it was taken at.
type Layer struct {
	LoadFilename   string
	LoadedImage    image.Image  // As decoded from the file
	ExposureUs     float64

	Shift          image.Point  // Applied to LoadedImage to line it up with the reference frame

	// _This_ image is aligned (and cropped) across layers, so a pixel
	// at [x,y] is the same bit of the scene in every layer
	image.Image

	// The aligned image as one grid per channel, values in [0,255]
	Channels       []emath.FloatGrid
}

func (l Layer)String() string {
	return fmt.Sprintf("%s: %8.0fus (%7.4fs), shift%v", l.Filename(), l.ExposureUs, l.Seconds(), l.Shift)
}

func (l Layer)Filename() string {
	return filepath.Base(l.LoadFilename)
}

func (l Layer)Seconds() float64 {
	return l.ExposureUs / 1e6
}

// IsGray reports whether the image carries a single channel.
func IsGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return img.ColorModel() == color.GrayModel || img.ColorModel() == color.Gray16Model
}

// splitChannels reads the image within `r` into nChan grids of 8-bit values.
// A gray image read as 3 channels gets replicated.
func splitChannels(img image.Image, r image.Rectangle, nChan int) []emath.FloatGrid {
	grids := make([]emath.FloatGrid, nChan)
	for c:=0; c<nChan; c++ {
		grids[c] = emath.NewFloatGrid(r.Dx(), r.Dy())
	}

	for y:=0; y<r.Dy(); y++ {
		for x:=0; x<r.Dx(); x++ {
			red, green, blue, _ := img.At(r.Min.X+x, r.Min.Y+y).RGBA()
			if nChan == 1 {
				grids[0].Set(x, y, float64(red >> 8))
			} else {
				grids[0].Set(x, y, float64(red >> 8))
				grids[1].Set(x, y, float64(green >> 8))
				grids[2].Set(x, y, float64(blue >> 8))
			}
		}
	}
	return grids
}

// Z returns the 8-bit pixel value of channel c at (x,y).
func (l *Layer)Z(c, x, y int) int {
	return int(l.Channels[c].Get(x, y))
}
