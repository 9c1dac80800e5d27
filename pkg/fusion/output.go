package fusion

// A few helper routines for golang's image libraries

import(
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
)

// JPEGQuality matches what most imaging libraries default to
const JPEGQuality = 95

func WritePNG(img image.Image, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %w", filename, err)
	} else {
		defer writer.Close()
		return png.Encode(writer, img)
	}
}

func WriteJPEG(img image.Image, filename string) error {
	if writer, err := os.Create(filename); err != nil {
		return fmt.Errorf("open+w '%s': %w", filename, err)
	} else {
		defer writer.Close()
		return jpeg.Encode(writer, img, &jpeg.Options{Quality: JPEGQuality})
	}
}
