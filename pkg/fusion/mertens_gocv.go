//go:build gocv

package fusion

import(
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func init() {
	RegisterFuser("opencv", FuseMertensOpenCV)
}

// FuseMertensOpenCV hands the aligned layers to OpenCV's MergeMertens.
func FuseMertensOpenCV(s *Stack) (image.Image, error) {
	mats := []gocv.Mat{}
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()

	for _, l := range s.Layers {
		m, err := gocv.ImageToMatRGB(l.Image)
		if err != nil {
			return nil, fmt.Errorf("%s to Mat: %w", l.Filename(), err)
		}
		mats = append(mats, m)
	}

	merge := gocv.NewMergeMertensWithParams(float32(s.ContrastWeight), float32(s.SaturationWeight), float32(s.ExposureWeight))
	defer merge.Close()

	fused := gocv.NewMat()
	defer fused.Close()
	merge.Process(mats, &fused)

	// Result is float in [0,1]
	out := gocv.NewMat()
	defer out.Close()
	fused.ConvertToWithParams(&out, gocv.MatTypeCV8UC3, 255.0, 0.0)

	img, err := out.ToImage()
	if err != nil {
		return nil, fmt.Errorf("fused Mat to image: %w", err)
	}
	if s.Area.Size() != img.Bounds().Size() {
		return nil, fmt.Errorf("opencv fused %v, expected %v", img.Bounds().Size(), s.Area.Size())
	}
	return img, nil
}
