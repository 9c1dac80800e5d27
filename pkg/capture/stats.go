package capture

import(
	"image"

	"github.com/codahale/hdrhistogram"

	"github.com/abworrall/hdr-bracket/pkg/framestore"
)

// FrameStats builds a histogram of the frame's pixel values, to spot
// frames that are mostly black or mostly clipped.
func FrameStats(img *image.Gray) framestore.Stats {
	h := hdrhistogram.New(0, 255, 3)
	clipped := 0
	b := img.Bounds()
	for y:=b.Min.Y; y<b.Max.Y; y++ {
		for x:=b.Min.X; x<b.Max.X; x++ {
			v := img.GrayAt(x, y).Y
			h.RecordValue(int64(v))
			if v == 255 {
				clipped++
			}
		}
	}

	if h.TotalCount() == 0 {
		return framestore.Stats{}
	}
	return framestore.Stats{
		Min:     h.Min(),
		Median:  h.ValueAtQuantile(50),
		P99:     h.ValueAtQuantile(99),
		Max:     h.Max(),
		Clipped: float64(clipped) / float64(h.TotalCount()),
	}
}
