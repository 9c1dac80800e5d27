package fusion

import(
	"fmt"
	"image"
	"path/filepath"

	"github.com/abworrall/hdr-bracket/pkg/framestore"
)

// Process runs every fusion step over the loaded layers, writing the
// outputs into dir. It returns the paths it wrote, in order.
func (s *Stack)Process(dir string) ([]string, error) {
	written := []string{}

	if s.Config.Align {
		if err := s.Align(); err != nil {
			return written, err
		}
	}
	if err := s.Prepare(); err != nil {
		return written, err
	}

	if err := s.Calibrate(); err != nil {
		return written, err
	}
	if err := s.Merge(); err != nil {
		return written, err
	}

	hdrFile := filepath.Join(dir, framestore.OutputHDR)
	if err := s.WriteHDR(hdrFile); err != nil {
		return written, err
	}
	written = append(written, hdrFile)

	var ldr image.Image
	var err error
	if s.Tonemapper == "all" {
		if err := s.TonemapAll(dir); err != nil {
			return written, err
		}
		ldr, err = s.TonemapWith("gamma")
	} else {
		ldr, err = s.Tonemap()
	}
	if err != nil {
		return written, err
	}
	ldrFile := filepath.Join(dir, framestore.OutputLDR)
	if err := WriteJPEG(ldr, ldrFile); err != nil {
		return written, err
	}
	written = append(written, ldrFile)

	fused, err := s.Fuse()
	if err != nil {
		return written, err
	}
	fusionFile := filepath.Join(dir, framestore.OutputFusion)
	if err := WriteJPEG(fused, fusionFile); err != nil {
		return written, err
	}
	written = append(written, fusionFile)

	if s.Config.PlotResponse {
		respFile := filepath.Join(dir, framestore.OutputResponse)
		if err := s.PlotResponse(respFile); err != nil {
			return written, fmt.Errorf("plot: %w", err)
		}
		written = append(written, respFile)
	}

	return written, nil
}
