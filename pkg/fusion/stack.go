// Package fusion turns a bracket of differently exposed frames into HDR
// and LDR outputs: a Debevec radiance map, a tonemapped version of it, and
// a Mertens exposure fusion.
package fusion

import(
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abworrall/hdr-bracket/pkg/framestore"
)

// Stack holds the layers, and everything derived from them.
type Stack struct {
	Layers     []Layer // Ordered, ascending exposure time
	Config

	Area       image.Rectangle // The aligned, cropped area common to all layers; output coords start at 0,0
	NChan      int

	Response   *Response
	Radiance   *Radiance

	// OnStage is called as each stage starts, for progress reporting
	OnStage    func(stage string)

	manifests  map[string]*framestore.Manifest
}

func NewStack() Stack {
	return Stack{
		Layers:    []Layer{},
		Config:    NewConfig(),
		manifests: map[string]*framestore.Manifest{},
	}
}

func (s Stack)String() string {
	str := fmt.Sprintf("Stack %s, %d channel(s) [\n", s.Area, s.NChan)
	for _, l := range s.Layers {
		str += fmt.Sprintf("  %s\n", l)
	}
	return str + "]\n"
}

func (s *Stack)stage(name string) {
	log.Printf("%s\n", name)
	if s.OnStage != nil {
		s.OnStage(name)
	}
}

func (s *Stack)AddLayer(l Layer) {
	s.Layers = append(s.Layers, l)
	sort.SliceStable(s.Layers, func(i, j int) bool { return s.Layers[i].ExposureUs < s.Layers[j].ExposureUs })
}

func (s *Stack)LoadFilesAndDirs(args ...string) error {
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {

		case err != nil:
			return fmt.Errorf("load %s: %w", arg, err)

		case item.IsDir():
			// Is a dir, recurse into contents
			contents, err := os.ReadDir(arg)
			if err != nil {
				return fmt.Errorf("readdir %s: %w", arg, err)
			}
			for _, content := range contents {
				if err := s.LoadFilesAndDirs(filepath.Join(arg, content.Name())); err != nil {
					return err
				}
			}

		default: // is a file, load it
			if err := s.loadFile(arg); err != nil {
				return fmt.Errorf("loadfile %s: %w", arg, err)
			}
		}
	}

	return nil
}

func (s *Stack)loadFile(filename string) error {
	base := filepath.Base(filename)

	switch {
	case base == framestore.ManifestName, framestore.IsOutput(base):
		return nil

	case strings.ToLower(filepath.Ext(base)) == ".yaml":
		contents, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("config read %s: %w", filename, err)
		}
		cfg, err := newConfigFromYaml(contents)
		if err != nil {
			return fmt.Errorf("Loading %s as config YAML failed: %w", filename, err)
		}
		s.Config = cfg
		log.Printf("Loaded base configuration from %s\n", filename)
		return nil

	case !framestore.IsImage(base):
		return nil
	}

	us, err := s.lookupExposure(filename)
	if err != nil {
		return err
	}

	img, err := framestore.LoadImage(filename)
	if err != nil {
		return err
	}

	s.AddLayer(Layer{LoadFilename: filename, LoadedImage: img, Image: img, ExposureUs: us})
	return nil
}

func (s *Stack)lookupExposure(filename string) (float64, error) {
	var m *framestore.Manifest
	if s.ExposureSource == framestore.FromManifest {
		dir := filepath.Dir(filename)
		if _, seen := s.manifests[dir]; !seen {
			var err error
			if s.manifests[dir], err = framestore.ReadManifest(dir); err != nil {
				return 0, err
			}
		}
		m = s.manifests[dir]
	}
	return framestore.LookupExposure(filename, s.ExposureSource, m)
}

var ErrTooFewLayers = errors.New("need at least two frames")

// Prepare checks the layers are consistent, and splits them into channels.
// It must be called after Align, before any of the fusion steps.
func (s *Stack)Prepare() error {
	if len(s.Layers) < 2 {
		return fmt.Errorf("%w, have %d", ErrTooFewLayers, len(s.Layers))
	}

	size := s.Layers[0].LoadedImage.Bounds().Size()
	s.NChan = 1
	for _, l := range s.Layers {
		if l.LoadedImage.Bounds().Size() != size {
			return fmt.Errorf("%s is %v, but %s is %v", l.Filename(), l.LoadedImage.Bounds().Size(), s.Layers[0].Filename(), size)
		}
		if l.ExposureUs <= 0 {
			return fmt.Errorf("%s: bad exposure time %f", l.Filename(), l.ExposureUs)
		}
		if !IsGray(l.LoadedImage) {
			s.NChan = 3
		}
	}

	if s.Area.Empty() {
		s.Area = s.Layers[0].Image.Bounds()
	}
	for i := range s.Layers {
		s.Layers[i].Channels = splitChannels(s.Layers[i].Image, s.Area, s.NChan)
	}
	s.Area = image.Rectangle{Max: s.Area.Size()}

	if s.Verbosity > 0 {
		log.Printf("Layers loaded: %s", s)
	}
	return nil
}

func (s *Stack)Dx() int { return s.Area.Dx() }
func (s *Stack)Dy() int { return s.Area.Dy() }

func (s *Stack)LogTimes() []float64 {
	ret := []float64{}
	for _, l := range s.Layers {
		ret = append(ret, logf(l.Seconds()))
	}
	return ret
}
