package framestore

import(
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/hdr-bracket/pkg/camera"
	"github.com/abworrall/hdr-bracket/pkg/exposure"
)

// Stats summarises the pixel values of one frame.
type Stats struct {
	Min     int64   `yaml:"min"`
	Median  int64   `yaml:"median"`
	P99     int64   `yaml:"p99"`
	Max     int64   `yaml:"max"`
	Clipped float64 `yaml:"clipped"` // fraction of pixels at 255
}

type FrameRecord struct {
	Index      int     `yaml:"index"`
	File       string  `yaml:"file"`
	Requested  int     `yaml:"requested_us"`
	ExposureUs int     `yaml:"exposure_us"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Stats      Stats   `yaml:"stats"`
}

// Manifest is the sidecar record of a capture session, written as session.yaml.
type Manifest struct {
	Session  string          `yaml:"session"`
	Created  time.Time       `yaml:"created"`
	Camera   camera.Info     `yaml:"camera"`
	Gain     float64         `yaml:"gain"`
	Bounds   exposure.Bounds `yaml:"bounds"`
	Frames   []FrameRecord   `yaml:"frames"`
}

func (m Manifest)AsYaml() string {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Sprintf("manifest yaml: %v", err)
	}
	return string(b)
}

// Exposure looks up the exposure time of a frame by file basename.
func (m *Manifest)Exposure(filename string) (int, bool) {
	base := filepath.Base(filename)
	for _, f := range m.Frames {
		if f.File == base {
			return f.ExposureUs, true
		}
	}
	return 0, false
}

func (m *Manifest)Add(f FrameRecord) {
	m.Frames = append(m.Frames, f)
	sort.Slice(m.Frames, func(i, j int) bool { return m.Frames[i].Index < m.Frames[j].Index })
}

func (m Manifest)Write(dir string) error {
	filename := filepath.Join(dir, ManifestName)
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest marshal: %w", err)
	}
	if err := os.WriteFile(filename, b, 0644); err != nil {
		return fmt.Errorf("open+w '%s': %w", filename, err)
	}
	return nil
}

// ReadManifest loads dir/session.yaml; a missing file is reported as os.ErrNotExist.
func ReadManifest(dir string) (*Manifest, error) {
	filename := filepath.Join(dir, ManifestName)
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("manifest read '%s': %w", filename, err)
	}
	m := Manifest{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("manifest parse '%s': %w", filename, err)
	}
	return &m, nil
}
