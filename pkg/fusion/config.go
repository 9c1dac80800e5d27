package fusion

import(
	"fmt"
	"image"
	"log"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/hdr-bracket/pkg/framestore"
)

type Config struct {
	Verbosity        int     `yaml:"verbosity" koanf:"verbosity"`

	ExposureSource   string  `yaml:"exposure_source" koanf:"exposure_source"` // filename, manifest, embedded

	Align            bool    `yaml:"align" koanf:"align"`
	AlignBits        int     `yaml:"align_bits" koanf:"align_bits"`       // pyramid depth; max shift is 2^bits pixels
	AlignExclude     int     `yaml:"align_exclude" koanf:"align_exclude"` // ignore pixels this close to the median

	Samples          int     `yaml:"samples" koanf:"samples"`             // pixels sampled for response recovery
	Lambda           float64 `yaml:"lambda" koanf:"lambda"`               // response curve smoothness
	RandomSamples    bool    `yaml:"random_samples" koanf:"random_samples"`
	Seed             int64   `yaml:"seed" koanf:"seed"`

	Tonemapper       string  `yaml:"tonemapper" koanf:"tonemapper"`
	Gamma            float64 `yaml:"gamma" koanf:"gamma"`

	Fuser            string  `yaml:"fuser" koanf:"fuser"`
	ContrastWeight   float64 `yaml:"contrast_weight" koanf:"contrast_weight"`
	SaturationWeight float64 `yaml:"saturation_weight" koanf:"saturation_weight"`
	ExposureWeight   float64 `yaml:"exposure_weight" koanf:"exposure_weight"`
	FuserLuminance   float64 `yaml:"fuser_luminance" koanf:"fuser_luminance"` // mostexposed: skip a frame if its luma is above this (0.0->1.0)

	Workers          int     `yaml:"workers" koanf:"workers"`
	PlotResponse     bool    `yaml:"plot_response" koanf:"plot_response"`
	DumpWeights      bool    `yaml:"dump_weights" koanf:"dump_weights"`   // write each frame's fusion weight map as a PNG
}

func NewConfig() Config {
	return Config{
		ExposureSource:   framestore.FromFilename,
		AlignBits:        6,
		AlignExclude:     4,
		Samples:          70,
		Lambda:           10,
		Tonemapper:       "gamma",
		Gamma:            2.0,
		Fuser:            "mertens",
		ContrastWeight:   1.0,
		SaturationWeight: 1.0,
		ExposureWeight:   0.0,
		FuserLuminance:   0.8,
		Workers:          8,
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

// A FuserFunc exposure-fuses the stack straight into an 8-bit image.
type FuserFunc func(*Stack) (image.Image, error)

var fusers = map[string]FuserFunc{
	"mertens":     FuseMertens,
	"mostexposed": FuseByPickMostExposed,
	"sector":      FuseBySector,
}

// RegisterFuser adds an alternate fusion engine, from a file built under a build tag.
func RegisterFuser(name string, f FuserFunc) {
	fusers[name] = f
}

func ListFusers() string {
	names := []string{}
	for name := range fusers {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%v", names)
}

func (c Config)GetFuser() (FuserFunc, error) {
	if f, exists := fusers[c.Fuser]; exists {
		return f, nil
	}
	return nil, fmt.Errorf("no Fuser named '%s', wanted %s", c.Fuser, ListFusers())
}
