package capture

import(
	"log"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/hdr-bracket/pkg/exposure"
)

type Config struct {
	Verbosity     int             `yaml:"verbosity" koanf:"verbosity"`

	NumImages     int             `yaml:"num_images" koanf:"num_images"`
	Gain          float64         `yaml:"gain" koanf:"gain"`             // dB, applied with GainAuto off
	Bounds        exposure.Bounds `yaml:",inline" koanf:",squash,flatten"`
	Format        string          `yaml:"format" koanf:"format"`         // jpg, png, fits

	// Purge frames are pulled and thrown away after each exposure change,
	// for cameras that deliver a few frames at the old setting.
	Purge         int             `yaml:"purge" koanf:"purge"`

	// Added to the exposure time to get the per-frame wait limit
	TimeoutMargin time.Duration   `yaml:"timeout_margin" koanf:"timeout_margin"`
}

func DefaultConfig() Config {
	return Config{
		Gain:          1.0,
		Bounds:        exposure.Bounds{Min: 30, Max: 65000},
		Format:        "jpg",
		TimeoutMargin: time.Second,
	}
}

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

// Timeout is how long to wait for a frame exposed for `us` microseconds.
func (c Config)Timeout(us int) time.Duration {
	return time.Duration(us/1000) * time.Millisecond + c.TimeoutMargin
}
