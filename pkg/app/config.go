// Package app wires a camera, the capture controller and the fusion
// pipeline together into one run, driven by layered configuration.
package app

import(
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/abworrall/hdr-bracket/pkg/capture"
	"github.com/abworrall/hdr-bracket/pkg/events"
	"github.com/abworrall/hdr-bracket/pkg/fusion"
)

// EnvPrefix marks environment variables that override config; a double
// underscore descends a level, so HDRB_CAPTURE__GAIN sets capture.gain.
const EnvPrefix = "HDRB_"

type CameraConfig struct {
	Driver string `yaml:"driver" koanf:"driver"` // spinnaker, sim; empty picks HardwareDriver
	Index  int    `yaml:"index" koanf:"index"`
}

type Config struct {
	Root      string             `yaml:"root" koanf:"root"`
	Dirname   string             `yaml:"dirname" koanf:"dirname"`
	Verbosity int                `yaml:"verbosity" koanf:"verbosity"`

	Camera    CameraConfig       `yaml:"camera" koanf:"camera"`
	Capture   capture.Config     `yaml:"capture" koanf:"capture"`
	Fusion    fusion.Config      `yaml:"fusion" koanf:"fusion"`
	MQTT      events.MQTTConfig  `yaml:"mqtt" koanf:"mqtt"`

	NoFuse    bool               `yaml:"nofuse" koanf:"nofuse"`
	Spinner   bool               `yaml:"spinner" koanf:"spinner"`
}

func DefaultConfig() Config {
	return Config{
		Root:    "images",
		Capture: capture.DefaultConfig(),
		Fusion:  fusion.NewConfig(),
		MQTT:    events.DefaultMQTTConfig(),
		Spinner: true,
	}
}

func (c Config)AsYaml() string {
	b, err := yml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
}

// Load layers the defaults, then the YAML file (if configFile is set), then
// the environment, then `overrides` (typically from command line flags,
// with dotted keys like "capture.gain").
func Load(configFile string, overrides map[string]interface{}) (*App, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s: %w", configFile, err)
			}
			log.Printf("Config file %s not found, carrying on\n", configFile)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("config overrides: %w", err)
		}
	}

	cfg := Config{}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// Verbosity is set once, at the top
	if cfg.Verbosity > cfg.Capture.Verbosity { cfg.Capture.Verbosity = cfg.Verbosity }
	if cfg.Verbosity > cfg.Fusion.Verbosity  { cfg.Fusion.Verbosity = cfg.Verbosity }

	return &App{Config: cfg, k: k}, nil
}
