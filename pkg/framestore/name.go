package framestore

import(
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const(
	ManifestName   = "session.yaml"
	OutputHDR      = "hdr_image.hdr"
	OutputLDR      = "ldr_image.jpg"
	OutputFusion   = "fusion.jpg"
	OutputResponse = "response.png"

	// Per-operator tonemaps and per-frame fusion weights are named with these
	OutputTonemapPrefix = "tmo-"
	OutputWeightsPrefix = "weights-"
)

// Outputs are files we write next to the frames; they are never loaded as inputs.
var Outputs = []string{OutputHDR, OutputLDR, OutputFusion, OutputResponse}

var OutputPrefixes = []string{OutputTonemapPrefix, OutputWeightsPrefix}

func IsOutput(filename string) bool {
	base := filepath.Base(filename)
	for _, o := range Outputs {
		if base == o {
			return true
		}
	}
	for _, prefix := range OutputPrefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

// NameError is returned when a frame's filename doesn't carry an exposure time.
type NameError struct {
	Name   string
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("frame name '%s': %s (want exp_<us>_us.<ext>)", e.Name, e.Reason)
}

var nameRegexp = regexp.MustCompile(`^exp_([0-9]+)_us\.([A-Za-z0-9]+)$`)

// FormatName builds `exp_<us>_us.<ext>`
func FormatName(us int, ext string) string {
	return fmt.Sprintf("exp_%d_us.%s", us, strings.TrimPrefix(ext, "."))
}

// ParseName is the inverse of FormatName. Any directory part is ignored.
func ParseName(name string) (int, string, error) {
	base := filepath.Base(name)
	m := nameRegexp.FindStringSubmatch(base)
	if m == nil {
		return 0, "", &NameError{Name: base, Reason: "no exposure time"}
	}
	us, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", &NameError{Name: base, Reason: err.Error()}
	}
	if us <= 0 {
		return 0, "", &NameError{Name: base, Reason: "exposure time must be positive"}
	}
	return us, m[2], nil
}
