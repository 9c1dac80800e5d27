/*Package camera describes the small set of interfaces the capture code
needs from a machine vision camera SDK.

A System is the SDK itself (one per process), which enumerates Devices.
Devices expose named features, each with an Access level that can change
at runtime (e.g. ExposureTime is read-only while ExposureAuto is on).

*/
package camera

import(
	"fmt"
	"image"
	"strings"
	"time"
)

// Access describes what can be done with a feature right now.
type Access int

const(
	NotAvailable Access = iota
	ReadOnly
	WriteOnly
	ReadWrite
)

func (a Access)Readable() bool { return a == ReadOnly || a == ReadWrite }
func (a Access)Writable() bool { return a == WriteOnly || a == ReadWrite }

func (a Access)String() string {
	switch a {
	case NotAvailable: return "not-available"
	case ReadOnly:     return "read-only"
	case WriteOnly:    return "write-only"
	case ReadWrite:    return "read-write"
	}
	return fmt.Sprintf("access(%d)", int(a))
}

// Satisfies reports whether a feature with access `a` can be used in the way `want` asks for.
func (a Access)Satisfies(want Access) bool {
	if want.Readable() && !a.Readable() { return false }
	if want.Writable() && !a.Writable() { return false }
	return a != NotAvailable
}

// Feature is the GenICam name of a camera parameter.
type Feature string

const(
	ExposureTime       Feature = "ExposureTime"
	ExposureAuto       Feature = "ExposureAuto"
	Gain               Feature = "Gain"
	GainAuto           Feature = "GainAuto"
	AcquisitionMode    Feature = "AcquisitionMode"
	PixelFormat        Feature = "PixelFormat"
	DeviceVendorName   Feature = "DeviceVendorName"
	DeviceModelName    Feature = "DeviceModelName"
	DeviceSerialNumber Feature = "DeviceSerialNumber"
	DeviceVersion      Feature = "DeviceVersion"
)

// Features maps the features we use to their node types.
var Features = map[Feature]string{
	ExposureTime:       "float",
	Gain:               "float",

	ExposureAuto:       "enum",
	GainAuto:           "enum",
	AcquisitionMode:    "enum",
	PixelFormat:        "enum",

	DeviceVendorName:   "string",
	DeviceModelName:    "string",
	DeviceSerialNumber: "string",
	DeviceVersion:      "string",
}

// Kind returns the node type of f, or an error for features we don't know about.
func Kind(f Feature) (string, error) {
	if k, ok := Features[f]; ok {
		return k, nil
	}
	return "", ErrFeatureNotFound{Feature: f}
}

// Enum values used during capture
const(
	Off        = "Off"
	Continuous = "Continuous"
	Mono8      = "Mono8"
)

// InfoField is one line of device information, in the order the device reports it.
type InfoField struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type Info []InfoField

func (i Info)Get(name string) string {
	for _, f := range i {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func (i Info)String() string {
	str := []string{}
	for _, f := range i {
		str = append(str, fmt.Sprintf("%s: %s", f.Name, f.Value))
	}
	return strings.Join(str, "\n")
}

// Device is a single camera.
type Device interface {
	// Init must be called before any feature is touched; DeInit undoes it.
	Init() error
	DeInit() error

	// Info returns the transport layer's device information block.
	Info() (Info, error)

	// Access reports how a feature can be used right now.
	Access(f Feature) Access

	GetFloat(f Feature) (float64, error)
	SetFloat(f Feature, v float64) error
	FloatRange(f Feature) (min, max float64, err error)

	GetEnum(f Feature) (string, error)
	SetEnum(f Feature, v string) error

	BeginAcquisition() error
	EndAcquisition() error

	// NextFrame blocks until a frame arrives, or the timeout passes. The frame
	// must be released by the caller.
	NextFrame(timeout time.Duration) (Frame, error)
}

// Frame is one image as delivered by the SDK.
type Frame interface {
	Size() image.Point
	Incomplete() bool
	Status() string

	// Mono8 converts the frame into an 8-bit grayscale copy owned by Go.
	Mono8() (*image.Gray, error)
	Release() error
}

// System is the SDK instance.
type System interface {
	LibraryVersion() string
	Cameras() ([]Device, error)

	// Close releases every camera and the SDK instance itself.
	Close() error
}
