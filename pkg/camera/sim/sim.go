// Package sim is a camera driver that renders a synthetic high dynamic range
// scene, so capture and fusion can run without hardware.
package sim

import(
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/abworrall/hdr-bracket/pkg/camera"
)

func init() {
	camera.Register("sim", func(unmarshal func(interface{}) error) (camera.System, error) {
		cfg := DefaultConfig()
		if unmarshal != nil {
			if err := unmarshal(&cfg); err != nil {
				return nil, fmt.Errorf("sim config: %w", err)
			}
		}
		return New(cfg), nil
	})
}

type Config struct {
	Cameras      int      `yaml:"cameras" koanf:"cameras"`
	Width        int      `yaml:"width" koanf:"width"`
	Height       int      `yaml:"height" koanf:"height"`
	Model        string   `yaml:"model" koanf:"model"`
	Serial       string   `yaml:"serial" koanf:"serial"`

	ExposureMin  float64  `yaml:"exposure_min" koanf:"exposure_min"`   // hardware range, us
	ExposureMax  float64  `yaml:"exposure_max" koanf:"exposure_max"`
	ExposureStep float64  `yaml:"exposure_step" koanf:"exposure_step"` // applied exposures snap to this, if >0
	GainMax      float64  `yaml:"gain_max" koanf:"gain_max"`           // dB

	// Sensitivity scales scene radiance * seconds into sensor units
	Sensitivity  float64  `yaml:"sensitivity" koanf:"sensitivity"`

	Incomplete   []int    `yaml:"incomplete" koanf:"incomplete"` // NextFrame calls (0-based) that deliver incomplete frames
	Fail         []int    `yaml:"fail" koanf:"fail"`             // NextFrame calls that return an SDK error
	ReadOnly     []string `yaml:"readonly" koanf:"readonly"`     // features forced read-only
	Unavailable  []string `yaml:"unavailable" koanf:"unavailable"`

	Realtime     bool     `yaml:"realtime" koanf:"realtime"`     // sleep for the exposure time
}

func DefaultConfig() Config {
	return Config{
		Cameras:     1,
		Width:       320,
		Height:      240,
		Model:       "Simulated Mono 0.3MP",
		Serial:      "00000001",
		ExposureMin: 6,
		ExposureMax: 30000000,
		GainMax:     47.99,
		Sensitivity: 100,
	}
}

// System implements camera.System
type System struct {
	cfg     Config
	devices []*Device
	closed  bool
}

func New(cfg Config) *System {
	s := System{cfg: cfg}
	for i:=0; i<cfg.Cameras; i++ {
		s.devices = append(s.devices, newDevice(cfg, i))
	}
	return &s
}

func (s *System)LibraryVersion() string { return "sim 1.0.0" }
func (s *System)Closed() bool           { return s.closed }

// Device gives tests direct access to a simulated camera.
func (s *System)Device(i int) *Device { return s.devices[i] }

func (s *System)Cameras() ([]camera.Device, error) {
	if s.closed {
		return nil, &camera.SDKError{Op:"Cameras", Code:-1002, Msg:"system released"}
	}
	ret := []camera.Device{}
	for _, d := range s.devices {
		ret = append(ret, d)
	}
	return ret, nil
}

func (s *System)Close() error {
	if s.closed {
		return &camera.SDKError{Op:"ReleaseInstance", Code:-1002, Msg:"already released"}
	}
	s.closed = true
	return nil
}

// Device implements camera.Device
type Device struct {
	sync.Mutex
	Config
	index      int

	inited     bool
	acquiring  bool
	nFrames    int // NextFrame calls so far

	floats     map[camera.Feature]float64
	enums      map[camera.Feature]string

	// History records every successful write, as "Feature=value"
	History    []string
}

func newDevice(cfg Config, i int) *Device {
	return &Device{
		Config: cfg,
		index:  i,
		floats: map[camera.Feature]float64{
			camera.ExposureTime: 10000,
			camera.Gain:         0,
		},
		enums:  map[camera.Feature]string{
			camera.ExposureAuto:    camera.Continuous,
			camera.GainAuto:        camera.Continuous,
			camera.AcquisitionMode: "SingleFrame",
			camera.PixelFormat:     camera.Mono8,
		},
	}
}

func (d *Device)Init() error {
	d.Lock()
	defer d.Unlock()
	if d.inited {
		return &camera.SDKError{Op:"Init", Code:-1004, Msg:"camera already initialized"}
	}
	d.inited = true
	return nil
}

func (d *Device)DeInit() error {
	d.Lock()
	defer d.Unlock()
	if d.acquiring {
		return &camera.SDKError{Op:"DeInit", Code:-1004, Msg:"camera still acquiring"}
	}
	d.inited = false
	return nil
}

func (d *Device)Initialized() bool { d.Lock(); defer d.Unlock(); return d.inited }
func (d *Device)Acquiring() bool   { d.Lock(); defer d.Unlock(); return d.acquiring }

func (d *Device)Info() (camera.Info, error) {
	return camera.Info{
		{Name:string(camera.DeviceVendorName), Value:"Simulated Vision"},
		{Name:string(camera.DeviceModelName), Value:d.Model},
		{Name:string(camera.DeviceSerialNumber), Value:d.Serial},
		{Name:string(camera.DeviceVersion), Value:"1.0"},
		{Name:"DeviceIndex", Value:fmt.Sprintf("%d", d.index)},
	}, nil
}

func contains(l []string, s string) bool {
	for _, v := range l {
		if v == s { return true }
	}
	return false
}

func (d *Device)Access(f camera.Feature) camera.Access {
	d.Lock()
	defer d.Unlock()
	return d.access(f)
}

func (d *Device)access(f camera.Feature) camera.Access {
	if !d.inited || contains(d.Unavailable, string(f)) {
		return camera.NotAvailable
	}
	kind, err := camera.Kind(f)
	if err != nil {
		return camera.NotAvailable
	}
	if kind == "string" || contains(d.ReadOnly, string(f)) {
		return camera.ReadOnly
	}

	// Like real cameras, the manual values are locked while the auto mode runs
	switch f {
	case camera.ExposureTime:
		if d.enums[camera.ExposureAuto] != camera.Off { return camera.ReadOnly }
	case camera.Gain:
		if d.enums[camera.GainAuto] != camera.Off { return camera.ReadOnly }
	case camera.AcquisitionMode, camera.PixelFormat:
		if d.acquiring { return camera.ReadOnly }
	}
	return camera.ReadWrite
}

func (d *Device)FloatRange(f camera.Feature) (float64, float64, error) {
	d.Lock()
	defer d.Unlock()
	if !d.access(f).Readable() {
		return 0, 0, &camera.SDKError{Op:"FloatRange "+string(f), Code:-1006, Msg:"not readable"}
	}
	switch f {
	case camera.ExposureTime: return d.ExposureMin, d.ExposureMax, nil
	case camera.Gain:         return 0, d.GainMax, nil
	}
	return 0, 0, camera.ErrFeatureNotFound{Feature:f}
}

func (d *Device)GetFloat(f camera.Feature) (float64, error) {
	d.Lock()
	defer d.Unlock()
	if !d.access(f).Readable() {
		return 0, &camera.SDKError{Op:"GetFloat "+string(f), Code:-1006, Msg:"not readable"}
	}
	v, exists := d.floats[f]
	if !exists {
		return 0, camera.ErrFeatureNotFound{Feature:f}
	}
	return v, nil
}

func (d *Device)SetFloat(f camera.Feature, v float64) error {
	d.Lock()
	defer d.Unlock()
	if !d.access(f).Writable() {
		return &camera.SDKError{Op:"SetFloat "+string(f), Code:-1006, Msg:"not writable"}
	}

	min, max := 0.0, d.GainMax
	if f == camera.ExposureTime {
		min, max = d.ExposureMin, d.ExposureMax
		if d.ExposureStep > 0 {
			v = math.Round(v / d.ExposureStep) * d.ExposureStep
		}
	}
	if v < min || v > max {
		return &camera.SDKError{Op:"SetFloat "+string(f), Code:-1016, Msg:fmt.Sprintf("%f out of range [%f,%f]", v, min, max)}
	}

	d.floats[f] = v
	d.History = append(d.History, fmt.Sprintf("%s=%g", f, v))
	return nil
}

func (d *Device)GetEnum(f camera.Feature) (string, error) {
	d.Lock()
	defer d.Unlock()
	if !d.access(f).Readable() {
		return "", &camera.SDKError{Op:"GetEnum "+string(f), Code:-1006, Msg:"not readable"}
	}
	return d.enums[f], nil
}

var enumValues = map[camera.Feature][]string{
	camera.ExposureAuto:    {camera.Off, "Once", camera.Continuous},
	camera.GainAuto:        {camera.Off, "Once", camera.Continuous},
	camera.AcquisitionMode: {camera.Continuous, "SingleFrame", "MultiFrame"},
	camera.PixelFormat:     {camera.Mono8, "Mono16"},
}

func (d *Device)SetEnum(f camera.Feature, v string) error {
	d.Lock()
	defer d.Unlock()
	if !d.access(f).Writable() {
		return &camera.SDKError{Op:"SetEnum "+string(f), Code:-1006, Msg:"not writable"}
	}
	if !contains(enumValues[f], v) {
		return &camera.SDKError{Op:"SetEnum "+string(f), Code:-1009, Msg:"no entry "+v}
	}
	d.enums[f] = v
	d.History = append(d.History, fmt.Sprintf("%s=%s", f, v))
	return nil
}

func (d *Device)BeginAcquisition() error {
	d.Lock()
	defer d.Unlock()
	if !d.inited || d.acquiring {
		return &camera.SDKError{Op:"BeginAcquisition", Code:-1002, Msg:"bad state"}
	}
	d.acquiring = true
	return nil
}

func (d *Device)EndAcquisition() error {
	d.Lock()
	defer d.Unlock()
	if !d.acquiring {
		return &camera.SDKError{Op:"EndAcquisition", Code:-1002, Msg:"not acquiring"}
	}
	d.acquiring = false
	return nil
}

func containsInt(l []int, n int) bool {
	for _, v := range l {
		if v == n { return true }
	}
	return false
}

func (d *Device)NextFrame(timeout time.Duration) (camera.Frame, error) {
	d.Lock()
	defer d.Unlock()

	seq := d.nFrames
	d.nFrames++

	if !d.acquiring {
		return nil, &camera.SDKError{Op:"GetNextImage", Code:-1002, Msg:"camera not acquiring"}
	}
	if containsInt(d.Fail, seq) {
		return nil, &camera.SDKError{Op:"GetNextImage", Code:-1011, Msg:"simulated transfer failure"}
	}

	exp := time.Duration(d.floats[camera.ExposureTime] * float64(time.Microsecond))
	if exp > timeout {
		return nil, fmt.Errorf("GetNextImage: exposure %s > timeout %s: %w", exp, timeout, camera.ErrTimeout)
	}
	if d.Realtime {
		time.Sleep(exp)
	}

	f := Frame{
		img:        d.render(),
		incomplete: containsInt(d.Incomplete, seq),
	}
	return &f, nil
}

// Radiance is the scene: a horizontal ramp over five decades of brightness,
// some vertical texture, and a very bright disc.
func Radiance(x, y, w, h int) float64 {
	fx := float64(x) / float64(w)
	fy := float64(y) / float64(h)

	e := math.Pow(10, 5.0*fx - 2.0) * (1.0 + 0.25*math.Sin(fy * 6.0 * math.Pi))

	dx, dy := fx - 0.75, fy - 0.3
	if dx*dx + dy*dy < 0.01 {
		e *= 20
	}
	return e
}

// Response is the simulated camera's (gamma-like) response curve, mapping
// sensor exposure onto [0,1].
func Response(v float64) float64 {
	if v <= 0 { return 0 }
	if v >= 1 { return 1 }
	return math.Pow(v, 1.0/2.2)
}

func (d *Device)render() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, d.Width, d.Height))
	secs := d.floats[camera.ExposureTime] / 1e6
	gain := math.Pow(10, d.floats[camera.Gain]/20.0)
	k := secs * gain * d.Sensitivity

	for y:=0; y<d.Height; y++ {
		for x:=0; x<d.Width; x++ {
			v := Response(Radiance(x, y, d.Width, d.Height) * k)
			img.Pix[y*img.Stride + x] = uint8(math.Round(v * 255.0))
		}
	}
	return img
}

// Frame implements camera.Frame
type Frame struct {
	img        *image.Gray
	incomplete bool
	released   bool
}

func (f *Frame)Size() image.Point { return f.img.Bounds().Size() }
func (f *Frame)Incomplete() bool  { return f.incomplete }

func (f *Frame)Status() string {
	if f.incomplete {
		return "IMAGE_DATA_INCOMPLETE"
	}
	return "IMAGE_NO_ERROR"
}

func (f *Frame)Mono8() (*image.Gray, error) {
	if f.released {
		return nil, &camera.SDKError{Op:"Convert", Code:-1002, Msg:"image released"}
	}
	g := image.NewGray(f.img.Rect)
	copy(g.Pix, f.img.Pix)
	return g, nil
}

func (f *Frame)Release() error {
	if f.released {
		return &camera.SDKError{Op:"Release", Code:-1002, Msg:"image already released"}
	}
	f.released = true
	return nil
}
