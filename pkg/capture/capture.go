// Package capture runs a bracketed exposure sequence on one camera.
package capture

import(
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/abworrall/hdr-bracket/pkg/camera"
	"github.com/abworrall/hdr-bracket/pkg/events"
	"github.com/abworrall/hdr-bracket/pkg/exposure"
	"github.com/abworrall/hdr-bracket/pkg/framestore"
)

// Report is the outcome of a capture run. The run failed if any error was
// recorded; frames saved before (or after) the failure are still listed.
type Report struct {
	Session  string
	Saved    []framestore.FrameRecord
	Dropped  []int   // indices of incomplete frames
	Errs     []error
}

func (r *Report)Failed() bool { return len(r.Errs) > 0 }
func (r *Report)Err() error   { return errors.Join(r.Errs...) }

func (r *Report)fail(err error) {
	log.Printf("Error: %v\n", err)
	r.Errs = append(r.Errs, err)
}

// Controller owns the camera for the duration of a run.
type Controller struct {
	Config
	Device   camera.Device
	Store    *framestore.Store
	Events   events.Publisher
	Session  string

	Manifest framestore.Manifest
}

func NewController(cfg Config, dev camera.Device, store *framestore.Store, pub events.Publisher) *Controller {
	if pub == nil {
		pub = events.LogPublisher{Verbosity: cfg.Verbosity}
	}
	c := Controller{
		Config:  cfg,
		Device:  dev,
		Store:   store,
		Events:  pub,
		Session: uuid.New().String(),
	}
	c.Manifest = framestore.Manifest{
		Session: c.Session,
		Created: time.Now().UTC(),
		Gain:    cfg.Gain,
		Bounds:  cfg.Bounds,
	}
	return &c
}

func (c *Controller)publish(e events.Event) {
	e.Session = c.Session
	e.Time = time.Now()
	if err := c.Events.Publish(e); err != nil {
		log.Printf("event %s: %v\n", e.Type, err)
	}
}

// Run captures the full bracket. Automatic exposure is switched back on
// before Run returns, whatever happened.
func (c *Controller)Run(ctx context.Context) *Report {
	r := &Report{Session: c.Session}

	if !c.Bounds.Valid() {
		r.fail(fmt.Errorf("bad exposure bounds %s", c.Bounds))
		return r
	}
	if c.NumImages < 1 {
		r.fail(fmt.Errorf("need at least one image, asked for %d", c.NumImages))
		return r
	}

	c.logDeviceInfo()

	defer func() {
		if err := c.restore(); err != nil {
			r.fail(fmt.Errorf("restore: %w", err))
		}
		c.Manifest.Frames = r.Saved
		if err := c.Manifest.Write(c.Store.Dir); err != nil {
			r.fail(err)
		}
		c.publish(events.Event{Type: events.SessionDone, Index: len(r.Saved)})
	}()

	log.Printf("*** IMAGE ACQUISITION ***\n")
	if err := c.setup(); err != nil {
		r.fail(err)
		return r
	}

	if err := c.Device.BeginAcquisition(); err != nil {
		r.fail(fmt.Errorf("begin acquisition: %w", err))
		return r
	}
	log.Printf("Acquiring %d images into %s ...\n", c.NumImages, c.Store.Dir)

	for i:=0; i<c.NumImages; i++ {
		if err := ctx.Err(); err != nil {
			r.fail(fmt.Errorf("stopped before image %d: %w", i, err))
			break
		}
		c.captureOne(i, r)
	}

	if err := c.Device.EndAcquisition(); err != nil {
		r.fail(fmt.Errorf("end acquisition: %w", err))
	}

	if n := len(r.Saved); n > 1 {
		log.Printf("Bracket spans %.1f EV over %d frames\n", exposure.EV(float64(r.Saved[0].ExposureUs), float64(r.Saved[n-1].ExposureUs)), n)
	}

	return r
}

func (c *Controller)logDeviceInfo() {
	info, err := c.Device.Info()
	if err != nil {
		log.Printf("Device information not available: %v\n", err)
		return
	}
	c.Manifest.Camera = info
	log.Printf("*** DEVICE INFORMATION ***\n%s\n", info)
}

func (c *Controller)setEnum(f camera.Feature, v string) error {
	if err := camera.Require(c.Device, f, camera.ReadWrite); err != nil {
		return err
	}
	if err := c.Device.SetEnum(f, v); err != nil {
		return fmt.Errorf("set %s=%s: %w", f, v, err)
	}
	if c.Verbosity > 0 {
		log.Printf("%s set to %s\n", f, v)
	}
	return nil
}

// setup turns off the automatic modes, so every frame is exposed exactly as asked.
func (c *Controller)setup() error {
	if err := c.setEnum(camera.GainAuto, camera.Off); err != nil {
		return err
	}

	if err := camera.Require(c.Device, camera.Gain, camera.ReadWrite); err != nil {
		return err
	}
	if err := c.Device.SetFloat(camera.Gain, c.Gain); err != nil {
		return fmt.Errorf("set %s=%g: %w", camera.Gain, c.Gain, err)
	}
	log.Printf("Gain set to %.2f dB\n", c.Gain)

	if err := c.setEnum(camera.ExposureAuto, camera.Off); err != nil {
		return err
	}
	return c.setEnum(camera.AcquisitionMode, camera.Continuous)
}

func (c *Controller)restore() error {
	if err := c.setEnum(camera.ExposureAuto, camera.Continuous); err != nil {
		return err
	}
	log.Printf("Automatic exposure enabled\n")
	return nil
}

// applyExposure sets the exposure for bracket position x, and returns what
// the camera actually took.
func (c *Controller)applyExposure(x float64) (requested, applied int, err error) {
	if err := camera.Require(c.Device, camera.ExposureTime, camera.ReadWrite); err != nil {
		return 0, 0, err
	}

	hwMin, hwMax, err := c.Device.FloatRange(camera.ExposureTime)
	if err != nil {
		return 0, 0, fmt.Errorf("exposure range: %w", err)
	}
	b, err := exposure.Intersect(exposure.Bounds{Min: hwMin, Max: hwMax}, c.Bounds)
	if err != nil {
		return 0, 0, err
	}

	requested = exposure.Clamp(exposure.Resolve(x, b), hwMax)
	if err := c.Device.SetFloat(camera.ExposureTime, float64(requested)); err != nil {
		return requested, 0, fmt.Errorf("set %s=%d: %w", camera.ExposureTime, requested, err)
	}

	v, err := c.Device.GetFloat(camera.ExposureTime)
	if err != nil {
		return requested, 0, fmt.Errorf("read back %s: %w", camera.ExposureTime, err)
	}
	applied = int(v)
	if c.Verbosity > 0 {
		log.Printf("Exposure set to %d us (asked for %d)\n", applied, requested)
	}
	return requested, applied, nil
}

func (c *Controller)captureOne(i int, r *Report) {
	fail := func(err error) {
		r.fail(fmt.Errorf("image %d: %w", i, err))
		c.publish(events.Event{Type: events.FrameFailed, Index: i, Error: err.Error()})
	}

	requested, us, err := c.applyExposure(exposure.Position(i, c.NumImages))
	if err != nil {
		fail(err)
		return
	}
	timeout := c.Timeout(us)

	for p:=0; p<c.Purge; p++ {
		f, err := c.Device.NextFrame(timeout)
		if err != nil {
			fail(fmt.Errorf("purge frame %d: %w", p, err))
			return
		}
		if err := f.Release(); err != nil {
			log.Printf("Image %d: release purge frame %d: %v\n", i, p, err)
		}
	}

	f, err := c.Device.NextFrame(timeout)
	if err != nil {
		fail(err)
		return
	}
	defer func() {
		if err := f.Release(); err != nil {
			fail(fmt.Errorf("release: %w", err))
		}
	}()

	if f.Incomplete() {
		log.Printf("Image %d incomplete with image status %s ...\n", i, f.Status())
		r.Dropped = append(r.Dropped, i)
		c.publish(events.Event{Type: events.FrameDropped, Index: i, ExposureUs: us, Error: f.Status()})
		return
	}

	size := f.Size()
	log.Printf("Grabbed image %d, width = %d, height = %d\n", i, size.X, size.Y)

	img, err := f.Mono8()
	if err != nil {
		fail(fmt.Errorf("convert to mono8: %w", err))
		return
	}

	filename, err := c.Store.Save(framestore.Frame{Image: img, ExposureUs: us, Gain: c.Gain, Session: c.Session})
	if err != nil {
		fail(err)
		return
	}
	log.Printf("Image saved at %s\n", filename)

	r.Saved = append(r.Saved, framestore.FrameRecord{
		Index:      i,
		File:       filepath.Base(filename),
		Requested:  requested,
		ExposureUs: us,
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		Stats:      FrameStats(img),
	})
	c.publish(events.Event{Type: events.FrameSaved, Index: i, ExposureUs: us, File: filename})
}
