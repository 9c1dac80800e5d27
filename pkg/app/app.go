package app

import(
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/knadh/koanf"

	"github.com/abworrall/hdr-bracket/pkg/camera"
	"github.com/abworrall/hdr-bracket/pkg/capture"
	"github.com/abworrall/hdr-bracket/pkg/events"
	"github.com/abworrall/hdr-bracket/pkg/framestore"
	"github.com/abworrall/hdr-bracket/pkg/fusion"
)

// HardwareDriver is used when no camera driver is configured. The
// simulator is only used when asked for by name.
const HardwareDriver = "spinnaker"

// ErrCaptureFailed means some part of the capture went wrong; fusion is
// not attempted.
var ErrCaptureFailed = errors.New("capture failed")

type App struct {
	Config

	// Events defaults to the log, plus MQTT if a broker is configured
	Events events.Publisher

	k      *koanf.Koanf
}

// New builds an App from a fully populated config, with no file or env layering.
func New(cfg Config) *App {
	return &App{Config: cfg}
}

// Result is what a run produced.
type Result struct {
	Dir     string
	Capture *capture.Report
	Outputs []string
}

func (a *App)Dir() string {
	return filepath.Join(a.Root, a.Dirname)
}

func (a *App)driver() (string, error) {
	if a.Camera.Driver != "" {
		return a.Camera.Driver, nil
	}
	for _, name := range camera.Drivers() {
		if name == HardwareDriver {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s driver not built in (have %v, pick one with --camera)", camera.ErrNoCamera, HardwareDriver, camera.Drivers())
}

// driverConfig hands the camera driver its own section, camera.<driver>.
func (a *App)driverConfig(v interface{}) error {
	if a.k == nil {
		return nil
	}
	return a.k.Unmarshal("camera." + a.Camera.Driver, v)
}

func (a *App)publisher() (events.Publisher, error) {
	if a.Events != nil {
		return a.Events, nil
	}
	logPub := events.LogPublisher{Verbosity: a.Verbosity}
	if a.MQTT.Broker == "" {
		return logPub, nil
	}
	mq, err := events.NewMQTTPublisher(a.MQTT)
	if err != nil {
		return nil, err
	}
	log.Printf("Publishing events to %s under %s/\n", a.MQTT.Broker, a.MQTT.Prefix)
	return events.Multi{logPub, mq}, nil
}

// Run captures a bracket into Dir(), then fuses it. The output directory
// is only touched once a camera has been found and initialized.
func (a *App)Run(ctx context.Context) (*Result, error) {
	res := &Result{Dir: a.Dir()}
	if a.Dirname == "" {
		return res, fmt.Errorf("no output dirname given")
	}

	if a.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", a.AsYaml())
	}

	pub, err := a.publisher()
	if err != nil {
		return res, err
	}
	defer pub.Close()

	if a.Camera.Driver, err = a.driver(); err != nil {
		return res, err
	}
	sys, err := camera.NewSystem(a.Camera.Driver, a.driverConfig)
	if err != nil {
		return res, err
	}
	sess, err := camera.Open(sys, a.Camera.Index)
	if err != nil {
		return res, err
	}

	report, err := a.capture(ctx, sess, pub)
	res.Capture = report
	if closeErr := sess.Close(); closeErr != nil {
		log.Printf("Error: %v\n", closeErr)
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return res, err
	}
	if report.Failed() {
		return res, fmt.Errorf("%w: %w", ErrCaptureFailed, report.Err())
	}

	if a.NoFuse {
		return res, nil
	}

	res.Outputs, err = a.Fuse(res.Dir, report.Session, pub)
	return res, err
}

func (a *App)capture(ctx context.Context, sess *camera.Session, pub events.Publisher) (*capture.Report, error) {
	dir := a.Dir()
	if err := framestore.Prepare(dir); err != nil {
		return nil, err
	}
	store, err := framestore.New(dir, a.Capture.Format)
	if err != nil {
		return nil, err
	}

	ctl := capture.NewController(a.Capture, sess.Device, store, pub)
	start := time.Now()
	report := ctl.Run(ctx)
	log.Printf("Capture %s: %d saved, %d dropped, %d error(s) in %s\n", report.Session, len(report.Saved),
		len(report.Dropped), len(report.Errs), time.Since(start).Round(time.Millisecond))
	return report, nil
}

// Fuse runs the fusion pipeline over the frames in dir, writing the outputs
// alongside them.
func (a *App)Fuse(dir, session string, pub events.Publisher) ([]string, error) {
	spin := newSpinner(a.Spinner)
	spin.start("Loading frames")

	s := fusion.NewStack()
	s.Config = a.Fusion
	s.OnStage = spin.message

	if err := s.LoadFilesAndDirs(dir); err != nil {
		spin.fail(err)
		return nil, err
	}

	written, err := s.Process(dir)
	for _, f := range written {
		if pub != nil {
			if perr := pub.Publish(events.Event{Session: session, Type: events.FusionOutput, File: f, Time: time.Now()}); perr != nil {
				log.Printf("event %s: %v\n", events.FusionOutput, perr)
			}
		}
		log.Printf("Wrote %s\n", f)
	}
	if err != nil {
		spin.fail(err)
		return written, fmt.Errorf("fusion: %w", err)
	}

	spin.stop(fmt.Sprintf("%d outputs written to %s", len(written), dir))
	return written, nil
}
