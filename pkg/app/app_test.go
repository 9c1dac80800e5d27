package app

import(
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abworrall/hdr-bracket/pkg/camera"
	_ "github.com/abworrall/hdr-bracket/pkg/camera/sim"
	"github.com/abworrall/hdr-bracket/pkg/events"
	"github.com/abworrall/hdr-bracket/pkg/framestore"
	"github.com/abworrall/hdr-bracket/pkg/fusion"
)

func writeConfig(t *testing.T, root, extra string) string {
	t.Helper()
	f := filepath.Join(t.TempDir(), "hdr-bracket.yaml")
	contents := fmt.Sprintf(`root: %s
spinner: false
camera:
  driver: sim
  sim:
    width: 96
    height: 72
%s`, root, extra)
	if err := os.WriteFile(f, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return f
}

func load(t *testing.T, cfgFile, dirname string, n int) (*App, *events.Recorder) {
	t.Helper()
	a, err := Load(cfgFile, map[string]interface{}{"dirname": dirname, "capture.num_images": n})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rec := &events.Recorder{}
	a.Events = rec
	return a, rec
}

func TestNoCamera(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	a, rec := load(t, writeConfig(t, root, "    cameras: 0\n"), "run1", 3)

	_, err := a.Run(context.Background())
	if !errors.Is(err, camera.ErrNoCamera) {
		t.Fatalf("expected ErrNoCamera, got %v", err)
	}
	if _, err := os.Stat(a.Dir()); !os.IsNotExist(err) {
		t.Errorf("output dir was created: %v", err)
	}
	if len(rec.Events) != 0 {
		t.Errorf("unexpected events: %v", rec.Events)
	}
}

func TestRun(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	a, rec := load(t, writeConfig(t, root, "capture:\n  format: png\n"), "run1", 4)

	res, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Dir != filepath.Join(root, "run1") {
		t.Errorf("dir %s", res.Dir)
	}
	if len(res.Capture.Saved) != 4 {
		t.Errorf("saved %d frames", len(res.Capture.Saved))
	}
	for _, name := range []string{framestore.ManifestName, framestore.OutputHDR, framestore.OutputLDR, framestore.OutputFusion} {
		if _, err := os.Stat(filepath.Join(res.Dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if len(res.Outputs) != 3 {
		t.Errorf("outputs: %v", res.Outputs)
	}
	if n := len(rec.OfType(events.FusionOutput)); n != 3 {
		t.Errorf("%d fusion.output events", n)
	}
	if n := len(rec.OfType(events.FrameSaved)); n != 4 {
		t.Errorf("%d frame.saved events", n)
	}
	if !rec.Closed {
		t.Errorf("publisher not closed")
	}
}

func TestRunNoFuse(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	a, _ := load(t, writeConfig(t, root, "nofuse: true\n"), "run1", 2)

	res, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Outputs) != 0 {
		t.Errorf("outputs: %v", res.Outputs)
	}
	if _, err := os.Stat(filepath.Join(res.Dir, framestore.OutputHDR)); !os.IsNotExist(err) {
		t.Errorf("fusion ran: %v", err)
	}
}

func TestCaptureFailureSkipsFusion(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	a, _ := load(t, writeConfig(t, root, "    fail: [1]\n"), "run1", 3)

	res, err := a.Run(context.Background())
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
	if len(res.Capture.Saved) != 2 {
		t.Errorf("saved %d frames", len(res.Capture.Saved))
	}
	if _, err := os.Stat(filepath.Join(res.Dir, framestore.OutputFusion)); !os.IsNotExist(err) {
		t.Errorf("fusion ran: %v", err)
	}
}

func TestLoadLayers(t *testing.T) {
	t.Setenv("HDRB_CAPTURE__GAIN", "3.5")
	t.Setenv("HDRB_FUSION__TONEMAPPER", "reinhard05")

	cfgFile := writeConfig(t, "/data", "capture:\n  exp_max: 20000\n  gain: 2\n")
	a, err := Load(cfgFile, map[string]interface{}{"capture.num_images": 7, "fusion.tonemapper": "drago03"})
	if err != nil {
		t.Fatal(err)
	}

	if a.Root != "/data" {
		t.Errorf("root %q", a.Root)
	}
	if a.Capture.Gain != 3.5 {
		t.Errorf("env should beat the file: gain %f", a.Capture.Gain)
	}
	if a.Fusion.Tonemapper != "drago03" {
		t.Errorf("overrides should beat env: tonemapper %s", a.Fusion.Tonemapper)
	}
	if a.Capture.NumImages != 7 {
		t.Errorf("num_images %d", a.Capture.NumImages)
	}
	if a.Capture.Bounds.Min != 30 || a.Capture.Bounds.Max != 20000 {
		t.Errorf("bounds %s", a.Capture.Bounds)
	}
	if a.Fusion.Samples != 70 || a.Capture.Format != "jpg" {
		t.Errorf("defaults lost: samples %d, format %s", a.Fusion.Samples, a.Capture.Format)
	}
}

func TestLoadMissingFile(t *testing.T) {
	a, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Root != "images" || a.Camera.Driver != "" {
		t.Errorf("defaults: %+v", a.Config)
	}
}

func TestDefaultDriverIsNotSimulator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Root = filepath.Join(t.TempDir(), "images")
	cfg.Dirname = "run1"
	cfg.Capture.NumImages = 3
	cfg.Spinner = false
	a := New(cfg)
	a.Events = &events.Recorder{}

	// The simulator is linked into this test binary, but must not be picked
	_, err := a.Run(context.Background())
	if !errors.Is(err, camera.ErrNoCamera) {
		t.Fatalf("expected ErrNoCamera, got %v", err)
	}
	if _, err := os.Stat(a.Dir()); !os.IsNotExist(err) {
		t.Errorf("output dir was created: %v", err)
	}
}

func TestSingleFrameCannotFuse(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	a, _ := load(t, writeConfig(t, root, ""), "run1", 1)

	res, err := a.Run(context.Background())
	if !errors.Is(err, fusion.ErrTooFewLayers) {
		t.Fatalf("expected ErrTooFewLayers, got %v", err)
	}
	if len(res.Capture.Saved) != 1 {
		t.Errorf("saved %d frames", len(res.Capture.Saved))
	}
}

// brokenPublisher refuses fusion.output events.
type brokenPublisher struct {
	events.Recorder
}

func (p *brokenPublisher)Publish(e events.Event) error {
	if e.Type == events.FusionOutput {
		return errors.New("broker gone")
	}
	return p.Recorder.Publish(e)
}

func TestFusionPublishErrorLogged(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	a, _ := load(t, writeConfig(t, root, ""), "run1", 3)
	a.Events = &brokenPublisher{}

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	res, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := strings.Count(buf.String(), "event fusion.output: broker gone"); n != len(res.Outputs) {
		t.Errorf("expected %d logged publish errors, found %d", len(res.Outputs), n)
	}
}
