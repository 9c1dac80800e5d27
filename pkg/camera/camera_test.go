package camera_test

import(
	"errors"
	"testing"

	"github.com/abworrall/hdr-bracket/pkg/camera"
	"github.com/abworrall/hdr-bracket/pkg/camera/sim"
)

func TestAccessSatisfies(t *testing.T) {
	tests := []struct{
		Have, Want camera.Access
		Exp        bool
	}{
		{camera.ReadWrite, camera.ReadWrite, true},
		{camera.ReadOnly, camera.ReadWrite, false},
		{camera.WriteOnly, camera.WriteOnly, true},
		{camera.ReadWrite, camera.ReadOnly, true},
		{camera.NotAvailable, camera.ReadOnly, false},
		{camera.WriteOnly, camera.ReadOnly, false},
	}
	for i, test := range tests {
		if got := test.Have.Satisfies(test.Want); got != test.Exp {
			t.Errorf("[%d] %s.Satisfies(%s) = %v", i, test.Have, test.Want, got)
		}
	}
}

func TestRequire(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.ReadOnly = []string{"GainAuto"}
	cfg.Unavailable = []string{"PixelFormat"}
	sys := sim.New(cfg)
	dev := sys.Device(0)
	dev.Init()

	err := camera.Require(dev, camera.GainAuto, camera.ReadWrite)
	var cfgErr *camera.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Feature != camera.GainAuto || cfgErr.Have != camera.ReadOnly {
		t.Errorf("got %+v", cfgErr)
	}

	if err := camera.Require(dev, camera.PixelFormat, camera.ReadOnly); err == nil {
		t.Errorf("unavailable feature passed")
	}
	if err := camera.Require(dev, camera.Feature("Bogus"), camera.ReadOnly); !errors.As(err, &camera.ErrFeatureNotFound{}) {
		t.Errorf("unknown feature: got %v", err)
	}
}

func TestOpenNoCamera(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.Cameras = 0
	sys := sim.New(cfg)

	_, err := camera.Open(sys, 0)
	if !errors.Is(err, camera.ErrNoCamera) {
		t.Errorf("expected ErrNoCamera, got %v", err)
	}
	if !sys.Closed() {
		t.Errorf("system not released")
	}
}

func TestSessionClose(t *testing.T) {
	sys := sim.New(sim.DefaultConfig())
	sess, err := camera.Open(sys, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !sys.Device(0).Initialized() {
		t.Errorf("device not initialized")
	}
	if err := sess.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if sys.Device(0).Initialized() || !sys.Closed() {
		t.Errorf("session did not release everything")
	}
}

func TestUnknownDriver(t *testing.T) {
	if _, err := camera.NewSystem("nope", nil); err == nil {
		t.Errorf("expected error")
	}
}
