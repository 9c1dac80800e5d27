package camera

import(
	"errors"
	"fmt"
	"log"
)

// Session holds one initialized camera, and the SDK instance it came from.
// Close must always be called, it releases both.
type Session struct {
	System System
	Device Device
	Index  int
}

// Open picks camera `index` from the system. On any error the system has
// already been released.
func Open(sys System, index int) (*Session, error) {
	log.Printf("SDK library version: %s\n", sys.LibraryVersion())

	cams, err := sys.Cameras()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("enumerate cameras: %w", err), sys.Close())
	}

	log.Printf("Number of cameras detected: %d\n", len(cams))
	if len(cams) == 0 {
		return nil, errors.Join(ErrNoCamera, sys.Close())
	} else if index < 0 || index >= len(cams) {
		return nil, errors.Join(fmt.Errorf("camera index %d: only %d camera(s) attached", index, len(cams)), sys.Close())
	}

	dev := cams[index]
	if err := dev.Init(); err != nil {
		return nil, errors.Join(fmt.Errorf("init camera %d: %w", index, err), sys.Close())
	}

	return &Session{System: sys, Device: dev, Index: index}, nil
}

func (s *Session)Close() error {
	var errs []error
	if err := s.Device.DeInit(); err != nil {
		errs = append(errs, fmt.Errorf("deinit camera %d: %w", s.Index, err))
	}
	if err := s.System.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release system: %w", err))
	}
	return errors.Join(errs...)
}
