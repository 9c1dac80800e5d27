package camera

import(
	"errors"
	"fmt"
)

var(
	// ErrNoCamera is returned when the SDK enumerates zero cameras.
	ErrNoCamera = errors.New("no camera detected")

	// ErrTimeout is wrapped by drivers when NextFrame gives up waiting.
	ErrTimeout = errors.New("timed out waiting for frame")
)

// ErrFeatureNotFound is returned for a feature name that isn't in the Features table.
type ErrFeatureNotFound struct {
	Feature Feature
}

func (e ErrFeatureNotFound) Error() string {
	return fmt.Sprintf("feature %s not found in Features map", e.Feature)
}

// ConfigError is returned when a feature can't be used the way we need to.
type ConfigError struct {
	Feature Feature
	Want    Access
	Have    Access
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("unable to configure %s: need %s, feature is %s", e.Feature, e.Want, e.Have)
}

// SDKError wraps a failure code from a vendor SDK.
type SDKError struct {
	Op   string
	Code int
	Msg  string
}

func (e *SDKError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: sdk error %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: sdk error %d (%s)", e.Op, e.Code, e.Msg)
}

// Require checks that a feature is available with (at least) the wanted access.
func Require(dev Device, f Feature, want Access) error {
	if _, err := Kind(f); err != nil {
		return err
	}
	if have := dev.Access(f); !have.Satisfies(want) {
		return &ConfigError{Feature: f, Want: want, Have: have}
	}
	return nil
}
