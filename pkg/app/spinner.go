package app

import(
	"log"
	"os"
	"time"

	"github.com/theckman/yacspin"
)

// spinner shows fusion progress on the terminal. A nil *yacspin.Spinner
// (disabled, or failed to start) makes every method a no-op.
type spinner struct {
	s *yacspin.Spinner
}

func newSpinner(enabled bool) *spinner {
	if !enabled {
		return &spinner{}
	}
	s, err := yacspin.New(yacspin.Config{
		Writer:            os.Stderr,
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[11],
		Suffix:            " fusing ",
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		log.Printf("No spinner: %v\n", err)
		return &spinner{}
	}
	return &spinner{s: s}
}

func (sp *spinner)start(msg string) {
	if sp.s == nil {
		return
	}
	sp.s.Message(msg)
	if err := sp.s.Start(); err != nil {
		log.Printf("No spinner: %v\n", err)
		sp.s = nil
	}
}

func (sp *spinner)message(msg string) {
	if sp.s != nil {
		sp.s.Message(msg)
	}
}

func (sp *spinner)stop(msg string) {
	if sp.s != nil {
		sp.s.StopMessage(msg)
		sp.s.Stop()
	}
}

func (sp *spinner)fail(err error) {
	if sp.s != nil {
		sp.s.StopFailMessage(err.Error())
		sp.s.StopFail()
	}
}
