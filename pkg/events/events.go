// Package events reports capture and fusion progress to whoever is listening:
// the log, an MQTT broker, or a test.
package events

import(
	"fmt"
	"log"
	"sync"
	"time"
)

type Type string

const(
	FrameSaved    Type = "frame.saved"
	FrameDropped  Type = "frame.dropped"
	FrameFailed   Type = "frame.failed"
	SessionDone   Type = "session.done"
	FusionOutput  Type = "fusion.output"
)

type Event struct {
	Session    string    `json:"session"`
	Type       Type      `json:"type"`
	Index      int       `json:"index"`
	ExposureUs int       `json:"exposure_us,omitempty"`
	File       string    `json:"file,omitempty"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

func (e Event)String() string {
	s := fmt.Sprintf("[%s] %s #%d", e.Session, e.Type, e.Index)
	if e.ExposureUs > 0 { s += fmt.Sprintf(" %dus", e.ExposureUs) }
	if e.File != ""     { s += " " + e.File }
	if e.Error != ""    { s += " err=" + e.Error }
	return s
}

type Publisher interface {
	Publish(Event) error
	Close() error
}

// LogPublisher writes events via the standard logger, when Verbosity > 0.
type LogPublisher struct {
	Verbosity int
}

func (p LogPublisher)Publish(e Event) error {
	if p.Verbosity > 0 {
		log.Printf("event: %s\n", e)
	}
	return nil
}

func (p LogPublisher)Close() error { return nil }

// Recorder keeps every event in memory.
type Recorder struct {
	sync.Mutex
	Events []Event
	Closed bool
}

func (r *Recorder)Publish(e Event) error {
	r.Lock()
	defer r.Unlock()
	r.Events = append(r.Events, e)
	return nil
}

func (r *Recorder)Close() error {
	r.Lock()
	defer r.Unlock()
	r.Closed = true
	return nil
}

func (r *Recorder)OfType(t Type) []Event {
	r.Lock()
	defer r.Unlock()
	ret := []Event{}
	for _, e := range r.Events {
		if e.Type == t {
			ret = append(ret, e)
		}
	}
	return ret
}

// Multi fans each event out to several publishers; every publisher sees
// every event, even if an earlier one fails.
type Multi []Publisher

func (m Multi)Publish(e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi)Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
