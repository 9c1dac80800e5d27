package events

import(
	"errors"
	"testing"
	"time"
)

type failing struct{ n int }

func (f *failing)Publish(Event) error { f.n++; return errors.New("nope") }
func (f *failing)Close() error        { return nil }

func TestMulti(t *testing.T) {
	f := &failing{}
	r := &Recorder{}
	m := Multi{f, r, LogPublisher{}}

	e := Event{Session: "s1", Type: FrameSaved, Index: 2, ExposureUs: 464, Time: time.Now()}
	if err := m.Publish(e); err == nil {
		t.Errorf("expected the failing publisher's error")
	}
	if f.n != 1 || len(r.OfType(FrameSaved)) != 1 {
		t.Errorf("event not fanned out: %d, %v", f.n, r.Events)
	}

	m.Close()
	if !r.Closed {
		t.Errorf("recorder not closed")
	}
}

func TestTopic(t *testing.T) {
	p := MQTTPublisher{cfg: DefaultMQTTConfig()}
	if got := p.Topic(Event{Session: "abc", Type: SessionDone}); got != "hdr-bracket/abc/session.done" {
		t.Errorf("got %s", got)
	}
}

func TestEventString(t *testing.T) {
	e := Event{Session: "s", Type: FrameDropped, Index: 1, ExposureUs: 10, Error: "incomplete"}
	if got := e.String(); got != "[s] frame.dropped #1 10us err=incomplete" {
		t.Errorf("got %q", got)
	}
}
