package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestRecorderStartIdempotent(t *testing.T) {
	dev := NewFakeCapture()
	r := NewRecorder(dev, nil, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dev.FeedDuration(0.5, 0.1)
	if err := r.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	sess := r.Stop()
	want := int(0.5 * SampleRate)
	if len(sess.Samples) != want {
		t.Errorf("second Start must not reset the session: %d samples, want %d", len(sess.Samples), want)
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	r := NewRecorder(NewFakeCapture(), nil, nil)
	sess := r.Stop()
	if !sess.Empty() {
		t.Errorf("expected empty session, got %d samples", len(sess.Samples))
	}
	if sess.SampleRate != SampleRate {
		t.Errorf("SampleRate = %d, want %d", sess.SampleRate, SampleRate)
	}
}

func TestRecorderStartFailureLeavesStateUnchanged(t *testing.T) {
	dev := NewFakeCapture()
	dev.FailStart(ErrDevice)
	r := NewRecorder(dev, nil, nil)

	if err := r.Start(); !errors.Is(err, ErrDevice) {
		t.Fatalf("Start err = %v, want ErrDevice", err)
	}
	if r.IsRecording() {
		t.Error("recorder must not report recording after failed Start")
	}
	if !r.Stop().Empty() {
		t.Error("Stop after failed Start must return empty session")
	}
}

func TestRecorderAccumulatesAndDuration(t *testing.T) {
	dev := NewFakeCapture()
	r := NewRecorder(dev, nil, nil)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	dev.FeedDuration(2.0, 0.2)
	sess := r.Stop()

	if got, want := len(sess.Samples), 2*SampleRate; got != want {
		t.Errorf("samples = %d, want %d", got, want)
	}
	if d := sess.Duration(); math.Abs(d.Seconds()-2.0) > 0.01 {
		t.Errorf("Duration = %v, want ~2s", d)
	}
	if sess.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}
}

func TestRecorderSecondRecordingIsFresh(t *testing.T) {
	dev := NewFakeCapture()
	r := NewRecorder(dev, nil, nil)

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	dev.FeedDuration(1.0, 0.1)
	first := r.Stop()

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	dev.FeedDuration(0.25, 0.1)
	second := r.Stop()

	if len(first.Samples) != SampleRate {
		t.Errorf("first = %d samples", len(first.Samples))
	}
	if len(second.Samples) != SampleRate/4 {
		t.Errorf("second = %d samples, must not include first recording", len(second.Samples))
	}
}

func TestRecorderVolumeClamped(t *testing.T) {
	dev := NewFakeCapture()
	var levels []float64
	r := NewRecorder(dev, func(l float64) { levels = append(levels, l) }, nil)

	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	dev.FeedDuration(0.1, 0.9) // loud: RMS*10 would exceed 1
	dev.FeedDuration(0.1, 0.0) // silence
	r.Stop()

	if len(levels) == 0 {
		t.Fatal("no volume notifications")
	}
	for _, l := range levels {
		if l < 0 || l > 1 {
			t.Fatalf("level %v outside [0,1]", l)
		}
	}
	if levels[0] != 1 {
		t.Errorf("loud block level = %v, want clamped to 1", levels[0])
	}
	if last := levels[len(levels)-1]; last > 0.01 {
		t.Errorf("silent block level = %v, want ~0", last)
	}
}

func TestRecorderIgnoresBlocksAfterStop(t *testing.T) {
	dev := NewFakeCapture()
	r := NewRecorder(dev, nil, nil)
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	dev.FeedDuration(0.1, 0.1)

	// Grab the callback before Stop clears it, simulating a block already
	// in flight on the capture context.
	var inFlight DataCallback
	dev.mu.Lock()
	inFlight = dev.cb
	dev.mu.Unlock()

	sess := r.Stop()
	inFlight(make([]byte, 2048), 1024)

	if got := len(sess.Samples); got != int(0.1*SampleRate) {
		t.Errorf("late block must be dropped, got %d samples", got)
	}
}

func TestSessionDurationZeroRate(t *testing.T) {
	var s Session
	if s.Duration() != 0 {
		t.Error("zero-value session should have zero duration")
	}
	if s.Duration() > time.Second {
		t.Error("unexpected duration")
	}
}
