package audio

import (
	"encoding/binary"
	"sync"
)

// FakeCapture is a scripted capture device for tests: callers push sample
// blocks through Feed and the registered callback sees them exactly as a
// real backend would deliver PCM.
type FakeCapture struct {
	mu         sync.Mutex
	cb         DataCallback
	started    bool
	startErr   error
	startCalls int
}

func NewFakeCapture() *FakeCapture { return &FakeCapture{} }

// FailStart makes the next Start calls return err.
func (f *FakeCapture) FailStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()
}

func (f *FakeCapture) Close() {}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) StartCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

// Feed delivers samples to the callback as 16-bit PCM, one block per call,
// on the caller's goroutine.
func (f *FakeCapture) Feed(samples []float32) {
	f.mu.Lock()
	cb := f.cb
	started := f.started
	f.mu.Unlock()
	if cb == nil || !started {
		return
	}

	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v*32767)))
	}
	cb(data, uint32(len(samples)))
}

// FeedDuration pushes d worth of a constant-amplitude tone in 1024-frame
// blocks at the canonical sample rate.
func (f *FakeCapture) FeedDuration(seconds float64, amplitude float32) {
	total := int(seconds * SampleRate)
	block := make([]float32, BlockFrames)
	for i := range block {
		block[i] = amplitude
	}
	for total > 0 {
		n := BlockFrames
		if total < n {
			n = total
		}
		f.Feed(block[:n])
		total -= n
	}
}
