package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Session is one finished recording. It is owned by the Recorder while
// recording and handed over wholesale on Stop; nothing mutates it afterwards.
type Session struct {
	Samples    []float32
	StartedAt  time.Time
	SampleRate int
	Channels   int
}

func (s Session) Duration() time.Duration {
	if s.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

func (s Session) Empty() bool { return len(s.Samples) == 0 }

// Recorder accumulates capture blocks into a Session and reports a smoothed
// volume level per block. Volume and silence notifications run on the capture
// backend's context, not the caller's.
type Recorder struct {
	device    CaptureDevice
	onVolume  func(level float64)
	onSilence func(ev SilenceEvent)
	vad       *vadProcessor // nil if VAD init failed; silence advisory disabled

	mu        sync.Mutex
	recording bool
	samples   []float32
	startedAt time.Time
	monStop   chan struct{}
}

func NewRecorder(device CaptureDevice, onVolume func(float64), onSilence func(SilenceEvent)) *Recorder {
	r := &Recorder{device: device, onVolume: onVolume, onSilence: onSilence}
	if onSilence != nil {
		if vp, err := newVADProcessor(); err == nil {
			r.vad = vp
		}
	}
	return r
}

// Start opens the capture stream. Calling it while already recording is a
// no-op. On device failure the recorder stays in the not-recording state.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return nil
	}

	r.samples = nil
	r.startedAt = time.Now()
	if r.vad != nil {
		r.vad.Reset()
	}

	r.device.SetCallback(r.handleBlock)
	if err := r.device.Start(); err != nil {
		r.device.ClearCallback()
		return err
	}
	r.recording = true

	if r.vad != nil {
		r.monStop = make(chan struct{})
		go r.monitorSilence(r.monStop)
	}
	return nil
}

// Stop halts the stream and returns the accumulated session; ownership of
// the sample buffer moves to the caller. Stopping a non-recording recorder
// returns an empty session.
func (r *Recorder) Stop() Session {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return Session{SampleRate: SampleRate, Channels: Channels}
	}
	r.recording = false
	monStop := r.monStop
	r.monStop = nil
	r.mu.Unlock()

	if monStop != nil {
		close(monStop)
	}
	r.device.Stop()
	r.device.ClearCallback()

	r.mu.Lock()
	samples := r.samples
	startedAt := r.startedAt
	r.samples = nil
	r.mu.Unlock()

	return Session{
		Samples:    samples,
		StartedAt:  startedAt,
		SampleRate: SampleRate,
		Channels:   Channels,
	}
}

func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// handleBlock runs on the capture context: converts to float32, accumulates,
// and derives the clamped RMS level.
func (r *Recorder) handleBlock(data []byte, frameCount uint32) {
	if len(data) < 2 {
		return
	}
	n := len(data) / 2
	block := make([]float32, n)
	var sumSquares float64
	for i := 0; i < n; i++ {
		s := float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
		block[i] = s
		sumSquares += float64(s) * float64(s)
	}

	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.samples = append(r.samples, block...)
	r.mu.Unlock()

	if r.onVolume != nil {
		level := math.Sqrt(sumSquares/float64(n)) * 10
		if level > 1 {
			level = 1
		}
		r.onVolume(level)
	}
	if r.vad != nil {
		r.vad.Process(data)
	}
}

func (r *Recorder) monitorSilence(stop <-chan struct{}) {
	mon := newSilenceMonitor()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if ev := mon.Tick(r.vad.HasSpeechTick()); ev != SilenceNone {
				r.onSilence(ev)
			}
		}
	}
}
