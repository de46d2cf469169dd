package audio

import (
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode       = 3
	vadFrameMs    = 20
	vadFrameBytes = SampleRate * vadFrameMs / 1000 * 2 // 640 bytes
)

// vadProcessor classifies captured PCM into speech/non-speech frames. It is
// fed from the capture callback and polled from the silence monitor tick.
type vadProcessor struct {
	vad *webrtcvad.VAD

	mu           sync.Mutex
	buf          []byte
	totalFrames  int
	speechFrames int
	tickTotal    int
	tickSpeech   int
}

func newVADProcessor() (*vadProcessor, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &vadProcessor{vad: v}, nil
}

func (p *vadProcessor) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, data...)
	for len(p.buf) >= vadFrameBytes {
		frame := p.buf[:vadFrameBytes]
		p.buf = p.buf[vadFrameBytes:]

		active, err := p.vad.Process(SampleRate, frame)
		if err != nil {
			continue
		}
		p.totalFrames++
		if active {
			p.speechFrames++
		}
	}
}

const speechThreshold = 0.10 // 10% of frames must be speech to count as "speaking"

// HasSpeechTick reports whether speech dominated since the previous call.
func (p *vadProcessor) HasSpeechTick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.totalFrames - p.tickTotal
	s := p.speechFrames - p.tickSpeech
	p.tickTotal, p.tickSpeech = p.totalFrames, p.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechThreshold
}

func (p *vadProcessor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = p.buf[:0]
	p.totalFrames = 0
	p.speechFrames = 0
	p.tickTotal = 0
	p.tickSpeech = 0
}
