// Package beep plays short audio cues for record start, record stop, and
// errors. Playback is fire-and-forget; a missing audio sink just means
// silence.
package beep

import "math"

var disabled bool

// Disable silences all cues.
func Disable() { disabled = true }

const sampleRate = 44100

// Cue shapes: start is a snappy high tick, stop a lower one, error a low
// double-beep. The 200ms tails give the output buffer time to fill.
var (
	startCue = tone(1200, 0.2, 0.5, 60)
	stopCue  = tone(900, 0.2, 0.5, 40)
	errorCue = doubleTone(350, 0.08, 0.05, 0.6, 30)
)

// tone synthesizes a mono sine tick with an exponential decay envelope.
func tone(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleTone(freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := tone(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

func Start() {
	if disabled {
		return
	}
	go play(startCue)
}

func Stop() {
	if disabled {
		return
	}
	go play(stopCue)
}

func Error() {
	if disabled {
		return
	}
	go play(errorCue)
}
