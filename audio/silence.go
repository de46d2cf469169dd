package audio

import "time"

const (
	tickInterval     = 100 * time.Millisecond
	silenceWarnEvery = 8 * time.Second
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // repeat reminder (every 8s)
)

// silenceMonitor tracks a rolling speech/no-speech window over 100ms ticks
// and raises an advisory when a recording has gone quiet.
type silenceMonitor struct {
	warnAt   int
	windowSz int

	ticks    int
	window   []bool
	warned   bool
	lastWarn int
}

func newSilenceMonitor() *silenceMonitor {
	warnAt := int(silenceWarnEvery / tickInterval)
	return &silenceMonitor{
		warnAt:   warnAt,
		windowSz: warnAt,
		window:   make([]bool, warnAt),
	}
}

func (m *silenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	m.window[m.ticks%m.windowSz] = hasSpeech
	m.ticks++

	r := m.ratio(m.warnAt)

	// Warn: 8s window below threshold
	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return SilenceWarn
	}
	// Clear: speech ratio above clear threshold
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	// Repeat reminder every 8s while still silent
	if m.warned && m.ticks-m.lastWarn >= m.warnAt {
		m.lastWarn = m.ticks
		return SilenceRepeat
	}

	return SilenceNone
}
