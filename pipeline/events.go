package pipeline

import (
	"github.com/LivingInDrm/voice-assistant/model"
	"github.com/LivingInDrm/voice-assistant/transcriber"
	"github.com/LivingInDrm/voice-assistant/translator"
)

// Phase is the orchestrator's top-level recording state. Translation runs
// as a side activity and never appears here.
type Phase int

const (
	Idle Phase = iota
	Recording
	Transcribing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	default:
		return "unknown"
	}
}

// EventSink abstracts the display layer so the TUI and tests receive the
// same pipeline events. All methods are invoked from the orchestrator's
// coordination goroutine, serialized. Volume updates are lossy: levels
// arriving faster than the loop drains them are dropped.
type EventSink interface {
	Status(text string)
	Phase(p Phase)
	Volume(level float64)
	RecordEnabled(enabled bool)
	ModelAvailability(states map[string]model.Availability)
	Transcription(res transcriber.Result)
	TranslationPartial(chunk string)
	Translation(res translator.Result)
}
