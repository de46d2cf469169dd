package transcriber

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LivingInDrm/voice-assistant/audio"
	"github.com/LivingInDrm/voice-assistant/model"
)

var (
	// ErrModelLoad wraps missing or corrupt model files.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference wraps runtime failures during decoding.
	ErrInference = errors.New("transcription failed")
)

// Result is the immutable outcome of one transcription job.
type Result struct {
	Text               string
	Language           string
	ProcessingDuration time.Duration
	AudioDuration      time.Duration
}

// Output is what the speech-model backend returns.
type Output struct {
	Text     string
	Language string
}

// Engine is the opaque speech-model backend: loading may download or map
// large files, inference is synchronous and potentially slow. Both are only
// ever called from a job worker, never the coordination context.
type Engine interface {
	Load(d model.Descriptor) error
	Infer(samples []float32, sampleRate int, language string) (Output, error)
}

// Transcriber runs one transcription at a time over a configured model,
// lazy-loading it on first use and after a model change.
type Transcriber struct {
	engine Engine

	mu       sync.Mutex
	model    model.Descriptor
	language string
	loaded   bool
}

func New(engine Engine, m model.Descriptor, language string) *Transcriber {
	return &Transcriber{engine: engine, model: m, language: language}
}

// ChangeModel switches the active model; the next Run reloads.
func (t *Transcriber) ChangeModel(m model.Descriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m.ID != t.model.ID {
		t.model = m
		t.loaded = false
	}
}

func (t *Transcriber) SetLanguage(lang string) {
	t.mu.Lock()
	t.language = lang
	t.mu.Unlock()
}

func (t *Transcriber) Model() model.Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model
}

// Run transcribes a full session, reporting each step through progress.
// Errors are terminal for the job and never retried here.
func (t *Transcriber) Run(sess audio.Session, progress func(string)) (Result, error) {
	if progress == nil {
		progress = func(string) {}
	}

	t.mu.Lock()
	m := t.model
	lang := t.language
	loaded := t.loaded
	t.mu.Unlock()

	if !loaded {
		progress("Loading model...")
		if err := t.engine.Load(m); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrModelLoad, err)
		}
		t.mu.Lock()
		// The model may have changed while loading; only mark loaded if not.
		if t.model.ID == m.ID {
			t.loaded = true
		}
		t.mu.Unlock()
	}

	progress("Transcribing...")
	start := time.Now()
	out, err := t.engine.Infer(sess.Samples, sess.SampleRate, lang)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	language := out.Language
	if language == "" {
		language = lang
	}
	return Result{
		Text:               strings.TrimSpace(out.Text),
		Language:           language,
		ProcessingDuration: time.Since(start),
		AudioDuration:      sess.Duration(),
	}, nil
}
