// Package pipeline coordinates audio capture, transcription, translation,
// and model downloads. All state lives in one coordination goroutine that
// consumes a single queue of commands and job completions, so transitions
// are race-free without locks. Background jobs run on their own goroutines
// and report back through the same queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LivingInDrm/voice-assistant/audio"
	"github.com/LivingInDrm/voice-assistant/config"
	"github.com/LivingInDrm/voice-assistant/log"
	"github.com/LivingInDrm/voice-assistant/model"
	"github.com/LivingInDrm/voice-assistant/transcriber"
	"github.com/LivingInDrm/voice-assistant/translator"
)

// minRecording is the shortest session worth transcribing. Anything below
// is discarded before a job is dispatched.
const minRecording = 500 * time.Millisecond

// Fetcher downloads one model's artifacts into the local cache.
type Fetcher interface {
	Fetch(ctx context.Context, d model.Descriptor, progress func(string)) error
}

// Hooks are optional side effects wired by the entry point: clipboard copy,
// audio cues, and the debugging dump of a finished recording. Any may be nil.
type Hooks struct {
	Copy      func(text string) error
	Dump      func(sess audio.Session)
	BeepStart func()
	BeepStop  func()
	BeepError func()
}

type Options struct {
	Config      config.Config
	Device      audio.CaptureDevice
	Transcriber *transcriber.Transcriber
	Models      *model.Manager
	Fetcher     Fetcher
	Sink        EventSink
	Hooks       Hooks

	// NewTranslator lets tests substitute the provider factory.
	// Nil means translator.New.
	NewTranslator func(provider, apiKey, targetLanguage string) (translator.Translator, error)

	// SilenceAdvisory enables the VAD-based "no voice detected" warning
	// during recording.
	SilenceAdvisory bool
}

// Orchestrator owns the recording state machine. Commands arrive through
// the exported methods from any goroutine; everything else happens inside
// Run's loop.
type Orchestrator struct {
	cfg           config.Config
	rec           *audio.Recorder
	trans         *transcriber.Transcriber
	models        *model.Manager
	avail         *model.State
	fetch         Fetcher
	sink          EventSink
	hooks         Hooks
	newTranslator func(provider, apiKey, targetLanguage string) (translator.Translator, error)

	msgs    chan msg
	done    chan struct{}
	baseCtx context.Context

	// owned by the coordination goroutine
	phase           Phase
	selected        model.Descriptor
	translationOn   bool
	trn             translator.Translator
	gen             uint64
	lastTranslation uuid.UUID
	downloads       map[string]handle
	completed       int
}

// queue messages

type cmdStartRecording struct{}
type cmdStopRecording struct{}
type cmdToggleRecording struct{}
type cmdSelectModel struct{ id string }
type cmdSetTranslation struct{ enabled bool }
type cmdSettingsChanged struct{}

type volumeMsg struct{ level float64 }
type silenceMsg struct{ ev audio.SilenceEvent }
type statusMsg struct{ text string }

type transcriptionDone struct {
	gen uint64
	res transcriber.Result
	err error
}

type translationChunk struct {
	id   uuid.UUID
	text string
}

type translationDone struct {
	id  uuid.UUID
	res translator.Result
	err error
}

type downloadDone struct {
	modelID string
	id      uuid.UUID
	err     error
}

func New(opts Options) (*Orchestrator, error) {
	selected, ok := model.ByID(opts.Config.Model)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", opts.Config.Model)
	}
	if opts.Sink == nil {
		return nil, errors.New("pipeline: nil event sink")
	}

	o := &Orchestrator{
		cfg:           opts.Config,
		trans:         opts.Transcriber,
		models:        opts.Models,
		avail:         model.NewState(opts.Models),
		fetch:         opts.Fetcher,
		sink:          opts.Sink,
		hooks:         opts.Hooks,
		newTranslator: opts.NewTranslator,
		msgs:          make(chan msg, 128),
		done:          make(chan struct{}),
		selected:      selected,
		translationOn: opts.Config.Translation.Enabled,
		downloads:     make(map[string]handle),
	}
	if o.newTranslator == nil {
		o.newTranslator = translator.New
	}

	var onSilence func(audio.SilenceEvent)
	if opts.SilenceAdvisory {
		onSilence = func(ev audio.SilenceEvent) { o.post(silenceMsg{ev}) }
	}
	o.rec = audio.NewRecorder(opts.Device, o.postVolume, onSilence)

	o.trans.ChangeModel(selected)
	o.trn = o.deriveTranslator(opts.Config)
	return o, nil
}

// post delivers a message to the coordination loop, dropping it once the
// loop has exited.
func (o *Orchestrator) post(m msg) {
	select {
	case o.msgs <- m:
	case <-o.done:
	}
}

// postVolume runs on the capture callback goroutine and must never block it.
func (o *Orchestrator) postVolume(level float64) {
	select {
	case o.msgs <- volumeMsg{level}:
	default:
	}
}

// Commands. Safe from any goroutine; hotkey and UI triggers funnel through
// the same entry points so no dual-state is possible.

func (o *Orchestrator) StartRecording() { o.post(cmdStartRecording{}) }
func (o *Orchestrator) StopRecording() { o.post(cmdStopRecording{}) }
func (o *Orchestrator) ToggleRecording() { o.post(cmdToggleRecording{}) }
func (o *Orchestrator) SelectModel(id string) { o.post(cmdSelectModel{id}) }
func (o *Orchestrator) SetTranslation(enabled bool) { o.post(cmdSetTranslation{enabled}) }
func (o *Orchestrator) SettingsChanged() { o.post(cmdSettingsChanged{}) }

// Run is the coordination loop. It returns when ctx is cancelled, after
// stopping the recorder and aborting in-flight downloads.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.baseCtx = ctx
	defer close(o.done)

	log.SessionStart(o.selected.ID, o.cfg.Language)
	o.sink.ModelAvailability(o.avail.Snapshot())
	o.applySelection(o.selected)
	if o.translationOn && o.trn == nil {
		o.sink.Status("Translation enabled, but no API key configured")
	}

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil
		case m := <-o.msgs:
			o.handle(m)
		}
	}
}

func (o *Orchestrator) shutdown() {
	if o.phase == Recording {
		o.rec.Stop()
	}
	for id, h := range o.downloads {
		h.cancel()
		delete(o.downloads, id)
	}
	log.SessionEnd(o.completed)
}

func (o *Orchestrator) handle(m msg) {
	switch m := m.(type) {
	case cmdStartRecording:
		o.startRecording()
	case cmdStopRecording:
		o.stopRecording()
	case cmdToggleRecording:
		if o.phase == Recording {
			o.stopRecording()
		} else {
			o.startRecording()
		}
	case cmdSelectModel:
		o.selectModel(m.id)
	case cmdSetTranslation:
		o.setTranslation(m.enabled)
	case cmdSettingsChanged:
		o.settingsChanged()
	case volumeMsg:
		o.sink.Volume(m.level)
	case silenceMsg:
		o.silence(m.ev)
	case statusMsg:
		o.sink.Status(m.text)
	case transcriptionDone:
		o.transcriptionDone(m)
	case translationChunk:
		if m.id == o.lastTranslation {
			o.sink.TranslationPartial(m.text)
		}
	case translationDone:
		o.translationDone(m)
	case downloadDone:
		o.downloadDone(m)
	}
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phase = p
	o.sink.Phase(p)
}

func (o *Orchestrator) startRecording() {
	if o.phase != Idle {
		return
	}
	if o.avail.Get(o.selected.ID) != model.Ready {
		o.sink.Status(fmt.Sprintf("Model %s is not downloaded yet", o.selected.DisplayName))
		return
	}
	if err := o.rec.Start(); err != nil {
		log.Errorf("recording start: %v", err)
		o.sink.Status("Microphone error: " + err.Error())
		o.beepError()
		return
	}
	if o.hooks.BeepStart != nil {
		o.hooks.BeepStart()
	}
	o.setPhase(Recording)
	o.sink.Status("Recording...")
}

func (o *Orchestrator) stopRecording() {
	// A stop while already transcribing is ignored; only one transcription
	// may be in flight.
	if o.phase != Recording {
		return
	}
	sess := o.rec.Stop()
	if o.hooks.BeepStop != nil {
		o.hooks.BeepStop()
	}

	if sess.Duration() < minRecording {
		o.setPhase(Idle)
		o.sink.Status("Recording too short, nothing to transcribe")
		return
	}
	if o.hooks.Dump != nil {
		// sessions are immutable after Stop, safe to hand off
		go o.hooks.Dump(sess)
	}

	o.setPhase(Transcribing)
	o.gen++
	gen := o.gen
	dispatch(o, func(ctx context.Context, _ uuid.UUID) (transcriber.Result, error) {
		return o.trans.Run(sess, func(step string) { o.post(statusMsg{step}) })
	}, func(_ uuid.UUID, res transcriber.Result, err error) msg {
		return transcriptionDone{gen: gen, res: res, err: err}
	})
}

func (o *Orchestrator) transcriptionDone(m transcriptionDone) {
	// Only one transcription is ever in flight, so the phase resets either
	// way; a stale generation just loses its payload.
	o.setPhase(Idle)
	if m.gen != o.gen {
		log.Warn("discarding stale transcription result")
		return
	}
	if m.err != nil {
		log.Errorf("transcription: %v", m.err)
		o.sink.Status("Transcription error: " + m.err.Error())
		o.beepError()
		return
	}

	o.completed++
	res := m.res
	log.TranscriptionMetrics(o.selected.ID, res.Language,
		res.AudioDuration.Seconds(), res.ProcessingDuration.Seconds())
	log.TranscriptionText(res.Text)
	o.sink.Transcription(res)
	o.sink.Status(fmt.Sprintf("Transcribed %.1fs of audio in %.1fs",
		res.AudioDuration.Seconds(), res.ProcessingDuration.Seconds()))

	if res.Text == "" {
		return
	}
	o.copyText(res.Text)
	if o.translationOn && o.trn != nil {
		o.startTranslation(res.Text)
	}
}

func (o *Orchestrator) startTranslation(text string) {
	trn := o.trn
	o.sink.Status("Translating...")
	h := dispatch(o, func(ctx context.Context, id uuid.UUID) (translator.Result, error) {
		return trn.TranslateStream(ctx, text, func(chunk string) {
			o.post(translationChunk{id: id, text: chunk})
		})
	}, func(id uuid.UUID, res translator.Result, err error) msg {
		return translationDone{id: id, res: res, err: err}
	})
	// Last-dispatched-wins: when recordings outpace a slow translation,
	// only the newest job may update the display.
	o.lastTranslation = h.id
}

func (o *Orchestrator) translationDone(m translationDone) {
	if m.id != o.lastTranslation {
		log.Warn("discarding superseded translation result")
		return
	}
	if m.err != nil {
		log.Errorf("translation: %v", m.err)
		o.sink.Status("Translation error: " + m.err.Error())
		return
	}
	log.Translation(m.res.Provider, m.res.TargetLanguage, len(m.res.TranslatedText))
	o.sink.Translation(m.res)
	o.sink.Status("Translated to " + m.res.TargetLanguage)
	o.copyText(m.res.TranslatedText)
}

func (o *Orchestrator) selectModel(id string) {
	d, ok := model.ByID(id)
	if !ok {
		o.sink.Status(fmt.Sprintf("Unknown model %q", id))
		return
	}
	o.applySelection(d)
}

// applySelection makes d the active model. Any in-flight transcription
// predates the switch and its result will be discarded.
func (o *Orchestrator) applySelection(d model.Descriptor) {
	o.selected = d
	o.gen++
	o.trans.ChangeModel(d)

	if o.avail.Get(d.ID) == model.Ready {
		o.sink.RecordEnabled(true)
		o.sink.Status(fmt.Sprintf("Model %s ready", d.DisplayName))
		return
	}
	o.sink.RecordEnabled(false)
	o.startDownload(d)
}

func (o *Orchestrator) startDownload(d model.Descriptor) {
	if _, inflight := o.downloads[d.ID]; inflight {
		// duplicate request for a model already downloading is a no-op
		return
	}
	// Only the newest selection matters; abort transfers for other models.
	// A superseded download delivers no completion, so its availability
	// resets here.
	for id, h := range o.downloads {
		if id != d.ID {
			h.cancel()
			delete(o.downloads, id)
			o.avail.Set(id, model.NotDownloaded)
		}
	}

	o.avail.Set(d.ID, model.Downloading)
	o.sink.ModelAvailability(o.avail.Snapshot())
	o.sink.Status(fmt.Sprintf("Downloading model %s (%d MB)...", d.DisplayName, d.SizeMB))

	o.downloads[d.ID] = dispatch(o, func(ctx context.Context, _ uuid.UUID) (struct{}, error) {
		err := o.fetch.Fetch(ctx, d, func(line string) { o.post(statusMsg{line}) })
		return struct{}{}, err
	}, func(id uuid.UUID, _ struct{}, err error) msg {
		if errors.Is(err, context.Canceled) {
			// superseded downloads deliver no completion
			return nil
		}
		return downloadDone{modelID: d.ID, id: id, err: err}
	})
}

func (o *Orchestrator) downloadDone(m downloadDone) {
	h, tracked := o.downloads[m.modelID]
	if !tracked || h.id != m.id {
		log.Warnf("untracked download completion for %s", m.modelID)
		return
	}
	delete(o.downloads, m.modelID)
	log.Download(m.modelID, m.err)

	if m.err != nil {
		o.avail.Set(m.modelID, model.NotDownloaded)
		o.sink.ModelAvailability(o.avail.Snapshot())
		o.sink.Status("Model download failed: " + m.err.Error())
		o.beepError()
		return
	}

	o.avail.Set(m.modelID, model.Ready)
	o.sink.ModelAvailability(o.avail.Snapshot())
	if m.modelID == o.selected.ID {
		o.sink.RecordEnabled(true)
		o.sink.Status(fmt.Sprintf("Model %s ready", o.selected.DisplayName))
	}
}

func (o *Orchestrator) setTranslation(enabled bool) {
	o.translationOn = enabled
	switch {
	case !enabled:
		o.sink.Status("Translation disabled")
	case o.trn == nil:
		// accepted, but nothing will translate until a key is configured
		o.sink.Status("Translation enabled, but no API key configured")
	default:
		o.sink.Status(fmt.Sprintf("Translation enabled (%s, %s)",
			o.trn.Name(), o.cfg.Translation.TargetLanguage))
	}
}

func (o *Orchestrator) settingsChanged() {
	cfg, err := o.cfg.Reload()
	if err != nil {
		log.Errorf("settings reload: %v", err)
		o.sink.Status("Settings reload failed: " + err.Error())
		return
	}
	o.cfg = cfg
	o.trans.SetLanguage(cfg.Language)
	o.translationOn = cfg.Translation.Enabled
	o.trn = o.deriveTranslator(cfg)

	if d, ok := model.ByID(cfg.Model); ok && d.ID != o.selected.ID {
		o.applySelection(d)
	}
	o.sink.Status("Settings reloaded")
}

// deriveTranslator builds the provider backend whenever a credential is
// present, even while translation is toggled off, so a later toggle works
// without another reload.
func (o *Orchestrator) deriveTranslator(cfg config.Config) translator.Translator {
	if cfg.Translation.APIKey == "" {
		return nil
	}
	trn, err := o.newTranslator(cfg.Translation.Provider, cfg.Translation.APIKey, cfg.Translation.TargetLanguage)
	if err != nil {
		log.Errorf("translator setup: %v", err)
		return nil
	}
	return trn
}

func (o *Orchestrator) silence(ev audio.SilenceEvent) {
	switch ev {
	case audio.SilenceWarn, audio.SilenceRepeat:
		o.sink.Status("No voice detected, still recording")
	case audio.SilenceWarnClear:
		o.sink.Status("Recording...")
	}
}

func (o *Orchestrator) copyText(text string) {
	if o.hooks.Copy == nil {
		return
	}
	if err := o.hooks.Copy(text); err != nil {
		log.Warnf("clipboard: %v", err)
	}
}

func (o *Orchestrator) beepError() {
	if o.hooks.BeepError != nil {
		o.hooks.BeepError()
	}
}
