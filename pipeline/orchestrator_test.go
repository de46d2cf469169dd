package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LivingInDrm/voice-assistant/audio"
	"github.com/LivingInDrm/voice-assistant/config"
	"github.com/LivingInDrm/voice-assistant/model"
	"github.com/LivingInDrm/voice-assistant/transcriber"
	"github.com/LivingInDrm/voice-assistant/translator"
)

// fakeSink records every event for later assertions.
type fakeSink struct {
	mu           sync.Mutex
	statuses     []string
	phases       []Phase
	volumes      []float64
	enabled      []bool
	avail        []map[string]model.Availability
	transcripts  []transcriber.Result
	partials     []string
	translations []translator.Result
}

func (s *fakeSink) Status(text string) {
	s.mu.Lock()
	s.statuses = append(s.statuses, text)
	s.mu.Unlock()
}

func (s *fakeSink) Phase(p Phase) {
	s.mu.Lock()
	s.phases = append(s.phases, p)
	s.mu.Unlock()
}

func (s *fakeSink) Volume(level float64) {
	s.mu.Lock()
	s.volumes = append(s.volumes, level)
	s.mu.Unlock()
}

func (s *fakeSink) RecordEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = append(s.enabled, enabled)
	s.mu.Unlock()
}

func (s *fakeSink) ModelAvailability(states map[string]model.Availability) {
	s.mu.Lock()
	s.avail = append(s.avail, states)
	s.mu.Unlock()
}

func (s *fakeSink) Transcription(res transcriber.Result) {
	s.mu.Lock()
	s.transcripts = append(s.transcripts, res)
	s.mu.Unlock()
}

func (s *fakeSink) TranslationPartial(chunk string) {
	s.mu.Lock()
	s.partials = append(s.partials, chunk)
	s.mu.Unlock()
}

func (s *fakeSink) Translation(res translator.Result) {
	s.mu.Lock()
	s.translations = append(s.translations, res)
	s.mu.Unlock()
}

func (s *fakeSink) phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.phases) == 0 {
		return Idle
	}
	return s.phases[len(s.phases)-1]
}

func (s *fakeSink) hasStatus(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.statuses {
		if strings.Contains(st, substr) {
			return true
		}
	}
	return false
}

func (s *fakeSink) recordEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.enabled) == 0 {
		return false
	}
	return s.enabled[len(s.enabled)-1]
}

func (s *fakeSink) sawEnabled(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, got := range s.enabled {
		if got == v {
			return true
		}
	}
	return false
}

func (s *fakeSink) availability(id string) model.Availability {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.avail) == 0 {
		return model.NotDownloaded
	}
	return s.avail[len(s.avail)-1][id]
}

func (s *fakeSink) transcriptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcripts)
}

func (s *fakeSink) transcript(i int) transcriber.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcripts[i]
}

func (s *fakeSink) translationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.translations)
}

func (s *fakeSink) translation(i int) translator.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translations[i]
}

func (s *fakeSink) chunks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.partials...)
}

func (s *fakeSink) maxVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0.0
	for _, v := range s.volumes {
		if v > max {
			max = v
		}
	}
	return max
}

func (s *fakeSink) sawPhase(p Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, got := range s.phases {
		if got == p {
			return true
		}
	}
	return false
}

// fakeFetcher counts downloads per model and records how each ended.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string][]error
	failErr error
	block   chan struct{}
}

func (f *fakeFetcher) Fail(err error) {
	f.mu.Lock()
	f.failErr = err
	f.mu.Unlock()
}

// Block makes every Fetch wait until the returned func is called, while
// still honoring cancellation.
func (f *fakeFetcher) Block() func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *fakeFetcher) Fetch(ctx context.Context, d model.Descriptor, progress func(string)) error {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[d.ID]++
	block := f.block
	err := f.failErr
	f.mu.Unlock()

	if progress != nil {
		progress("Downloading " + d.FileName)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			// wrapped like the production fetcher, so suppression sees the
			// same error chain
			err = fmt.Errorf("%w: %w", model.ErrDownload, ctx.Err())
		}
	}

	f.mu.Lock()
	if f.results == nil {
		f.results = make(map[string][]error)
	}
	f.results[d.ID] = append(f.results[d.ID], err)
	f.mu.Unlock()
	return err
}

func (f *fakeFetcher) Calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeFetcher) Results(id string) []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.results[id]...)
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

type harness struct {
	t      *testing.T
	o      *Orchestrator
	sink   *fakeSink
	dev    *audio.FakeCapture
	engine *transcriber.FakeEngine
	trn    *translator.Fake
	fetch  *fakeFetcher
}

// newHarness runs an orchestrator over fakes. Models named in ready are
// seeded into the cache so they probe as downloaded.
func newHarness(t *testing.T, cfg config.Config, ready ...string) *harness {
	t.Helper()
	return newHarnessFetch(t, cfg, &fakeFetcher{}, ready...)
}

// newHarnessFetch takes a pre-scripted fetcher so blocking or failure is in
// place before the startup download fires.
func newHarnessFetch(t *testing.T, cfg config.Config, fetch *fakeFetcher, ready ...string) *harness {
	t.Helper()
	mgr := model.NewManager(t.TempDir())
	for _, id := range ready {
		d, ok := model.ByID(id)
		if !ok {
			t.Fatalf("unknown model %q", id)
		}
		if err := os.WriteFile(mgr.Path(d), []byte("model-bytes"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	engine := transcriber.NewFakeEngine("hello world")
	selected, ok := model.ByID(cfg.Model)
	if !ok {
		t.Fatalf("unknown model %q", cfg.Model)
	}
	dev := audio.NewFakeCapture()
	sink := &fakeSink{}
	trn := translator.NewFake("translated")

	o, err := New(Options{
		Config:      cfg,
		Device:      dev,
		Transcriber: transcriber.New(engine, selected, cfg.Language),
		Models:      mgr,
		Fetcher:     fetch,
		Sink:        sink,
		NewTranslator: func(provider, apiKey, targetLanguage string) (translator.Translator, error) {
			return trn, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)
	t.Cleanup(cancel)

	return &harness{t: t, o: o, sink: sink, dev: dev, engine: engine, trn: trn, fetch: fetch}
}

// record runs one start-feed-stop cycle.
func (h *harness) record(seconds float64) {
	h.t.Helper()
	h.o.StartRecording()
	waitFor(h.t, "recording phase", func() bool { return h.sink.phase() == Recording })
	h.dev.FeedDuration(seconds, 0.5)
	h.o.StopRecording()
}

func translatingConfig() config.Config {
	cfg := config.Default()
	cfg.Translation.Enabled = true
	cfg.Translation.APIKey = "test-key"
	return cfg
}

func TestRecordTranscribeFlow(t *testing.T) {
	h := newHarness(t, config.Default(), "small")

	h.record(2.0)
	waitFor(t, "transcription", func() bool { return h.sink.transcriptCount() == 1 })

	res := h.sink.transcript(0)
	if res.Text != "hello world" {
		t.Fatalf("text = %q", res.Text)
	}
	audioS := res.AudioDuration.Seconds()
	if audioS < 1.9 || audioS > 2.1 {
		t.Fatalf("audio duration = %.2fs, want ~2.0s", audioS)
	}
	if got := h.engine.InferCalls(); got != 1 {
		t.Fatalf("infer calls = %d", got)
	}
	if got := len(h.engine.LastSamples()); got != 2*audio.SampleRate {
		t.Fatalf("sample count = %d, want %d", got, 2*audio.SampleRate)
	}
	waitFor(t, "idle phase", func() bool { return h.sink.phase() == Idle })
	if !h.sink.sawPhase(Transcribing) {
		t.Fatal("never entered transcribing phase")
	}
}

func TestTooShortRecordingSkipsTranscription(t *testing.T) {
	h := newHarness(t, config.Default(), "small")

	h.record(0.3)
	waitFor(t, "too-short status", func() bool { return h.sink.hasStatus("too short") })
	waitFor(t, "idle phase", func() bool { return h.sink.phase() == Idle })
	time.Sleep(20 * time.Millisecond)
	if got := h.engine.InferCalls(); got != 0 {
		t.Fatalf("infer calls = %d, want 0", got)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t, config.Default(), "small")

	h.o.StartRecording()
	h.o.StartRecording()
	waitFor(t, "recording phase", func() bool { return h.sink.phase() == Recording })
	time.Sleep(20 * time.Millisecond)
	if got := h.dev.StartCalls(); got != 1 {
		t.Fatalf("device starts = %d, want 1", got)
	}
}

func TestStopWhileTranscribingIgnored(t *testing.T) {
	h := newHarness(t, config.Default(), "small")
	release := h.engine.Block()
	defer release()

	h.record(1.0)
	waitFor(t, "transcribing phase", func() bool { return h.sink.phase() == Transcribing })

	h.o.StopRecording()
	h.o.StopRecording()
	time.Sleep(20 * time.Millisecond)

	release()
	waitFor(t, "transcription", func() bool { return h.sink.transcriptCount() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := h.engine.InferCalls(); got != 1 {
		t.Fatalf("infer calls = %d, want 1", got)
	}
}

func TestStaleTranscriptionDiscardedOnModelChange(t *testing.T) {
	h := newHarness(t, config.Default(), "small", "large")
	release := h.engine.Block()
	defer release()

	h.record(1.0)
	waitFor(t, "transcribing phase", func() bool { return h.sink.phase() == Transcribing })

	h.o.SelectModel("large")
	waitFor(t, "model switch", func() bool { return h.sink.hasStatus("Large") })

	release()
	waitFor(t, "idle phase", func() bool { return h.sink.phase() == Idle })
	time.Sleep(20 * time.Millisecond)
	if got := h.sink.transcriptCount(); got != 0 {
		t.Fatalf("stale result surfaced, transcripts = %d", got)
	}
}

func TestNotDownloadedModelTriggersDownload(t *testing.T) {
	h := newHarness(t, config.Default(), "small")

	h.o.SelectModel("large")
	waitFor(t, "download dispatched", func() bool { return h.fetch.Calls("large") == 1 })
	waitFor(t, "recording disabled", func() bool { return h.sink.sawEnabled(false) })

	// fetch succeeds immediately; availability flips to ready
	waitFor(t, "model ready", func() bool { return h.sink.availability("large") == model.Ready })
	waitFor(t, "recording enabled", func() bool { return h.sink.recordEnabled() })
}

func TestStartRejectedWhileModelDownloading(t *testing.T) {
	fetch := &fakeFetcher{}
	unblock := fetch.Block()
	defer unblock()
	h := newHarnessFetch(t, config.Default(), fetch) // nothing downloaded

	waitFor(t, "startup download", func() bool { return h.fetch.Calls("small") == 1 })
	h.o.StartRecording()
	waitFor(t, "rejection status", func() bool { return h.sink.hasStatus("not downloaded") })
	if got := h.dev.StartCalls(); got != 0 {
		t.Fatalf("device starts = %d, want 0", got)
	}
}

func TestSupersededDownloadCancelled(t *testing.T) {
	fetch := &fakeFetcher{}
	unblock := fetch.Block()
	defer unblock()
	h := newHarnessFetch(t, config.Default(), fetch) // "small" selected, nothing downloaded

	waitFor(t, "small download", func() bool { return h.fetch.Calls("small") == 1 })

	h.o.SelectModel("large")
	waitFor(t, "large download", func() bool { return h.fetch.Calls("large") == 1 })
	waitFor(t, "small cancelled", func() bool {
		res := h.fetch.Results("small")
		return len(res) == 1 && errors.Is(res[0], context.Canceled)
	})

	unblock()
	waitFor(t, "large ready", func() bool { return h.sink.availability("large") == model.Ready })
	if got := h.sink.availability("small"); got != model.NotDownloaded {
		t.Fatalf("small availability = %v, want not downloaded", got)
	}
	// the cancelled transfer delivers no completion, so no failure surfaces
	if h.sink.hasStatus("Model download failed") {
		t.Fatal("superseded download must not surface a failure status")
	}
	waitFor(t, "recording enabled", func() bool { return h.sink.recordEnabled() })
}

func TestDuplicateDownloadIsNoOp(t *testing.T) {
	fetch := &fakeFetcher{}
	unblock := fetch.Block()
	defer unblock()
	h := newHarnessFetch(t, config.Default(), fetch)

	waitFor(t, "small download", func() bool { return h.fetch.Calls("small") == 1 })
	h.o.SelectModel("small")
	time.Sleep(30 * time.Millisecond)
	if got := h.fetch.Calls("small"); got != 1 {
		t.Fatalf("fetch calls = %d, want 1", got)
	}
}

func TestDownloadFailureLeavesModelUnavailable(t *testing.T) {
	fetch := &fakeFetcher{}
	fetch.Fail(errors.New("network down"))
	h := newHarnessFetch(t, config.Default(), fetch)

	// startup dispatches the download for the selected model
	waitFor(t, "failure status", func() bool { return h.sink.hasStatus("download failed") })
	if got := h.sink.availability("small"); got != model.NotDownloaded {
		t.Fatalf("availability = %v, want not downloaded", got)
	}
	h.o.StartRecording()
	waitFor(t, "rejection", func() bool { return h.sink.hasStatus("not downloaded") })
}

func TestTranslationAfterTranscription(t *testing.T) {
	h := newHarness(t, translatingConfig(), "small")
	h.trn.Chunks("Bon", "jour")

	h.record(1.0)
	waitFor(t, "translation", func() bool { return h.sink.translationCount() == 1 })

	res := h.sink.translation(0)
	if res.TranslatedText != "Bonjour" {
		t.Fatalf("translated = %q", res.TranslatedText)
	}
	if got := h.trn.Received(); len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("translator received %q", got)
	}
	waitFor(t, "partials", func() bool { return len(h.sink.chunks()) == 2 })
}

func TestNoTranslationWhenDisabled(t *testing.T) {
	cfg := translatingConfig()
	cfg.Translation.Enabled = false
	h := newHarness(t, cfg, "small")

	h.record(1.0)
	waitFor(t, "transcription", func() bool { return h.sink.transcriptCount() == 1 })
	time.Sleep(30 * time.Millisecond)
	if got := h.trn.Calls(); got != 0 {
		t.Fatalf("translator calls = %d, want 0", got)
	}
}

func TestTranslationDoesNotGateRecording(t *testing.T) {
	h := newHarness(t, translatingConfig(), "small")
	release := h.trn.Block()
	defer release()

	h.record(1.0)
	waitFor(t, "first translation in flight", func() bool { return h.trn.Calls() == 1 })

	// a new recording may start while the translation is still running
	h.record(1.0)
	waitFor(t, "second translation dispatched", func() bool { return h.trn.Calls() == 2 })

	release()
	waitFor(t, "translation result", func() bool { return h.sink.translationCount() == 1 })
	time.Sleep(30 * time.Millisecond)
	// last-dispatched-wins: the superseded first result never surfaces
	if got := h.sink.translationCount(); got != 1 {
		t.Fatalf("translations surfaced = %d, want 1", got)
	}
}

func TestTranslationErrorSurfacedAsStatus(t *testing.T) {
	h := newHarness(t, translatingConfig(), "small")
	h.trn.Fail(translator.ErrTranslation)

	h.record(1.0)
	waitFor(t, "error status", func() bool { return h.sink.hasStatus("Translation error") })
	if got := h.sink.translationCount(); got != 0 {
		t.Fatalf("translations = %d, want 0", got)
	}
	waitFor(t, "idle", func() bool { return h.sink.phase() == Idle })
}

func TestTranslationEnabledWithoutKeyIsAdvisory(t *testing.T) {
	h := newHarness(t, config.Default(), "small") // no API key configured

	h.o.SetTranslation(true)
	waitFor(t, "advisory", func() bool { return h.sink.hasStatus("no API key") })

	h.record(1.0)
	waitFor(t, "transcription", func() bool { return h.sink.transcriptCount() == 1 })
	time.Sleep(30 * time.Millisecond)
	if got := h.trn.Calls(); got != 0 {
		t.Fatalf("translator calls = %d, want 0", got)
	}
}

func TestTranscriptionErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t, config.Default(), "small")
	h.engine.FailInfer(errors.New("decode blew up"))

	h.record(1.0)
	waitFor(t, "error status", func() bool { return h.sink.hasStatus("Transcription error") })
	waitFor(t, "idle", func() bool { return h.sink.phase() == Idle })
	if got := h.sink.transcriptCount(); got != 0 {
		t.Fatalf("transcripts = %d, want 0", got)
	}
}

func TestDeviceErrorLeavesIdleAndRetryable(t *testing.T) {
	h := newHarness(t, config.Default(), "small")
	h.dev.FailStart(audio.ErrDevice)

	h.o.StartRecording()
	waitFor(t, "mic error", func() bool { return h.sink.hasStatus("Microphone error") })
	if h.sink.sawPhase(Recording) {
		t.Fatal("entered recording despite device error")
	}

	h.dev.FailStart(nil)
	h.o.StartRecording()
	waitFor(t, "recording", func() bool { return h.sink.phase() == Recording })
}

func TestVolumeForwarded(t *testing.T) {
	h := newHarness(t, config.Default(), "small")

	h.record(1.0)
	waitFor(t, "volume events", func() bool { return h.sink.maxVolume() > 0.9 })
}

func TestSettingsChangedSwitchesModelAndTranslator(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.toml"
	if err := os.WriteFile(path, []byte(`model = "small"`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, cfg, "small", "large")

	updated := `
model = "large"

[translation]
enabled = true
provider = "claude"
api_key = "test-key"
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	h.o.SettingsChanged()
	waitFor(t, "reload status", func() bool { return h.sink.hasStatus("Settings reloaded") })

	h.record(1.0)
	waitFor(t, "translation after reload", func() bool { return h.sink.translationCount() == 1 })
	if got := h.engine.LastModel().ID; got != "large" {
		t.Fatalf("engine loaded model %q, want large", got)
	}
}

func TestToggleRecording(t *testing.T) {
	h := newHarness(t, config.Default(), "small")

	h.o.ToggleRecording()
	waitFor(t, "recording", func() bool { return h.sink.phase() == Recording })
	h.dev.FeedDuration(1.0, 0.5)
	h.o.ToggleRecording()
	waitFor(t, "transcription", func() bool { return h.sink.transcriptCount() == 1 })
}
