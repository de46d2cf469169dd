package transcriber

import (
	"sync"

	"github.com/LivingInDrm/voice-assistant/model"
)

// FakeEngine is a scripted backend for tests. Call counters double as the
// single-flight instrumentation the orchestrator tests assert on.
type FakeEngine struct {
	mu         sync.Mutex
	text       string
	language   string
	loadErr    error
	inferErr   error
	loadCalls  int
	inferCalls int
	lastModel  model.Descriptor
	lastSample []float32
	block      chan struct{} // when non-nil, Infer waits until it closes
}

func NewFakeEngine(text string) *FakeEngine {
	return &FakeEngine{text: text}
}

func (f *FakeEngine) FailLoad(err error) { f.mu.Lock(); f.loadErr = err; f.mu.Unlock() }
func (f *FakeEngine) FailInfer(err error) { f.mu.Lock(); f.inferErr = err; f.mu.Unlock() }

// Block makes Infer wait; the returned func releases it and is safe to
// call more than once.
func (f *FakeEngine) Block() func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *FakeEngine) Load(d model.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	f.lastModel = d
	return f.loadErr
}

func (f *FakeEngine) Infer(samples []float32, sampleRate int, language string) (Output, error) {
	f.mu.Lock()
	f.inferCalls++
	f.lastSample = samples
	block := f.block
	text := f.text
	inferErr := f.inferErr
	lang := f.language
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if inferErr != nil {
		return Output{}, inferErr
	}
	if lang == "" {
		lang = language
	}
	return Output{Text: text, Language: lang}, nil
}

func (f *FakeEngine) LoadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCalls
}

func (f *FakeEngine) InferCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inferCalls
}

func (f *FakeEngine) LastModel() model.Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastModel
}

func (f *FakeEngine) LastSamples() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSample
}
