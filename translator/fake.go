package translator

import (
	"context"
	"strings"
	"sync"
)

// Fake is a scripted in-process translator for tests.
type Fake struct {
	mu       sync.Mutex
	text     string
	chunks   []string
	err      error
	calls    int
	received []string
	block    chan struct{}
}

func NewFake(text string) *Fake {
	return &Fake{text: text}
}

func (f *Fake) Name() string { return "fake" }

// Return makes subsequent calls translate to text.
func (f *Fake) Return(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
}

// Chunks scripts the partials emitted by TranslateStream. The joined
// chunks become the final text.
func (f *Fake) Chunks(chunks ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = chunks
	f.text = strings.Join(chunks, "")
}

// Fail makes subsequent calls return err.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Block makes calls wait until the returned release func is invoked or
// the call's context is cancelled.
func (f *Fake) Block() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	ch := f.block
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Received reports the texts passed in, in call order.
func (f *Fake) Received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func (f *Fake) Translate(ctx context.Context, text string) (Result, error) {
	return f.run(ctx, text, nil)
}

func (f *Fake) TranslateStream(ctx context.Context, text string, onChunk func(string)) (Result, error) {
	return f.run(ctx, text, onChunk)
}

func (f *Fake) run(ctx context.Context, text string, onChunk func(string)) (Result, error) {
	f.mu.Lock()
	f.calls++
	f.received = append(f.received, text)
	block := f.block
	chunks := f.chunks
	out := f.text
	err := f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if err != nil {
		return Result{}, err
	}
	if onChunk != nil {
		for _, c := range chunks {
			onChunk(c)
		}
	}
	return Result{
		OriginalText:   text,
		TranslatedText: out,
		Provider:       f.Name(),
		TargetLanguage: "English",
	}, nil
}
