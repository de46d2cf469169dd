package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrTranslation wraps transport, auth, and provider failures. One request,
// no retries; the caller decides whether to try again.
var ErrTranslation = errors.New("translation failed")

const systemPromptTemplate = `You are a professional translator.
Translate the following text to %s.
Only output the translation, no explanations or additional text.
Maintain the original tone and style.`

// Result is the immutable outcome of one translation job.
type Result struct {
	OriginalText   string
	TranslatedText string
	Provider       string
	TargetLanguage string
}

// Translator is one remote LLM backend. Both providers share this contract;
// only transport specifics differ.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text string) (Result, error)
	// TranslateStream yields partial text through onChunk before returning
	// the terminal result. onChunk runs on the job worker.
	TranslateStream(ctx context.Context, text string, onChunk func(string)) (Result, error)
}

// Hardening, not required by the providers: a request that never returns
// would otherwise hang its worker forever.
const requestTimeout = 60 * time.Second

var httpClient = &http.Client{Timeout: requestTimeout}

func systemPrompt(targetLanguage string) string {
	return fmt.Sprintf(systemPromptTemplate, targetLanguage)
}

// New constructs the configured provider backend.
func New(provider, apiKey, targetLanguage string) (Translator, error) {
	switch provider {
	case "claude":
		return NewClaude(apiKey, targetLanguage), nil
	case "openai":
		return NewOpenAI(apiKey, targetLanguage), nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q", provider)
	}
}
