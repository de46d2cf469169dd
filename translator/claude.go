package translator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const claudeModel = "claude-sonnet-4-20250514"

type Claude struct {
	apiURL         string
	apiKey         string
	targetLanguage string
}

func NewClaude(apiKey, targetLanguage string) *Claude {
	return &Claude{
		apiURL:         "https://api.anthropic.com/v1/messages",
		apiKey:         apiKey,
		targetLanguage: targetLanguage,
	}
}

func (c *Claude) Name() string { return "claude" }

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Messages  []claudeMessage `json:"messages"`
	Stream    bool            `json:"stream,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Claude) newRequest(ctx context.Context, text string, stream bool) (*http.Request, error) {
	body, err := json.Marshal(claudeRequest{
		Model:     claudeModel,
		MaxTokens: 1024,
		System:    systemPrompt(c.targetLanguage),
		Messages:  []claudeMessage{{Role: "user", Content: text}},
		Stream:    stream,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Claude) Translate(ctx context.Context, text string) (Result, error) {
	req, err := c.newRequest(ctx, text, false)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}

	var cr claudeResponse
	if jsonErr := json.Unmarshal(raw, &cr); jsonErr == nil && cr.Error != nil {
		return Result{}, fmt.Errorf("%w: claude: %s", ErrTranslation, cr.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: claude API error %d: %s", ErrTranslation, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if len(cr.Content) == 0 {
		return Result{}, fmt.Errorf("%w: claude: empty response", ErrTranslation)
	}

	return c.result(text, cr.Content[0].Text), nil
}

type claudeStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Claude) TranslateStream(ctx context.Context, text string, onChunk func(string)) (Result, error) {
	req, err := c.newRequest(ctx, text, true)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("%w: claude API error %d: %s", ErrTranslation, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev claudeStreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		if ev.Error != nil {
			return Result{}, fmt.Errorf("%w: claude: %s", ErrTranslation, ev.Error.Message)
		}
		if ev.Type == "content_block_delta" && ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
			full.WriteString(ev.Delta.Text)
			if onChunk != nil {
				onChunk(ev.Delta.Text)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}

	return c.result(text, full.String()), nil
}

func (c *Claude) result(original, translated string) Result {
	return Result{
		OriginalText:   original,
		TranslatedText: strings.TrimSpace(translated),
		Provider:       c.Name(),
		TargetLanguage: c.targetLanguage,
	}
}
