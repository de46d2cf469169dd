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

const openAIModel = "gpt-4o-mini"

type OpenAI struct {
	apiURL         string
	apiKey         string
	targetLanguage string
}

func NewOpenAI(apiKey, targetLanguage string) *OpenAI {
	return &OpenAI{
		apiURL:         "https://api.openai.com/v1/chat/completions",
		apiKey:         apiKey,
		targetLanguage: targetLanguage,
	}
}

func (o *OpenAI) Name() string { return "openai" }

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenAI) newRequest(ctx context.Context, text string, stream bool) (*http.Request, error) {
	body, err := json.Marshal(openAIRequest{
		Model: openAIModel,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt(o.targetLanguage)},
			{Role: "user", Content: text},
		},
		Stream: stream,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", o.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (o *OpenAI) Translate(ctx context.Context, text string) (Result, error) {
	req, err := o.newRequest(ctx, text, false)
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

	var or openAIResponse
	if jsonErr := json.Unmarshal(raw, &or); jsonErr == nil && or.Error != nil {
		return Result{}, fmt.Errorf("%w: openai: %s", ErrTranslation, or.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: openai API error %d: %s", ErrTranslation, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if len(or.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: openai: empty response", ErrTranslation)
	}

	return o.result(text, or.Choices[0].Message.Content), nil
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (o *OpenAI) TranslateStream(ctx context.Context, text string, onChunk func(string)) (Result, error) {
	req, err := o.newRequest(ctx, text, true)
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
		return Result{}, fmt.Errorf("%w: openai API error %d: %s", ErrTranslation, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}
		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			full.WriteString(delta)
			if onChunk != nil {
				onChunk(delta)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTranslation, err)
	}

	return o.result(text, full.String()), nil
}

func (o *OpenAI) result(original, translated string) Result {
	return Result{
		OriginalText:   original,
		TranslatedText: strings.TrimSpace(translated),
		Provider:       o.Name(),
		TargetLanguage: o.targetLanguage,
	}
}
