package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const maxTextLen = 8000

const systemPrompt = `This is part of a chat navigator that helps users move between their messages in a conversation with an AI chatbot.
Condense the user's message into a short headline for navigation, instead of showing its first few words.
Describe what the user is REQUESTING from the chatbot. Describe the task or question; do NOT answer it and do NOT produce the output.
Maximum 50-60 characters. Ultra-concise, plain text.

Examples:
Input: "Assume a couple decides to keep having children until they have one of each sex. What is the expected number of children?"
Output: Expected kids for couple until one of each sex?

Input: "plan build a chrome extension about summarizing chat history with ai and then into bullet points or mindmaps"
Output: Chrome ext: AI chat summary to bullets/mindmaps

Input: "are there still bugs? why it said timed out"
Output: Bugs still exist? Why timed out?

Input: "write a prompt that can generate this image"
Output: Write prompt to generate image

Rules:
- Target ~60 characters, max 80-90 characters
- No meta-language like "User asks", "User wants", "Question about"
- Use abbreviations (ext, API, etc)
- One line, plain text, no markdown`

const promptTemplate = `Summarize the request directly. Target ~60 chars, max 80 chars. Ultra-concise. Use abbrevs. Don't answer. Plain text only. Complete sentence, no ellipsis. No meta-language.

Text: %s

Summary:`

type ollamaRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

type ollamaTags struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// OllamaSummarize sends text to an Ollama instance and returns the raw
// headline it generated.
func OllamaSummarize(ctx context.Context, model, host, text string) (string, error) {
	if len(text) > maxTextLen {
		text = text[:maxTextLen]
	}

	reqBody := ollamaRequest{
		Model:  model,
		System: systemPrompt,
		Prompt: fmt.Sprintf(promptTemplate, text),
		Stream: false,
		Options: map[string]any{
			"temperature": 0.2,
			"top_p":       0.8,
			"top_k":       40,
			"num_predict": 64,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned HTTP %d", resp.StatusCode)
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}

	return result.Response, nil
}

// OllamaHasModel reports whether the Ollama instance at host answers and
// has model pulled. A model name without a tag matches any tag.
func OllamaHasModel(ctx context.Context, host, model string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ollama returned HTTP %d", resp.StatusCode)
	}
	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("decode ollama tags: %w", err)
	}
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name == model || (!strings.Contains(model, ":") && strings.HasPrefix(name, model+":")) {
			return true, nil
		}
	}
	return false, nil
}
