// Package summarize turns user messages into short headline labels with a
// local Ollama model.
package summarize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/lotas/chatnav/internal/applog"
)

const (
	// MinChars is the length up to which a message is its own label.
	MinChars = 50
	// MaxChars is the label length past which it is cut at a word boundary.
	MaxChars = 90
	// fallbackChars bounds the truncated original used when the model
	// returns nothing usable.
	fallbackChars = 100
)

// Cache stores labels across runs, keyed by content hash and model.
type Cache interface {
	CachedSummary(hash, model string) (string, error)
	PutSummary(hash, model, label string) error
}

// Config holds configuration for the headline summarizer.
type Config struct {
	Model      string
	OllamaHost string
	Cache      Cache
}

// Headliner labels messages through Ollama. It implements the engine's
// summarizer contract.
type Headliner struct {
	cfg Config

	mu     sync.Mutex
	memory map[string]string

	generate func(ctx context.Context, model, host, text string) (string, error)
}

// New returns a Headliner for cfg.
func New(cfg Config) *Headliner {
	return &Headliner{cfg: cfg, memory: make(map[string]string), generate: OllamaSummarize}
}

// Available reports whether the configured model can be reached.
func (h *Headliner) Available(ctx context.Context) bool {
	ok, err := OllamaHasModel(ctx, h.cfg.OllamaHost, h.cfg.Model)
	if err != nil {
		applog.Error("summarize.available", err, "host", h.cfg.OllamaHost)
		return false
	}
	if !ok {
		applog.Info("summarize.model_missing", "model", h.cfg.Model)
	}
	return ok
}

var (
	pdfPrefix   = regexp.MustCompile(`(?i)^\[([^\]]+\.pdf)\]\s*`)
	lineBreaks  = regexp.MustCompile(`\s*[\r\n]+\s*`)
	spaces      = regexp.MustCompile(`\s+`)
	trailingEll = regexp.MustCompile(`[….]{1,3}$`)
)

// Summarize returns a headline for text. Short messages come back as they
// are. Errors from the model are returned so the caller can keep the
// original text.
func (h *Headliner) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if utf8.RuneCountInString(text) <= MinChars {
		return text, nil
	}

	key := ContentHash(text)
	if label, ok := h.cached(key); ok {
		return label, nil
	}

	// Attachment markers are kept out of the prompt and put back after.
	body, prefix := text, ""
	if rest, ok := strings.CutPrefix(text, "[IMAGE]"); ok {
		body, prefix = strings.TrimSpace(rest), "[IMAGE]"
	} else if m := pdfPrefix.FindStringSubmatch(text); m != nil {
		body, prefix = text[len(m[0]):], "["+m[1]+"]"
	}

	raw, err := h.generate(ctx, h.cfg.Model, h.cfg.OllamaHost, body)
	if err != nil {
		return "", err
	}
	label := Clean(raw)
	if label == "" {
		label = Truncate(body, fallbackChars)
	}
	if prefix != "" {
		label = prefix + " " + label
	}
	h.store(key, label)
	return label, nil
}

func (h *Headliner) cached(key string) (string, bool) {
	h.mu.Lock()
	label, ok := h.memory[key]
	h.mu.Unlock()
	if ok {
		return label, true
	}
	if h.cfg.Cache == nil {
		return "", false
	}
	label, err := h.cfg.Cache.CachedSummary(key, h.cfg.Model)
	if err != nil {
		applog.Error("summarize.cache_get", err)
		return "", false
	}
	if label == "" {
		return "", false
	}
	h.mu.Lock()
	h.memory[key] = label
	h.mu.Unlock()
	return label, true
}

func (h *Headliner) store(key, label string) {
	h.mu.Lock()
	h.memory[key] = label
	h.mu.Unlock()
	if h.cfg.Cache == nil {
		return
	}
	if err := h.cfg.Cache.PutSummary(key, h.cfg.Model, label); err != nil {
		applog.Error("summarize.cache_put", err)
	}
}

// ContentHash keys the label cache.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:12])
}

// Clean flattens model output to one line, drops a trailing ellipsis and
// cuts labels longer than MaxChars at the last word boundary, as long as
// that keeps most of the label.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = lineBreaks.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	s = strings.Trim(s, "\"'`*")
	s = strings.TrimSpace(trailingEll.ReplaceAllString(s, ""))

	r := []rune(s)
	if len(r) > MaxChars {
		head := string(r[:MaxChars+1])
		if i := strings.LastIndex(head, " "); i >= 0 && utf8.RuneCountInString(head[:i]) > MaxChars*7/10 {
			s = strings.TrimSpace(head[:i])
		}
	}
	return s
}

// Truncate shortens text to max runes with an ellipsis.
func Truncate(text string, max int) string {
	s := strings.TrimSpace(spaces.ReplaceAllString(text, " "))
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimRight(string(r[:max]), " ") + "…"
}
