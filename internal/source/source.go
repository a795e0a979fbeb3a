// Package source extracts the turns of a chat conversation from a page
// saved by, or fetched from, one of the supported chat sites.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/lotas/chatnav/internal/types"
)

// Role says who wrote a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role Role
	// ID is the site's turn id, if the page carries one.
	ID string
	// Text is the raw text content, the input for marker labels and ids.
	Text string
	// Body is the text with block structure kept, for display.
	Body string
}

// Conversation is a parsed conversation page.
type Conversation struct {
	Provider types.Provider
	URL      string
	Title    string
	Turns    []Turn
}

// UserTurns returns the indexes of the user turns.
func (c *Conversation) UserTurns() []int {
	var out []int
	for i, t := range c.Turns {
		if t.Role == RoleUser {
			out = append(out, i)
		}
	}
	return out
}

// ErrUnknownPage is returned for pages that look like none of the supported
// chat sites.
var ErrUnknownPage = errors.New("not a recognised chat page")

type extractor func(doc *html.Node) []Turn

var extractors = map[types.Provider]extractor{
	types.ProviderChatGPT:  extractChatGPT,
	types.ProviderDeepSeek: extractDeepSeek,
	types.ProviderGemini:   extractGemini,
}

var (
	selTitle     = cascadia.MustCompile("title")
	selCanonical = cascadia.MustCompile(`link[rel="canonical"], meta[property="og:url"]`)
	savedFromRe  = regexp.MustCompile(`saved from url=\(\d+\)(\S+)`)
)

// Parse extracts the conversation from page HTML. provider may be empty,
// in which case it is detected from the page URL or its markup.
func Parse(data []byte, provider types.Provider, pageURL string) (*Conversation, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	if pageURL == "" {
		pageURL = documentURL(doc)
	}
	if provider == "" {
		provider = detectProvider(doc, pageURL)
	}
	extract, ok := extractors[provider]
	if !ok {
		return nil, ErrUnknownPage
	}

	return &Conversation{
		Provider: provider,
		URL:      pageURL,
		Title:    documentTitle(data, doc),
		Turns:    extract(doc),
	}, nil
}

// ParseFile reads and parses a saved page.
func ParseFile(path string, provider types.Provider) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c, err := Parse(data, provider, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// documentURL finds where a saved page came from: the canonical link, the
// og:url meta tag, or the "saved from url" comment browsers add.
func documentURL(doc *html.Node) string {
	if n := cascadia.Query(doc, selCanonical); n != nil {
		if v := attr(n, "href"); v != "" {
			return v
		}
		if v := attr(n, "content"); v != "" {
			return v
		}
	}
	var found string
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.CommentNode {
			if m := savedFromRe.FindStringSubmatch(n.Data); m != nil {
				found = m[1]
				return false
			}
		}
		return true
	})
	return found
}

func detectProvider(doc *html.Node, pageURL string) types.Provider {
	if pageURL != "" {
		if p, ok := providerForURL(pageURL); ok {
			return p
		}
	}
	switch {
	case cascadia.Query(doc, selChatGPTTurn) != nil, cascadia.Query(doc, selChatGPTRole) != nil:
		return types.ProviderChatGPT
	case cascadia.Query(doc, selDeepSeekMsg) != nil:
		return types.ProviderDeepSeek
	case cascadia.Query(doc, selGeminiAny) != nil:
		return types.ProviderGemini
	}
	return ""
}

// documentTitle prefers readability's title, which strips the site name
// suffix browsers keep in <title>.
func documentTitle(data []byte, doc *html.Node) string {
	if article, err := readability.FromReader(bytes.NewReader(data), nil); err == nil {
		if t := strings.TrimSpace(article.Title); t != "" {
			return t
		}
	}
	if n := cascadia.Query(doc, selTitle); n != nil {
		return strings.TrimSpace(textContent(n))
	}
	return ""
}

func providerForURL(raw string) (types.Provider, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return types.ProviderForHost(u.Host)
}
