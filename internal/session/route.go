package session

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/lotas/chatnav/internal/types"
)

var slugRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseRoute recognises a conversation page. It returns false for other
// pages of a supported site and for unsupported sites.
func ParseRoute(raw string) (types.Route, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return types.Route{}, false
	}
	p, ok := types.ProviderForHost(u.Host)
	if !ok {
		return types.Route{}, false
	}
	id := ConversationID(p, u.Path)
	if id == "" {
		return types.Route{}, false
	}
	return types.Route{Provider: p, ConversationID: id, URL: raw}, true
}

// ConversationID extracts the conversation id from a provider path, or "".
func ConversationID(p types.Provider, path string) string {
	segs := splitPath(path)
	switch p {
	case types.ProviderChatGPT:
		// Nested routes such as /g/<gpt>/c/<id> count too.
		return slugAfter(segs, "c")
	case types.ProviderDeepSeek:
		return slugAfter(segs, "s")
	case types.ProviderGemini:
		if i := indexOf(segs, "app"); i >= 0 {
			return slugAt(segs, i+1)
		}
		// /gem/<gem>/<id>: the conversation is the last segment.
		if i := indexOf(segs, "gem"); i >= 0 && len(segs) > i+1 {
			return slugAt(segs, len(segs)-1)
		}
	}
	return ""
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func indexOf(segs []string, name string) int {
	for i, s := range segs {
		if s == name {
			return i
		}
	}
	return -1
}

func slugAfter(segs []string, name string) string {
	i := indexOf(segs, name)
	if i < 0 {
		return ""
	}
	return slugAt(segs, i+1)
}

func slugAt(segs []string, i int) string {
	if i >= len(segs) || !slugRe.MatchString(segs[i]) {
		return ""
	}
	return segs[i]
}
