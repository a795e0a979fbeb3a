package transcript

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/lotas/chatnav/internal/session"
	"github.com/lotas/chatnav/internal/source"
	"github.com/lotas/chatnav/internal/types"
	"github.com/lotas/chatnav/internal/virtualize"
)

// File is a conversation read from disk or fetched once. It is both the
// Navigator and the Binder of a session: the route only changes when the
// file is replaced by another conversation.
type File struct {
	path        string
	src         *Source
	host        *Host
	target      virtualize.Target
	trackHeight func() float64
	navs        chan string

	mu     sync.Mutex
	conv   *source.Conversation
	url    string
	width  int
	height int
}

// NewFile lays c out at a default size. path may be empty for fetched
// pages.
func NewFile(c *source.Conversation, path string, target virtualize.Target, trackHeight func() float64) *File {
	if target == nil {
		target = virtualize.Discard
	}
	f := &File{
		path:        path,
		target:      target,
		trackHeight: trackHeight,
		navs:        make(chan string, 1),
		conv:        c,
		url:         RouteURL(c, path),
		width:       80,
		height:      24,
	}
	doc := Layout(c, f.width)
	f.src = NewSource(doc)
	f.host = NewHost(float64(f.height), float64(doc.Height()))
	return f
}

// RouteURL is the conversation URL of c. Pages saved without one get a
// stable synthetic URL derived from where they were loaded from, so their
// stars and labels persist.
func RouteURL(c *source.Conversation, path string) string {
	if _, ok := session.ParseRoute(c.URL); ok {
		return c.URL
	}
	key := c.URL
	if key == "" {
		if abs, err := filepath.Abs(path); err == nil {
			key = "file://" + abs
		} else {
			key = "file://" + path
		}
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
	switch c.Provider {
	case types.ProviderDeepSeek:
		return "https://chat.deepseek.com/a/chat/s/" + id
	case types.ProviderGemini:
		return "https://gemini.google.com/app/" + id
	default:
		return "https://chatgpt.com/c/" + id
	}
}

// URL implements session.Navigator.
func (f *File) URL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}

// Navigations implements session.Navigator.
func (f *File) Navigations() <-chan string { return f.navs }

// Bind implements session.Binder.
func (f *File) Bind(_ context.Context, _ types.Route) (session.Page, error) {
	th := 0.0
	if f.trackHeight != nil {
		th = f.trackHeight()
	}
	return session.Page{Source: f.src, Host: f.host, Target: f.target, TrackHeight: th}, nil
}

func (f *File) Source() *Source { return f.src }

func (f *File) Host() *Host { return f.host }

func (f *File) Path() string { return f.path }

// Conversation returns the conversation being shown.
func (f *File) Conversation() *source.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conv
}

// Resize fits the transcript to a pane. It reports whether the layout
// changed, in which case the engine needs ContentChanged.
func (f *File) Resize(width, height int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	relaid := width != f.width
	f.width, f.height = width, height
	doc := f.src.Document()
	if relaid {
		doc = Layout(f.conv, width)
		f.src.SetDocument(doc)
	}
	f.host.Resize(float64(height), float64(doc.Height()))
	return relaid
}

// Reload replaces the conversation after the file changed on disk.
func (f *File) Reload(c *source.Conversation) {
	f.mu.Lock()
	f.conv = c
	doc := Layout(c, f.width)
	f.src.SetDocument(doc)
	f.host.Resize(float64(f.height), float64(doc.Height()))
	u := RouteURL(c, f.path)
	moved := u != f.url
	f.url = u
	f.mu.Unlock()

	if !moved {
		return
	}
	// Latest wins: drop a navigation nobody has read yet.
	select {
	case <-f.navs:
	default:
	}
	f.navs <- u
}

// VisibleIDs returns the ids of user turns intersecting the viewport.
func (f *File) VisibleIDs() []string {
	doc := f.src.Document()
	nodes := f.src.UserMessageNodes()
	top := f.host.ScrollTop()
	bottom := top + f.host.ViewportHeight()

	var ids []string
	k := 0
	for i, t := range doc.Conversation.Turns {
		if t.Role != source.RoleUser {
			continue
		}
		if k >= len(nodes) {
			break
		}
		n := nodes[k]
		k++
		end := doc.Height()
		if i+1 < len(doc.Starts) {
			end = doc.Starts[i+1]
		}
		if float64(end) <= top || float64(doc.Starts[i]) >= bottom {
			continue
		}
		if id := n.TurnID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
