package firefox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/lotas/chatnav/internal/session"
	"github.com/lotas/chatnav/internal/types"
)

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format.
// The format is: 8-byte magic "mozLz40\x00" + 4-byte LE uint32 uncompressed size + lz4 block data.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12 // 8 magic + 4 size

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}

	// Verify magic header.
	for i := 0; i < len(mozLz4Magic); i++ {
		if data[i] != mozLz4Magic[i] {
			return nil, fmt.Errorf("mozlz4: invalid header magic")
		}
	}

	// Read uncompressed size (4-byte little-endian uint32).
	uncompressedSize := binary.LittleEndian.Uint32(data[8:12])

	// Decompress using raw lz4 block decompression.
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}

	return dst[:n], nil
}

// Raw JSON types for Firefox session file parsing.
type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries      []rawEntry `json:"entries"`
	Index        int        `json:"index"`
	LastAccessed int64      `json:"lastAccessed"`
}

type rawWindow struct {
	Tabs []rawTab `json:"tabs"`
}

type rawSession struct {
	Windows []rawWindow `json:"windows"`
}

// ParseSession parses raw JSON session data into a SessionData structure.
func ParseSession(data []byte) (*types.SessionData, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	sd := &types.SessionData{
		ParsedAt: time.Now(),
	}

	for winIdx, window := range raw.Windows {
		for tabIdx, rt := range window.Tabs {
			if len(rt.Entries) == 0 {
				continue
			}

			// index is 1-based; current page is entries[index-1].
			entryIdx := rt.Index - 1
			if entryIdx < 0 || entryIdx >= len(rt.Entries) {
				entryIdx = len(rt.Entries) - 1
			}
			entry := rt.Entries[entryIdx]

			sd.AllTabs = append(sd.AllTabs, &types.Tab{
				URL:          entry.URL,
				Title:        entry.Title,
				LastAccessed: time.UnixMilli(rt.LastAccessed),
				WindowIndex:  winIdx,
				TabIndex:     tabIdx,
			})
		}
	}

	return sd, nil
}

// Conversations picks the tabs showing a chat conversation, most recently
// used first. A conversation open in several tabs is listed once.
func Conversations(sd *types.SessionData) []types.Conversation {
	seen := make(map[string]int)
	var out []types.Conversation
	for _, tab := range sd.AllTabs {
		r, ok := session.ParseRoute(tab.URL)
		if !ok {
			continue
		}
		key := r.StoreKey()
		if i, dup := seen[key]; dup {
			if tab.LastAccessed.After(out[i].LastAccessed) {
				out[i].LastAccessed = tab.LastAccessed
				out[i].Route = r
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, types.Conversation{
			Route:        r,
			Title:        chatTitle(tab.Title),
			LastAccessed: tab.LastAccessed,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastAccessed.After(out[j].LastAccessed)
	})
	return out
}

// chatTitle drops the site suffix browsers keep in tab titles.
func chatTitle(t string) string {
	for _, suffix := range []string{" - ChatGPT", " | ChatGPT", " - DeepSeek", " - Gemini", " - Google Gemini"} {
		t = strings.TrimSuffix(t, suffix)
	}
	return strings.TrimSpace(t)
}

// ReadSessionFile reads and parses the session file of a profile
// directory, preferring recovery.jsonlz4 over previous.jsonlz4.
func ReadSessionFile(profileDir string) (*types.SessionData, error) {
	path, ok := sessionFile(profileDir)
	if !ok {
		return nil, fmt.Errorf("no session file found in %s", filepath.Join(profileDir, "sessionstore-backups"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	decompressed, err := DecompressMozLz4(data)
	if err != nil {
		return nil, fmt.Errorf("decompress session file: %w", err)
	}

	return ParseSession(decompressed)
}
