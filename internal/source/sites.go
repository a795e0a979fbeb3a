package source

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	selChatGPTTurn      = cascadia.MustCompile(`article[data-turn]`)
	selChatGPTRole      = cascadia.MustCompile(`[data-message-author-role]`)
	selChatGPTAssistant = cascadia.MustCompile(`[data-message-author-role="assistant"]`)

	selDeepSeekMsg     = cascadia.MustCompile(`.ds-message`)
	selDeepSeekToolbar = cascadia.MustCompile(`.ds-icon-button, .ds-icon-button__hover-bg, .ds-flex .ds-icon`)
	selDeepSeekButtons = cascadia.MustCompile(`[role="button"], button, [tabindex]`)
	selDeepSeekIcon    = cascadia.MustCompile(`.ds-icon`)

	// Gemini user bubbles, most specific first. The first selector that
	// finds any text wins.
	selGeminiUser = []string{
		`.user-query-bubble-with-background`,
		`.user-query-container.right-align-content`,
		`user-query`,
	}
	selGeminiAny      = cascadia.MustCompile(`user-query, .user-query-bubble-with-background, model-response`)
	selGeminiQueryRow = cascadia.MustCompile(`.query-text .query-text-line`)
)

// extractChatGPT reads article[data-turn] turns, falling back to the older
// data-message-author-role markup.
func extractChatGPT(doc *html.Node) []Turn {
	var turns []Turn
	for _, art := range cascadia.QueryAll(doc, selChatGPTTurn) {
		role := Role(attr(art, "data-turn"))
		body := art
		if role == RoleAssistant {
			if n := cascadia.Query(art, selChatGPTAssistant); n != nil {
				body = n
			}
		}
		turns = append(turns, Turn{
			Role: role,
			ID:   attr(art, "data-turn-id"),
			Text: textContent(art),
			Body: blockText(body),
		})
	}
	if len(turns) > 0 {
		return turns
	}
	for _, n := range cascadia.QueryAll(doc, selChatGPTRole) {
		role := Role(attr(n, "data-message-author-role"))
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		turns = append(turns, Turn{
			Role: role,
			ID:   attr(n, "data-message-id"),
			Text: textContent(n),
			Body: blockText(n),
		})
	}
	return turns
}

// extractDeepSeek reads .ds-message nodes. User messages are the ones
// followed by an action toolbar.
func extractDeepSeek(doc *html.Node) []Turn {
	var turns []Turn
	for _, n := range cascadia.QueryAll(doc, selDeepSeekMsg) {
		role := RoleAssistant
		if deepSeekIsUser(n) {
			role = RoleUser
		}
		turns = append(turns, Turn{
			Role: role,
			ID:   attr(n, "data-turn-id"),
			Text: textContent(n),
			Body: blockText(n),
		})
	}
	return turns
}

func deepSeekIsUser(n *html.Node) bool {
	next := nextElementSibling(n)
	if next == nil {
		return false
	}
	if cascadia.Query(next, selDeepSeekToolbar) != nil {
		return true
	}
	for _, b := range cascadia.QueryAll(next, selDeepSeekButtons) {
		if cascadia.Query(b, selDeepSeekIcon) != nil {
			return true
		}
	}
	return false
}

// extractGemini interleaves user bubbles with model-response elements in
// document order.
func extractGemini(doc *html.Node) []Turn {
	userSel := ""
	for _, s := range selGeminiUser {
		for _, n := range cascadia.QueryAll(doc, cascadia.MustCompile(s)) {
			if geminiHasText(n) {
				userSel = s
				break
			}
		}
		if userSel != "" {
			break
		}
	}

	group := "model-response"
	if userSel != "" {
		group = userSel + ", model-response"
	}
	isUser := func(*html.Node) bool { return false }
	if userSel != "" {
		m := cascadia.MustCompile(userSel)
		isUser = m.Match
	}

	var turns []Turn
	for _, n := range cascadia.QueryAll(doc, cascadia.MustCompile(group)) {
		if isUser(n) {
			if !geminiHasText(n) {
				continue
			}
			turns = append(turns, Turn{
				Role: RoleUser,
				ID:   attr(n, "data-turn-id"),
				Text: textContent(n),
				Body: blockText(n),
			})
			continue
		}
		turns = append(turns, Turn{Role: RoleAssistant, Text: textContent(n), Body: blockText(n)})
	}
	return turns
}

func geminiHasText(n *html.Node) bool {
	if line := cascadia.Query(n, selGeminiQueryRow); line != nil && strings.TrimSpace(textContent(line)) != "" {
		return true
	}
	return strings.TrimSpace(textContent(n)) != ""
}
