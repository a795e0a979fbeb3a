package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lotas/chatnav/internal/applog"
	"github.com/lotas/chatnav/internal/config"
	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/export"
	"github.com/lotas/chatnav/internal/firefox"
	"github.com/lotas/chatnav/internal/server"
	"github.com/lotas/chatnav/internal/session"
	"github.com/lotas/chatnav/internal/source"
	"github.com/lotas/chatnav/internal/storage"
	"github.com/lotas/chatnav/internal/summarize"
	"github.com/lotas/chatnav/internal/transcript"
	"github.com/lotas/chatnav/internal/tui"
	"github.com/lotas/chatnav/internal/types"
	"github.com/lotas/chatnav/internal/virtualize"
)

func main() {
	home, _ := os.UserHomeDir()
	if err := applog.Init(filepath.Join(home, ".local", "share", "chatnav")); err == nil {
		defer applog.Close()
	}
	applog.SetDebug(os.Getenv("CHATNAV_DEBUG") == "1")

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "view":
			runTUI(args[1:], false)
			return
		case "live":
			runTUI(args[1:], true)
			return
		case "conversations":
			runConversations(args[1:])
			return
		case "export":
			runExport(args[1:])
			return
		case "summarize":
			runSummarize(args[1:])
			return
		case "summaries":
			runSummaries(args[1:])
			return
		case "settings":
			runSettings(args[1:])
			return
		case "profiles":
			runProfiles()
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}
	runTUI(args, false)
}

func printHelp() {
	fmt.Print(`chatnav · timeline navigator for ChatGPT, DeepSeek and Gemini conversations

Usage:
  chatnav [view] [<file|url>]                         Start the TUI (default)
    --profile <name>       Firefox profile for the conversation picker
    --provider <name>      Force the site: chatgpt, deepseek or gemini
    --port <n>             WebSocket port for live mode (default: 19192)

  chatnav live                                         Follow the browser through the extension
    --port <n>             WebSocket port (default: 19192)

  chatnav conversations                                List open and known conversations
    --profile <name>       Firefox profile name

  chatnav export <file|url>                            Export the timeline to stdout or file
    --json                 Export as JSON instead of markdown
    --out <file>           Output file path (default: stdout)
    --provider <name>      Force the site

  chatnav summarize <file|url>                         Generate AI labels via Ollama
    --model <name>         Ollama model (env: CHATNAV_MODEL, default: llama3.2)
    --provider <name>      Force the site

  chatnav summaries clear [--yes]                      Drop every stored AI label

  chatnav settings                                     Show timeline settings
  chatnav settings timeline|ai|chatgpt|deepseek|gemini on|off

  chatnav profiles                                     List Firefox profiles

Environment:
  CHATNAV_CONFIG    Config file (default: ~/.config/chatnav/config.yaml)
  CHATNAV_DB        Database file (default: ~/.local/share/chatnav/chatnav.db)
  CHATNAV_MODEL     Default Ollama model (overridden by --model flag)
  CHATNAV_PROFILE   Default Firefox profile (overridden by --profile flag)
  CHATNAV_DEBUG     Set to 1 for debug logging
  OLLAMA_HOST       Ollama server URL (default: http://localhost:11434)
`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() *config.Config {
	path := os.Getenv("CHATNAV_CONFIG")
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		fatal(err)
	}
	if v := os.Getenv("CHATNAV_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Ollama = v
	}
	if v := os.Getenv("CHATNAV_DB"); v != "" {
		cfg.DB = v
	}
	return cfg
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	path := cfg.DB
	if path == "" {
		p, err := storage.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return storage.Open(path)
}

func newSummarizer(cfg *config.Config, store *storage.Store) *summarize.Headliner {
	sc := summarize.Config{Model: cfg.Model, OllamaHost: cfg.Ollama}
	if store != nil {
		sc.Cache = store
	}
	return summarize.New(sc)
}

func parseProvider(name string) (types.Provider, error) {
	if name == "" {
		return "", nil
	}
	for _, p := range types.Providers {
		if string(p) == strings.ToLower(name) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q (want chatgpt, deepseek or gemini)", name)
}

// loadConversation reads a saved page or fetches a URL. The returned path
// is empty for URLs.
func loadConversation(ctx context.Context, arg string, provider types.Provider) (*source.Conversation, string, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		c, err := source.Fetch(ctx, arg)
		if err != nil {
			return nil, "", err
		}
		return c, "", nil
	}
	c, err := source.ParseFile(arg, provider)
	if err != nil {
		return nil, "", err
	}
	return c, arg, nil
}

func runTUI(args []string, liveMode bool) {
	fs := flag.NewFlagSet("chatnav", flag.ExitOnError)
	profileName := fs.String("profile", "", "Firefox profile for the conversation picker")
	providerName := fs.String("provider", "", "Force the site: chatgpt, deepseek or gemini")
	port := fs.Int("port", 0, "WebSocket port for live mode")
	fs.Parse(reorderArgs(args))

	cfg := loadConfig()
	if *port > 0 {
		cfg.Server.Port = *port
	}
	provider, err := parseProvider(*providerName)
	if err != nil {
		fatal(err)
	}

	store, err := openStore(cfg)
	if err != nil {
		fatal(fmt.Errorf("open database: %w", err))
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := store.Watch(ctx, time.Second); err != nil {
			applog.Error("store.watch", err)
		}
	}()

	opts := tui.Options{
		Config:     cfg,
		Store:      store,
		Summarizer: newSummarizer(cfg, store),
		Server:     server.New(cfg.Server.Port),
		Live:       liveMode,
	}
	opts.ExportDir, _ = os.Getwd()

	switch {
	case liveMode:
	case fs.NArg() > 0:
		c, path, err := loadConversation(ctx, fs.Arg(0), provider)
		if err != nil {
			fatal(err)
		}
		opts.Conversation, opts.Path = c, path
	default:
		opts.Conversations = pickerConversations(store, resolveProfileName(*profileName))
	}

	p := tea.NewProgram(tui.NewModel(opts), tea.WithAltScreen(), tea.WithMouseAllMotion())
	final, err := p.Run()
	if m, ok := final.(tui.Model); ok {
		m.Shutdown()
	}
	if err != nil {
		fatal(err)
	}
}

// pickerConversations merges the chat tabs open in Firefox with the
// conversations the timeline has already seen.
func pickerConversations(store *storage.Store, profileName string) []types.Conversation {
	var convs []types.Conversation
	seen := make(map[string]bool)
	if open, err := openConversations(profileName); err != nil {
		applog.Error("picker.firefox", err)
	} else {
		for _, c := range open {
			seen[c.StoreKey()] = true
			convs = append(convs, c)
		}
	}
	known, err := store.ListConversations(50)
	if err != nil {
		applog.Error("picker.known", err)
		return convs
	}
	for _, k := range known {
		if !seen[k.StoreKey()] {
			convs = append(convs, k.Conversation)
		}
	}
	return convs
}

func openConversations(profileName string) ([]types.Conversation, error) {
	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		return nil, fmt.Errorf("discover profiles: %w", err)
	}
	profile, err := firefox.SelectProfile(profiles, profileName)
	if err != nil {
		return nil, err
	}
	sd, err := firefox.ReadSessionFile(profile.Path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	return firefox.Conversations(sd), nil
}

func runConversations(args []string) {
	fs := flag.NewFlagSet("conversations", flag.ExitOnError)
	profileName := fs.String("profile", "", "Firefox profile name")
	fs.Parse(args)

	open, err := openConversations(resolveProfileName(*profileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	fmt.Print(export.ConversationList(open))

	store, err := openStore(loadConfig())
	if err != nil {
		fatal(fmt.Errorf("open database: %w", err))
	}
	defer store.Close()
	known, err := store.ListConversations(0)
	if err != nil {
		fatal(err)
	}
	if len(known) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Known conversations:")
	for _, k := range known {
		title := k.Title
		if title == "" {
			title = k.ConversationID
		}
		line := fmt.Sprintf("  %-9s %s · %d messages", k.Provider, title, k.MessageCount)
		if k.Starred > 0 {
			line += fmt.Sprintf(" · %d starred", k.Starred)
		}
		if k.Summarized {
			line += " · AI labels"
		}
		fmt.Println(line)
	}
}

func runProfiles() {
	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		fatal(fmt.Errorf("discover Firefox profiles: %w", err))
	}
	if len(profiles) == 0 {
		fmt.Fprintln(os.Stderr, "No Firefox profiles found.")
		os.Exit(1)
	}
	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}

// openTimeline runs an engine over a conversation without a display.
func openTimeline(c *source.Conversation, path string, cfg *config.Config, store *storage.Store, sum engine.Summarizer) (*engine.Engine, types.Route) {
	f := transcript.NewFile(c, path, virtualize.Discard, nil)
	r, _ := session.ParseRoute(f.URL())

	opts := cfg.EngineOptions()
	opts.ConversationID = r.StoreKey()
	opts.Summarizer = sum
	if store != nil {
		opts.Store = store
		if st, err := store.LoadSettings(); err == nil {
			opts.DisableAI = !st.AIModeEnabled
		}
	}
	e := engine.New(f.Source(), f.Host(), virtualize.Discard, opts)
	e.Resize(f.Host().ViewportHeight())
	e.Start()
	return e, r
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "Export as JSON instead of markdown")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	providerName := fs.String("provider", "", "Force the site")
	fs.Parse(reorderArgs(args))
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: chatnav export <file|url> [--json] [--out file]")
		os.Exit(1)
	}

	cfg := loadConfig()
	provider, err := parseProvider(*providerName)
	if err != nil {
		fatal(err)
	}
	c, path, err := loadConversation(context.Background(), fs.Arg(0), provider)
	if err != nil {
		fatal(err)
	}
	store, err := openStore(cfg)
	if err != nil {
		fatal(fmt.Errorf("open database: %w", err))
	}
	defer store.Close()

	e, r := openTimeline(c, path, cfg, store, nil)
	defer e.Stop()
	t := export.FromSnapshot(r, c.Title, e.Snapshot())

	var output string
	if *jsonFlag {
		output, err = export.JSON(t)
		if err != nil {
			fatal(fmt.Errorf("generate JSON: %w", err))
		}
	} else {
		output = export.Markdown(t)
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, []byte(output), 0o644); err != nil {
			fatal(fmt.Errorf("write file: %w", err))
		}
		return
	}
	fmt.Print(output)
}

func runSummarize(args []string) {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	model := fs.String("model", "", "Ollama model")
	providerName := fs.String("provider", "", "Force the site")
	fs.Parse(reorderArgs(args))
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: chatnav summarize <file|url> [--model name]")
		os.Exit(1)
	}

	cfg := loadConfig()
	if *model != "" {
		cfg.Model = *model
	}
	provider, err := parseProvider(*providerName)
	if err != nil {
		fatal(err)
	}
	ctx := context.Background()
	c, path, err := loadConversation(ctx, fs.Arg(0), provider)
	if err != nil {
		fatal(err)
	}
	store, err := openStore(cfg)
	if err != nil {
		fatal(fmt.Errorf("open database: %w", err))
	}
	defer store.Close()

	e, _ := openTimeline(c, path, cfg, store, newSummarizer(cfg, store))
	defer e.Stop()

	fmt.Fprintf(os.Stderr, "Labelling %d messages with %s...\n", len(e.Snapshot().Markers), cfg.Model)
	if err := e.Summarize(ctx); err != nil {
		fatal(err)
	}
	for _, m := range e.Snapshot().Markers {
		star := " "
		if m.Starred {
			star = "★"
		}
		fmt.Printf("%s %3d  %s\n", star, m.Index+1, m.Label)
	}
}

func runSummaries(args []string) {
	if len(args) == 0 || args[0] != "clear" {
		fmt.Fprintln(os.Stderr, "Usage: chatnav summaries clear [--yes]")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("summaries clear", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Skip confirmation prompt")
	fs.Parse(args[1:])

	if !*yes {
		fmt.Print("Clear every stored AI label? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return
		}
	}

	store, err := openStore(loadConfig())
	if err != nil {
		fatal(fmt.Errorf("open database: %w", err))
	}
	defer store.Close()
	n, err := store.ClearSummaries()
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Cleared AI labels for %d conversations\n", n)
}

func runSettings(args []string) {
	store, err := openStore(loadConfig())
	if err != nil {
		fatal(fmt.Errorf("open database: %w", err))
	}
	defer store.Close()

	st, err := store.LoadSettings()
	if err != nil {
		fatal(err)
	}
	if len(args) == 0 {
		printSettings(st)
		return
	}
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: chatnav settings timeline|ai|chatgpt|deepseek|gemini on|off")
		os.Exit(1)
	}

	var on bool
	switch args[1] {
	case "on", "true", "1":
		on = true
	case "off", "false", "0":
	default:
		fatal(fmt.Errorf("invalid value %q (want on or off)", args[1]))
	}

	switch args[0] {
	case "timeline":
		st.TimelineActive = on
	case "ai":
		st.AIModeEnabled = on
	default:
		p, err := parseProvider(args[0])
		if err != nil {
			fatal(err)
		}
		st.Providers[p] = on
	}
	if err := store.SaveSettings(st); err != nil {
		fatal(err)
	}
	printSettings(st)
}

func printSettings(st types.Settings) {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	fmt.Printf("timeline  %s\n", onOff(st.TimelineActive))
	fmt.Printf("ai        %s\n", onOff(st.AIModeEnabled))
	for _, p := range types.Providers {
		on, ok := st.Providers[p]
		fmt.Printf("%-9s %s\n", p, onOff(!ok || on))
	}
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			if !strings.Contains(args[i], "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") && !isBoolFlag(args[i]) {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	switch strings.TrimLeft(arg, "-") {
	case "json", "yes":
		return true
	}
	return false
}

// resolveProfileName returns the profile name from the flag if set,
// otherwise falls back to the CHATNAV_PROFILE environment variable.
func resolveProfileName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("CHATNAV_PROFILE")
}
