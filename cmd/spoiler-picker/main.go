package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"

	"github.com/runger/spoiler/internal/config"
	"github.com/runger/spoiler/internal/content"
	"github.com/runger/spoiler/internal/i18n"
	"github.com/runger/spoiler/internal/logging"
	"github.com/runger/spoiler/internal/picker"
	"github.com/runger/spoiler/internal/sink"
	"github.com/runger/spoiler/internal/storage"
)

// Version information (set via ldflags during build).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Exit codes.
//
//	0 = block committed (or an already committed block was shown)
//	1 = cancelled by user
//	2 = fallback: no TTY, bad flags, config or startup error
const (
	exitSuccess   = 0
	exitCancelled = 1
	exitFallback  = 2
)

// maxFilterLen is the maximum length of the initial filter in bytes.
const maxFilterLen = 256

// pickOpts holds the parsed command-line options for the pick subcommand.
type pickOpts struct {
	block     string
	status    string
	pageSize  int
	baseURL   string
	kind      string
	output    string
	filter    string
	initial   int64
	noPreview bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the main entry point, returning an exit code.
// It is separated from main() to enable testing.
func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitFallback
	}

	switch args[0] {
	case "pick":
		// continue below
	case "--help", "-h":
		printUsage()
		return exitSuccess
	case "--version", "-v":
		printVersion()
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "spoiler-picker: unknown command %q\n", args[0])
		printUsage()
		return exitFallback
	}

	opts, err := parsePickFlags(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: %v\n", err)
		return exitFallback
	}

	if err := checkTTY(); err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: %v\n", err)
		return exitFallback
	}
	if err := checkTERM(); err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: %v\n", err)
		return exitFallback
	}
	if err := checkTermWidth(); err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: %v\n", err)
		return exitFallback
	}

	paths := config.DefaultPaths()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: failed to load config: %v\n", err)
		return exitFallback
	}
	if err := applyOverrides(cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: %v\n", err)
		return exitFallback
	}

	if err := paths.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: failed to create directories: %v\n", err)
		return exitFallback
	}

	// The TUI owns the terminal, so logs always go to a file.
	logCloser, err := logging.Setup(logging.Config{
		Level:   cfg.Log.Level,
		File:    cfg.LogFile(paths),
		Format:  cfg.Log.Format,
		Secrets: []string{cfg.Source.AppPassword},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: %v\n", err)
		return exitFallback
	}
	defer logCloser.Close()
	log := logging.NewLogger("spoiler-picker")

	if err := i18n.Init(cfg.Picker.Locale, paths.LocaleDir()); err != nil {
		// Missing translations fall back to English.
		log.WithError(err).Warn("locale not loaded")
	}

	lockFd, err := acquireLock(paths.LockFile())
	if err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: %v\n", err)
		return exitFallback
	}
	defer releaseLock(lockFd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := newSession(ctx, cfg, paths, opts)
	if err != nil {
		log.WithError(err).Error("startup failed")
		fmt.Fprintf(os.Stderr, "spoiler-picker: %v\n", err)
		return exitFallback
	}
	defer sess.Close()

	return runTUI(sess, opts.output, log)
}

// parsePickFlags parses flags for the "pick" subcommand.
func parsePickFlags(args []string) (*pickOpts, error) {
	fs := flag.NewFlagSet("pick", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := &pickOpts{}
	var initial string
	fs.StringVar(&opts.block, "block", "", "block ID to open (default: a new block)")
	fs.StringVar(&opts.status, "status", "", "entry status: draft, publish or any")
	fs.IntVar(&opts.pageSize, "page-size", 0, "entries to fetch (-1 for all)")
	fs.StringVar(&opts.baseURL, "base-url", "", "site URL of the content API")
	fs.StringVar(&opts.kind, "kind", "", "content type to list")
	fs.StringVar(&opts.output, "output", "plain", "output format: plain or json")
	fs.StringVar(&opts.filter, "filter", "", "initial filter text")
	fs.StringVar(&initial, "initial", "", "entry ID to preselect")
	fs.BoolVar(&opts.noPreview, "no-preview", false, "hide the payload preview")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: spoiler-picker pick [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if opts.block != "" {
		if err := storage.ValidateBlockID(opts.block); err != nil {
			return nil, fmt.Errorf("--block: %w", err)
		}
	}

	if opts.status != "" {
		if _, err := content.ParseStatus(opts.status); err != nil {
			return nil, fmt.Errorf("--status: %w", err)
		}
	}

	if opts.pageSize < -1 {
		return nil, errors.New("--page-size must be -1 or a positive integer")
	}

	if opts.output != "plain" && opts.output != "json" {
		return nil, fmt.Errorf("--output must be \"plain\" or \"json\" (got %q)", opts.output)
	}

	if initial != "" {
		id, err := strconv.ParseInt(initial, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("--initial must be a positive integer (got %q)", initial)
		}
		opts.initial = id
	}

	filter, err := sanitizeQuery(opts.filter)
	if err != nil {
		return nil, fmt.Errorf("--filter: %w", err)
	}
	opts.filter = filter

	return opts, nil
}

// sanitizeQuery strips control characters and validates the filter string.
func sanitizeQuery(q string) (string, error) {
	if q == "" {
		return "", nil
	}

	if strings.ContainsAny(q, "\n\r") {
		return "", errors.New("filter must not contain newlines")
	}

	var b strings.Builder
	b.Grow(len(q))
	for _, r := range q {
		if r <= 0x1F && r != 0x09 {
			continue
		}
		b.WriteRune(r)
	}
	result := b.String()

	if len(result) > maxFilterLen {
		result = picker.ValidateUTF8(result[:maxFilterLen])
	}

	return result, nil
}

// applyOverrides copies explicitly set flags onto cfg and revalidates it.
func applyOverrides(cfg *config.Config, opts *pickOpts) error {
	if opts.baseURL != "" {
		cfg.Source.BaseURL = strings.TrimRight(opts.baseURL, "/")
	}
	if opts.kind != "" {
		cfg.Source.Kind = opts.kind
	}
	if opts.status != "" {
		st, err := content.ParseStatus(opts.status)
		if err != nil {
			return err
		}
		cfg.Source.Status = string(st)
	}
	if opts.pageSize != 0 {
		cfg.Source.PageSize = opts.pageSize
	}
	if opts.noPreview {
		cfg.Picker.Preview = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Source.BaseURL == "" {
		return errors.New("no content source: set source.base_url or pass --base-url")
	}
	return nil
}

// session holds everything one picker run needs.
type session struct {
	blockID string
	model   picker.Model
	store   *storage.SQLiteStore
}

// Close releases the block store.
func (s *session) Close() error {
	return s.store.Close()
}

// newSession opens the block store and wires the picker to the content API.
// A block that was already committed opens in the committed view.
func newSession(ctx context.Context, cfg *config.Config, paths *config.Paths, opts *pickOpts) (*session, error) {
	clientOpts := []content.ClientOption{
		content.WithRateLimit(cfg.Source.RequestsPerSecond, 1),
		content.WithUserAgent("spoiler-picker/" + Version),
	}
	if cfg.Source.Username != "" {
		clientOpts = append(clientOpts, content.WithBasicAuth(cfg.Source.Username, cfg.Source.AppPassword))
	}
	client, err := content.NewClient(cfg.Source.BaseURL, cfg.Source.Kind, clientOpts...)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath(paths))
	if err != nil {
		return nil, err
	}

	blockID := opts.block
	if blockID == "" {
		blockID = storage.NewBlockID()
	}

	var pickerOpts []picker.PickerOption
	existing, err := store.GetBlock(ctx, blockID)
	switch {
	case err == nil:
		pickerOpts = append(pickerOpts, picker.WithCommitted(existing.Selection()))
	case errors.Is(err, storage.ErrBlockNotFound):
		// New block.
	default:
		store.Close()
		return nil, err
	}
	if opts.initial > 0 {
		pickerOpts = append(pickerOpts, picker.WithInitialID(opts.initial))
	}
	if cfg.Picker.PendingOnEmpty {
		pickerOpts = append(pickerOpts, picker.WithPendingOnEmpty())
	}

	sinks := sink.Multi{store.Sink(blockID)}
	if cfg.Commit.Exec != "" {
		execSink, err := sink.NewExec(cfg.Commit.Exec, sink.WithEnv("SPOILER_BLOCK="+blockID))
		if err != nil {
			store.Close()
			return nil, err
		}
		sinks = append(sinks, execSink)
	}

	resolver := storage.NewCachedResolver(
		picker.NewContentResolver(client, cfg.FetchTimeout()),
		store, cfg.Source.Kind, cfg.RecordCacheTTL(),
	)

	req := picker.Request{
		Status:   picker.Status(cfg.Source.Status),
		PageSize: cfg.Source.PageSize,
	}
	model := picker.NewModel(picker.New(sinks, pickerOpts...), picker.NewContentProvider(client, cfg.FetchTimeout()), req).
		WithContext(ctx).
		WithResolver(resolver).
		WithPreview(cfg.Picker.Preview).
		WithFilter(opts.filter).
		WithLogger(logging.NewLogger("picker").WithField("block_id", blockID))

	return &session{blockID: blockID, model: model, store: store}, nil
}

// runTUI runs the Bubble Tea program on /dev/tty and reports the outcome.
func runTUI(sess *session, output string, log *logrus.Entry) int {
	// Open /dev/tty for TUI input/output since stdout carries the result.
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: cannot open /dev/tty: %v\n", err)
		return exitFallback
	}
	defer tty.Close()

	// When invoked via $(spoiler-picker ...), stdout is a pipe so lipgloss
	// defaults to Ascii. Detect the profile from the real tty instead.
	lipgloss.SetColorProfile(termenv.NewOutput(tty).ColorProfile())

	p := tea.NewProgram(sess.model,
		tea.WithAltScreen(),
		tea.WithInput(tty),
		tea.WithOutput(tty),
	)

	finalModel, err := p.Run()
	if err != nil {
		log.WithError(err).Error("TUI error")
		fmt.Fprintf(os.Stderr, "spoiler-picker: TUI error: %v\n", err)
		return exitFallback
	}

	m, ok := finalModel.(picker.Model)
	if !ok {
		fmt.Fprintln(os.Stderr, "spoiler-picker: unexpected model type")
		return exitFallback
	}

	return finish(m, sess.blockID, output, os.Stdout, log)
}

// finish maps the final model to an exit code and prints the result.
func finish(m picker.Model, blockID, output string, w io.Writer, log *logrus.Entry) int {
	sel, committed := m.Selection()
	if m.IsCancelled() || !committed {
		log.Info("picker cancelled")
		return exitCancelled
	}

	if err := writeResult(w, output, blockID, sel); err != nil {
		fmt.Fprintf(os.Stderr, "spoiler-picker: %v\n", err)
		return exitFallback
	}
	log.WithField("option_id", sel.ID).Info("picker finished")
	return exitSuccess
}

// result is the json output shape.
type result struct {
	BlockID string `json:"block_id"`
	ID      int64  `json:"id"`
	Payload string `json:"payload"`
}

// writeResult prints the block id (plain) or the full selection (json).
func writeResult(w io.Writer, output, blockID string, sel picker.Selection) error {
	if output == "json" {
		return json.NewEncoder(w).Encode(result{BlockID: blockID, ID: sel.ID, Payload: sel.Payload})
	}
	_, err := fmt.Fprintln(w, blockID)
	return err
}

// printUsage prints the top-level usage message.
func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: spoiler-picker <command> [flags]

Commands:
  pick       Choose a spoiler entry for a block

Flags:
  --help     Show this help message
  --version  Print version information`)
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("spoiler-picker %s\n", Version)
	fmt.Printf("  commit: %s\n", GitCommit)
	fmt.Printf("  built:  %s\n", BuildDate)
}
