package picker

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrAlreadyStarted   = errors.New("picker: fetch already started")
	ErrPending          = errors.New("picker: options not loaded yet")
	ErrInvalidSelection = errors.New("picker: id is not among the listed options")
	ErrClosed           = errors.New("picker: torn down")
	ErrCommitFailed     = errors.New("picker: commit failed")
)

// Option is one selectable entry.
type Option struct {
	ID      int64  `json:"id"`
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// Selection is what gets committed: the chosen id and its payload.
type Selection struct {
	ID      int64  `json:"id"`
	Payload string `json:"payload"`
}

// Mode is the picker's top-level mode.
type Mode int

const (
	ModePicking Mode = iota
	ModeCommitted
)

// LoadStatus tracks the single list fetch.
type LoadStatus int

const (
	LoadPending LoadStatus = iota // Fetch not resolved
	LoadLoaded                    // Fetch returned at least one option
	LoadEmpty                     // Fetch returned zero options
	LoadErrored                   // Fetch failed
)

// FetchResult is produced by the function returned from Start and applied
// with Resolve. It doubles as a tea.Msg.
type FetchResult struct {
	requestID uint64
	options   []Option
	err       error
}

// Err returns the fetch error, if any.
func (r FetchResult) Err() error { return r.err }

// Picker is the option-picking state machine. It is not safe for concurrent
// use: exactly one goroutine owns it, and the fetch function returned by
// Start never touches its state.
type Picker struct {
	sink CommitSink

	mode       Mode
	load       LoadStatus
	options    []Option
	currentID  int64
	hasCurrent bool
	err        error
	committed  Selection

	pendingOnEmpty bool

	requestID uint64
	started   bool
	closed    bool
	cancel    context.CancelFunc
}

// PickerOption configures a Picker.
type PickerOption func(*Picker)

// WithInitialID preselects id once options arrive, if it is listed.
func WithInitialID(id int64) PickerOption {
	return func(p *Picker) {
		p.currentID = id
		p.hasCurrent = true
	}
}

// WithCommitted starts the picker in committed mode with a previously
// persisted selection.
func WithCommitted(sel Selection) PickerOption {
	return func(p *Picker) {
		p.mode = ModeCommitted
		p.committed = sel
		p.currentID = sel.ID
		p.hasCurrent = true
	}
}

// WithPendingOnEmpty renders empty and failed fetches as still loading.
func WithPendingOnEmpty() PickerOption {
	return func(p *Picker) {
		p.pendingOnEmpty = true
	}
}

// New creates a Picker that commits to sink. A nil sink only transitions state.
func New(sink CommitSink, opts ...PickerOption) *Picker {
	p := &Picker{sink: sink}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins the one and only list fetch. The returned function performs
// the blocking provider call and should be run off the owning goroutine; its
// result must be handed back through Resolve.
func (p *Picker) Start(ctx context.Context, provider Provider, req Request) (func() FetchResult, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if p.started {
		return nil, ErrAlreadyStarted
	}
	p.started = true
	p.requestID++

	reqID := p.requestID
	req.RequestID = reqID
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	return func() FetchResult {
		resp, err := provider.Fetch(ctx, req)
		if err != nil {
			return FetchResult{requestID: reqID, err: err}
		}
		return FetchResult{requestID: reqID, options: resp.Options}
	}, nil
}

// Resolve applies a fetch result. It reports whether the result was accepted;
// results arriving after Teardown, stale results and repeats are dropped.
func (p *Picker) Resolve(res FetchResult) bool {
	if p.closed || !p.started || res.requestID != p.requestID || p.load != LoadPending {
		return false
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	if res.err != nil {
		p.load = LoadErrored
		p.err = res.err
		p.options = nil
		return true
	}

	p.options = dedupe(res.options)
	if len(p.options) == 0 {
		p.load = LoadEmpty
		return true
	}

	p.load = LoadLoaded
	if !p.hasCurrent || p.indexOf(p.currentID) < 0 {
		p.currentID = p.options[0].ID
		p.hasCurrent = true
	}
	return true
}

// Teardown cancels an in-flight fetch. After Teardown the picker accepts no
// further results and commits nothing.
func (p *Picker) Teardown() {
	if p.closed {
		return
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Select makes id the current selection.
func (p *Picker) Select(id int64) error {
	if p.closed {
		return ErrClosed
	}
	if p.load == LoadPending {
		return ErrPending
	}
	if p.indexOf(id) < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSelection, id)
	}
	p.currentID = id
	p.hasCurrent = true
	return nil
}

// Confirm commits the current selection to the sink and moves to committed
// mode. Every call commits again; duplicates are left to the sink.
func (p *Picker) Confirm(ctx context.Context) error {
	if p.closed {
		return ErrClosed
	}
	if p.load == LoadPending {
		return ErrPending
	}
	i := p.indexOf(p.currentID)
	if !p.hasCurrent || i < 0 {
		return ErrInvalidSelection
	}

	sel := Selection{ID: p.options[i].ID, Payload: p.options[i].Payload}
	if p.sink != nil {
		if err := p.sink.Commit(ctx, sel); err != nil {
			return fmt.Errorf("%w: %w", ErrCommitFailed, err)
		}
	}
	p.mode = ModeCommitted
	p.committed = sel
	return nil
}

// Mode returns the current mode.
func (p *Picker) Mode() Mode { return p.mode }

// LoadStatus returns the fetch status.
func (p *Picker) LoadStatus() LoadStatus { return p.load }

// Err returns the fetch error when LoadStatus is LoadErrored.
func (p *Picker) Err() error { return p.err }

// Closed reports whether Teardown was called.
func (p *Picker) Closed() bool { return p.closed }

// CurrentID returns the current selection, if any.
func (p *Picker) CurrentID() (int64, bool) {
	return p.currentID, p.hasCurrent && (p.load != LoadLoaded || p.indexOf(p.currentID) >= 0)
}

// Committed returns the committed selection when in committed mode.
func (p *Picker) Committed() (Selection, bool) {
	return p.committed, p.mode == ModeCommitted
}

// Options returns a copy of the fetched options.
func (p *Picker) Options() []Option {
	if p.options == nil {
		return nil
	}
	out := make([]Option, len(p.options))
	copy(out, p.options)
	return out
}

// ViewKind selects how a View is drawn.
type ViewKind int

const (
	ViewLoading ViewKind = iota
	ViewList
	ViewEmpty
	ViewError
	ViewCommitted
)

func (k ViewKind) String() string {
	switch k {
	case ViewLoading:
		return "loading"
	case ViewList:
		return "list"
	case ViewEmpty:
		return "empty"
	case ViewError:
		return "error"
	case ViewCommitted:
		return "committed"
	default:
		return fmt.Sprintf("ViewKind(%d)", int(k))
	}
}

// View is a snapshot of what should be shown for the current state.
type View struct {
	Kind      ViewKind
	Options   []Option
	CurrentID int64
	Err       error
	Committed Selection
}

// Render derives the View from state. It has no side effects.
func (p *Picker) Render() View {
	if p.mode == ModeCommitted {
		return View{Kind: ViewCommitted, Committed: p.committed}
	}
	switch p.load {
	case LoadLoaded:
		return View{Kind: ViewList, Options: p.Options(), CurrentID: p.currentID}
	case LoadEmpty:
		if p.pendingOnEmpty {
			return View{Kind: ViewLoading}
		}
		return View{Kind: ViewEmpty}
	case LoadErrored:
		if p.pendingOnEmpty {
			return View{Kind: ViewLoading}
		}
		return View{Kind: ViewError, Err: p.err}
	default:
		return View{Kind: ViewLoading}
	}
}

func (p *Picker) indexOf(id int64) int {
	for i, o := range p.options {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// dedupe keeps the first option for each id.
func dedupe(opts []Option) []Option {
	seen := make(map[int64]bool, len(opts))
	out := make([]Option, 0, len(opts))
	for _, o := range opts {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		out = append(out, o)
	}
	return out
}
