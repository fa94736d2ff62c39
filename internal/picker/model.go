package picker

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/runger/spoiler/internal/htmltext"
	"github.com/runger/spoiler/internal/i18n"
	"github.com/runger/spoiler/internal/logging"
)

// initMsg is sent by Init() so the fetch starts inside Update, where state
// mutations are visible to the Bubble Tea runtime.
type initMsg struct{}

// resolveDoneMsg carries the record resolver's answer for a committed id.
type resolveDoneMsg struct {
	id     int64
	record Record
	err    error
}

// Model is the Bubble Tea front end for a Picker. The Picker is only ever
// touched from Update.
type Model struct {
	ctx      context.Context
	picker   *Picker
	provider Provider
	request  Request
	resolver Resolver
	log      *logrus.Entry

	spinner spinner.Model
	filter  string
	visible []Option

	width  int
	height int

	preview   bool
	cancelled bool
	commitErr error

	resolving     bool
	record        *Record
	resolveErr    error
	resolveCancel context.CancelFunc
}

// NewModel creates a Model that fetches from provider with req.
func NewModel(p *Picker, provider Provider, req Request) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle
	return Model{
		ctx:      context.Background(),
		picker:   p,
		provider: provider,
		request:  req,
		log:      logging.Discard(),
		spinner:  sp,
		preview:  true,
	}
}

// WithResolver sets the resolver used to display the committed entry.
func (m Model) WithResolver(r Resolver) Model {
	m.resolver = r
	return m
}

// WithPreview controls whether the committed entry is displayed before the
// program exits.
func (m Model) WithPreview(preview bool) Model {
	m.preview = preview
	return m
}

// WithFilter sets the initial label filter.
func (m Model) WithFilter(filter string) Model {
	m.filter = filter
	return m
}

// WithLogger sets the logger.
func (m Model) WithLogger(l *logrus.Entry) Model {
	m.log = l
	return m
}

// WithContext sets the parent context for the fetch and the resolver.
func (m Model) WithContext(ctx context.Context) Model {
	m.ctx = ctx
	return m
}

// Picker returns the underlying state machine.
func (m Model) Picker() *Picker { return m.picker }

// IsCancelled reports whether the user quit without committing.
func (m Model) IsCancelled() bool { return m.cancelled }

// Selection returns the committed selection, if any.
func (m Model) Selection() (Selection, bool) { return m.picker.Committed() }

// CommitErr returns the last commit failure.
func (m Model) CommitErr() error { return m.commitErr }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return initMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case initMsg:
		if m.picker.Mode() == ModeCommitted {
			return m, m.startResolve()
		}
		return m, m.startFetch()

	case FetchResult:
		if !m.picker.Resolve(msg) {
			m.log.Debug("dropped fetch result")
			return m, nil
		}
		if err := msg.Err(); err != nil {
			m.log.WithError(err).Warn("fetch failed")
		} else {
			m.log.WithField("count", len(m.picker.Options())).Info("options loaded")
		}
		m.refilter()
		return m, nil

	case resolveDoneMsg:
		sel, ok := m.picker.Committed()
		if !ok || !m.resolving || sel.ID != msg.id {
			return m, nil
		}
		m.resolving = false
		if msg.err != nil {
			m.log.WithError(msg.err).WithField("id", msg.id).Warn("resolve failed")
			m.resolveErr = msg.err
			return m, nil
		}
		rec := msg.record
		m.record = &rec
		return m, nil

	case spinner.TickMsg:
		if !m.spinning() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker.Mode() == ModeCommitted {
		m.shutdown()
		return m, tea.Quit
	}

	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.cancelled = true
		m.shutdown()
		return m, tea.Quit

	case tea.KeyEnter:
		return m.confirm()

	case tea.KeyUp, tea.KeyCtrlP:
		m.move(-1)
		return m, nil

	case tea.KeyDown, tea.KeyCtrlN:
		m.move(1)
		return m, nil

	case tea.KeyBackspace:
		if r := []rune(m.filter); len(r) > 0 {
			m.filter = string(r[:len(r)-1])
			m.refilter()
		}
		return m, nil

	case tea.KeyRunes, tea.KeySpace:
		m.filter += string(msg.Runes)
		m.refilter()
		return m, nil
	}

	return m, nil
}

// confirm commits the current option. Enter is ignored while loading and
// when the filter hides every option.
func (m Model) confirm() (tea.Model, tea.Cmd) {
	if m.picker.LoadStatus() != LoadLoaded || len(m.visible) == 0 {
		return m, nil
	}
	if err := m.picker.Confirm(m.ctx); err != nil {
		if errors.Is(err, ErrPending) {
			return m, nil
		}
		m.log.WithError(err).Error("commit failed")
		m.commitErr = err
		return m, nil
	}

	sel, _ := m.picker.Committed()
	m.log.WithField("id", sel.ID).Info("selection committed")
	m.commitErr = nil

	if !m.preview {
		m.shutdown()
		return m, tea.Quit
	}
	return m, m.startResolve()
}

// startFetch starts the picker's single fetch as a tea.Cmd.
func (m *Model) startFetch() tea.Cmd {
	fetch, err := m.picker.Start(m.ctx, m.provider, m.request)
	if err != nil {
		m.log.WithError(err).Debug("fetch not started")
		return nil
	}
	return func() tea.Msg { return fetch() }
}

// startResolve asks the resolver for the committed entry.
func (m *Model) startResolve() tea.Cmd {
	sel, ok := m.picker.Committed()
	if !ok || m.resolver == nil {
		return nil
	}
	if m.resolveCancel != nil {
		m.resolveCancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.resolveCancel = cancel
	m.resolving = true
	m.record = nil
	m.resolveErr = nil

	r := m.resolver
	id := sel.ID
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		rec, err := r.Resolve(ctx, id)
		return resolveDoneMsg{id: id, record: rec, err: err}
	})
}

// shutdown tears the picker down and cancels an in-flight resolve.
func (m *Model) shutdown() {
	m.picker.Teardown()
	if m.resolveCancel != nil {
		m.resolveCancel()
		m.resolveCancel = nil
	}
}

// move selects the visible option delta rows away from the current one.
func (m *Model) move(delta int) {
	if len(m.visible) == 0 {
		return
	}
	i := m.currentIndex() + delta
	if i < 0 {
		i = 0
	}
	if i >= len(m.visible) {
		i = len(m.visible) - 1
	}
	if err := m.picker.Select(m.visible[i].ID); err != nil {
		m.log.WithError(err).Debug("select rejected")
	}
}

// refilter recomputes the visible options and keeps the current selection
// among them.
func (m *Model) refilter() {
	all := m.picker.Options()
	needle := strings.ToLower(strings.TrimSpace(m.filter))
	if needle == "" {
		m.visible = all
	} else {
		m.visible = nil
		for _, o := range all {
			if strings.Contains(strings.ToLower(o.Label), needle) {
				m.visible = append(m.visible, o)
			}
		}
	}
	if len(m.visible) > 0 && m.currentIndex() < 0 {
		_ = m.picker.Select(m.visible[0].ID)
	}
}

// currentIndex is the current selection's index in visible, or -1.
func (m Model) currentIndex() int {
	id, ok := m.picker.CurrentID()
	if !ok {
		return -1
	}
	for i, o := range m.visible {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (m Model) spinning() bool {
	if m.picker.Mode() == ModeCommitted {
		return m.resolving
	}
	return m.picker.Render().Kind == ViewLoading
}

// listHeight returns the number of visible list rows.
func (m Model) listHeight() int {
	// title, instructions, blank, filter, blank, footer, help
	const chrome = 7
	h := m.height - chrome
	if h < 1 {
		h = 10
	}
	return h
}

// --- View rendering ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	accentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	filterStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	buttonStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Background(lipgloss.Color("237")).Padding(0, 1)
	okStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

// View implements tea.Model.
func (m Model) View() string {
	if m.picker.Mode() == ModeCommitted {
		return m.viewCommitted()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(i18n.T("title", i18n.Domain)))
	b.WriteRune('\n')
	b.WriteString(dimStyle.Render(i18n.T("instructions", i18n.Domain)))
	b.WriteString("\n\n")
	b.WriteString(m.viewContent())
	b.WriteString("\n\n")
	b.WriteString(m.viewFooter())
	return b.String()
}

// viewContent renders the option list or a status message.
func (m Model) viewContent() string {
	v := m.picker.Render()
	switch v.Kind {
	case ViewLoading:
		return m.spinner.View() + " " + dimStyle.Render(i18n.T("loading", i18n.Domain))

	case ViewEmpty:
		return dimStyle.Render(i18n.T("empty", i18n.Domain))

	case ViewError:
		msg := "unknown error"
		if v.Err != nil {
			msg = v.Err.Error()
		}
		return errorStyle.Render(i18n.Tf("error", i18n.Domain, msg))

	case ViewList:
		return m.viewList()
	}
	return ""
}

// viewList renders the filter line and the visible options, scrolled so the
// current option is on screen.
func (m Model) viewList() string {
	var b strings.Builder
	if m.filter != "" {
		b.WriteString(filterStyle.Render(i18n.T("filter", i18n.Domain) + ": " + m.filter))
		b.WriteRune('\n')
	}
	if len(m.visible) == 0 {
		b.WriteString(dimStyle.Render(i18n.T("no_matches", i18n.Domain)))
		return b.String()
	}

	h := m.listHeight()
	cur := m.currentIndex()
	start := 0
	if cur >= h {
		start = cur - h + 1
	}
	end := min(start+h, len(m.visible))

	for i := start; i < end; i++ {
		label := m.visible[i].Label
		if m.width > 8 {
			label = TruncateLabel(label, m.width-6)
		}
		if i == cur {
			b.WriteString(selectedStyle.Render("> (•) " + label))
		} else {
			b.WriteString(normalStyle.Render("  ( ) " + label))
		}
		if i < end-1 {
			b.WriteRune('\n')
		}
	}
	return b.String()
}

// viewFooter renders the Done button, disabled until options are listed,
// plus key help and the last commit error.
func (m Model) viewFooter() string {
	var b strings.Builder
	done := i18n.T("done", i18n.Domain)
	if m.picker.LoadStatus() == LoadLoaded && len(m.visible) > 0 {
		b.WriteString(buttonStyle.Render(done))
	} else {
		b.WriteString(disabledStyle.Render(done))
	}
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(i18n.T("help_list", i18n.Domain)))
	if m.commitErr != nil {
		b.WriteRune('\n')
		b.WriteString(errorStyle.Render(i18n.Tf("commit_error", i18n.Domain, m.commitErr.Error())))
	}
	return b.String()
}

// viewCommitted renders the committed entry: the resolved record when
// available, otherwise the payload captured at commit time.
func (m Model) viewCommitted() string {
	sel, _ := m.picker.Committed()

	var b strings.Builder
	b.WriteString(okStyle.Render("✓ " + i18n.T("committed", i18n.Domain)))
	b.WriteString("\n\n")

	switch {
	case m.resolving:
		b.WriteString(m.spinner.View() + " " + dimStyle.Render(i18n.T("resolving", i18n.Domain)))
	case m.record != nil:
		if m.record.Title != "" {
			b.WriteString(titleStyle.Render(m.record.Title))
			b.WriteString("\n\n")
		}
		b.WriteString(m.wrap(htmltext.Text(m.record.Content)))
	default:
		b.WriteString(m.wrap(htmltext.Text(sel.Payload)))
		if m.resolveErr != nil {
			b.WriteString("\n\n")
			b.WriteString(dimStyle.Render(i18n.T("saved_copy", i18n.Domain)))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(i18n.T("help_committed", i18n.Domain)))
	return b.String()
}

func (m Model) wrap(s string) string {
	if m.width <= 4 {
		return s
	}
	return lipgloss.NewStyle().Width(m.width - 2).Render(s)
}
