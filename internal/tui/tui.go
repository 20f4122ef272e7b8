// Package tui is the interactive list shown by `tada ls` on a terminal.
// Every edit goes through the repository; the list redraws from the
// snapshots it publishes.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wewew312/todomemes/internal/model"
	"github.com/wewew312/todomemes/internal/ui"
)

// Repo is the slice of the repository the list drives.
type Repo interface {
	Load(ctx context.Context) ([]model.Item, error)
	Save(ctx context.Context, item model.Item) error
	Delete(ctx context.Context, uid string) (bool, error)
	ToggleDone(ctx context.Context, item model.Item) (model.Item, error)
	Sync(ctx context.Context) ([]model.Item, error)
}

// listItem adapts model.Item to bubbles/list.Item
type listItem struct {
	model.Item
}

func (i listItem) Title() string       { return i.Text }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.Text }

// Custom delegate to control how items render (single line)
type itemDelegate struct {
	now func() time.Time
}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}

	box := mutedStyle.Render(boxUnchecked)
	text := it.Text
	if it.Done {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}
	parts := []string{box, importanceMarker(it.Importance), text}
	if sw := swatch(it.Color); sw != "" {
		parts = append(parts, sw)
	}
	if it.Deadline != nil {
		due := "due " + it.Deadline.Local().Format(ui.DateLayout)
		if it.Overdue(d.now()) {
			parts = append(parts, overdueStyle.Render(due))
		} else {
			parts = append(parts, mutedStyle.Render(due))
		}
	}

	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+strings.Join(parts, " "))
}

// Messages produced by commands.
type (
	itemsMsg  []model.Item // from the updates channel
	loadedMsg struct {
		items  []model.Item
		status string
	}
	statusMsg string
	errMsg    struct{ err error }
)

var (
	addBind        = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	editBind       = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	toggleBind     = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	deleteBind     = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	undoBind       = key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo"))
	importanceBind = key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "importance"))
	reloadBind     = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload"))
	syncBind       = key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync"))
)

type Model struct {
	ctx     context.Context
	repo    Repo
	updates <-chan []model.Item
	now     func() time.Time

	list          list.Model
	width, height int

	// Inline add / edit share one text input.
	adding   bool
	editing  bool
	editUID  string
	ti       textinput.Model
	inputErr string

	status string

	// Undo support (single-level)
	undoItem *model.Item
}

// New builds the list. updates, if non-nil, delivers fresh snapshots
// (repository subscription, store watch) and triggers a redraw.
func New(ctx context.Context, repo Repo, items []model.Item, updates <-chan []model.Item) Model {
	now := time.Now
	l := list.New(toListItems(items), itemDelegate{now: now}, 0, 0)
	l.Title = header(items)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("item", "items")

	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{toggleBind, addBind, editBind, deleteBind, undoBind}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{toggleBind, addBind, editBind, deleteBind, undoBind, importanceBind, reloadBind, syncBind}
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "New item text..."
	ti.CharLimit = 200

	return Model{
		ctx:     ctx,
		repo:    repo,
		updates: updates,
		now:     now,
		list:    l,
		width:   80,
		height:  24,
		ti:      ti,
	}
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, repo Repo, items []model.Item, updates <-chan []model.Item) error {
	p := tea.NewProgram(New(ctx, repo, items, updates), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func header(items []model.Item) string {
	dn, pn := model.Stats(items)
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Todos"),
		successStyle.Render("✔"), dn,
		pendingStyle.Render("•"), pn,
		accentStyle.Render("Total"), len(items),
	)
}

func toListItems(items []model.Item) []list.Item {
	li := make([]list.Item, 0, len(items))
	for _, it := range items {
		li = append(li, listItem{it})
	}
	return li
}

// Items returns what the list currently shows.
func (m Model) Items() []model.Item {
	out := make([]model.Item, 0, len(m.list.Items()))
	for _, it := range m.list.Items() {
		if li, ok := it.(listItem); ok {
			out = append(out, li.Item)
		}
	}
	return out
}

func (m Model) selected() (model.Item, bool) {
	li, ok := m.list.SelectedItem().(listItem)
	return li.Item, ok
}

// ---------------------------------------------------
// Commands
// ---------------------------------------------------

func (m Model) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	ch := m.updates
	return func() tea.Msg {
		items, ok := <-ch
		if !ok {
			return nil
		}
		return itemsMsg(items)
	}
}

// do runs fn against the repository and reports its outcome.
func (m Model) do(status string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return errMsg{err}
		}
		return statusMsg(status)
	}
}

// fetch runs fn and replaces the list with its result.
func (m Model) fetch(status string, fn func(ctx context.Context) ([]model.Item, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		items, err := fn(ctx)
		if err != nil {
			return errMsg{err}
		}
		return loadedMsg{items: items, status: status}
	}
}

// ---------------------------------------------------
// Update / View
// ---------------------------------------------------

func (m Model) Init() tea.Cmd { return m.waitForUpdate() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case itemsMsg:
		m.setItems(msg)
		return m, m.waitForUpdate()
	case loadedMsg:
		m.setItems(msg.items)
		m.status = msg.status
		return m, nil
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case errMsg:
		m.status = errorStyle.Render("✖ " + msg.err.Error())
		return m, nil
	}

	if m.adding || m.editing {
		return m.updateInput(msg)
	}

	if k, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		if cmd, handled := m.handleKey(k); handled {
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) setItems(items []model.Item) {
	idx := m.list.Index()
	m.list.SetItems(toListItems(items))
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
	m.list.Title = header(items)
}

func (m *Model) handleKey(k tea.KeyMsg) (tea.Cmd, bool) {
	switch k.String() {
	case "q", "ctrl+c":
		return tea.Quit, true
	case "esc":
		if m.list.FilterState() == list.FilterApplied {
			return nil, false
		}
		return tea.Quit, true
	case " ":
		it, ok := m.selected()
		if !ok {
			return nil, true
		}
		return m.do("toggled", func(ctx context.Context) error {
			_, err := m.repo.ToggleDone(ctx, it)
			return err
		}), true
	case "d":
		it, ok := m.selected()
		if !ok {
			return nil, true
		}
		m.undoItem = &it
		return m.do("deleted (u to undo)", func(ctx context.Context) error {
			_, err := m.repo.Delete(ctx, it.UID)
			return err
		}), true
	case "u":
		if m.undoItem == nil {
			return nil, true
		}
		it := *m.undoItem
		m.undoItem = nil
		return m.do("restored", func(ctx context.Context) error {
			return m.repo.Save(ctx, it)
		}), true
	case "i":
		it, ok := m.selected()
		if !ok {
			return nil, true
		}
		it.Importance = it.Importance.Next()
		it.Touch()
		return m.do("importance: "+it.Importance.Label(), func(ctx context.Context) error {
			return m.repo.Save(ctx, it)
		}), true
	case "r":
		return m.fetch("reloaded", m.repo.Load), true
	case "s":
		m.status = "syncing..."
		return m.fetch("synced", m.repo.Sync), true
	case "a":
		m.adding = true
		m.inputErr = ""
		m.ti.SetValue("")
		m.ti.Placeholder = "New item text..."
		return m.ti.Focus(), true
	case "e":
		it, ok := m.selected()
		if !ok {
			return nil, true
		}
		m.editing = true
		m.editUID = it.UID
		m.inputErr = ""
		m.ti.SetValue(it.Text)
		m.ti.CursorEnd()
		m.ti.Placeholder = "Edit item text..."
		return m.ti.Focus(), true
	}
	return nil, false
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "enter":
			text := strings.TrimSpace(m.ti.Value())
			if text == "" {
				m.inputErr = "Text cannot be empty"
				return m, nil
			}
			var cmd tea.Cmd
			if m.adding {
				it := model.New(text)
				cmd = m.do("added", func(ctx context.Context) error { return m.repo.Save(ctx, it) })
			} else {
				uid := m.editUID
				var it model.Item
				for _, cur := range m.Items() {
					if cur.UID == uid {
						it = cur
					}
				}
				if it.UID == "" {
					m.closeInput()
					return m, func() tea.Msg { return statusMsg("item vanished") }
				}
				it.Text = text
				it.Touch()
				cmd = m.do("edited", func(ctx context.Context) error { return m.repo.Save(ctx, it) })
			}
			m.closeInput()
			return m, cmd
		case "esc":
			m.closeInput()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m *Model) closeInput() {
	m.adding, m.editing = false, false
	m.editUID, m.inputErr = "", ""
	m.ti.SetValue("")
	m.ti.Blur()
}

func (m *Model) resize() {
	h := m.height - 5
	if m.adding || m.editing {
		h -= 3
	}
	if h < 3 {
		h = 3
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) View() string {
	m.resize()
	content := m.list.View()
	if m.adding || m.editing {
		title := "Add new item"
		if m.editing {
			title = "Edit item"
		}
		if m.inputErr != "" {
			title += ": " + errorStyle.Render(m.inputErr)
		}
		content += "\n" + panelStyle.Render(title+"\n"+m.ti.View())
	}
	if m.status != "" {
		content += "\n" + m.status
	}
	return panelStyle.Render(content)
}
