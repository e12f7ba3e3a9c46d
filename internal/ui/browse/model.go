// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package browse is an interactive terminal browser for the conversation
// store: a filterable list of conversations and a Markdown transcript view.
package browse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-chatstore/internal/export"
	"github.com/jeranaias/rigrun-chatstore/internal/search"
	"github.com/jeranaias/rigrun-chatstore/internal/storage"
	"github.com/jeranaias/rigrun-chatstore/internal/ui/render"
	"github.com/jeranaias/rigrun-chatstore/internal/ui/styles"
)

// Store is the part of the conversation store the browser needs.
type Store interface {
	List() ([]string, error)
	Get(filename string) (*storage.Conversation, error)
	Delete(filename string) error
}

// =============================================================================
// LIST ITEMS
// =============================================================================

type item struct {
	summary export.Summary
	missing bool
}

func (i item) Title() string {
	if i.summary.Title != "" {
		return i.summary.Title
	}
	return i.summary.Filename
}

func (i item) Description() string {
	if i.missing {
		return i.summary.Filename + " (file missing)"
	}
	parts := []string{i.summary.Filename}
	if i.summary.Model != "" {
		parts = append(parts, i.summary.Model)
	}
	parts = append(parts, fmt.Sprintf("%d messages", i.summary.Messages))
	return strings.Join(parts, " · ")
}

func (i item) FilterValue() string {
	return search.Fold(i.summary.Title + " " + i.summary.Filename)
}

// =============================================================================
// MESSAGES
// =============================================================================

type loadedMsg struct {
	items []list.Item
	err   error
}

type openedMsg struct {
	filename string
	body     string
	err      error
}

type deletedMsg struct {
	filename string
	err      error
}

// =============================================================================
// MODEL
// =============================================================================

type mode int

const (
	modeList mode = iota
	modeView
)

// Model is the bubbletea model of the browser.
type Model struct {
	store Store
	keys  KeyMap

	list     list.Model
	viewport viewport.Model
	mode     mode

	current       string
	pendingDelete string
	status        string

	width  int
	height int
}

// New returns a browser over store. Call Init to load the listing.
func New(store Store) Model {
	delegate := list.NewDefaultDelegate()
	l := list.New(nil, delegate, 0, 0)
	l.Title = "Conversations"
	l.Styles.Title = styles.Title
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	return Model{
		store:    store,
		keys:     DefaultKeyMap(),
		list:     l,
		viewport: viewport.New(0, 0),
	}
}

// Run starts the browser in the alternate screen and blocks until it exits.
func Run(store Store) error {
	_, err := tea.NewProgram(New(store), tea.WithAltScreen()).Run()
	return err
}

// Init loads the listing.
func (m Model) Init() tea.Cmd {
	return m.load
}

func (m Model) load() tea.Msg {
	names, err := m.store.List()
	if err != nil {
		return loadedMsg{err: err}
	}

	items := make([]list.Item, 0, len(names))
	for _, name := range names {
		conv, err := m.store.Get(name)
		if err != nil {
			if errors.Is(err, storage.ErrRead) {
				items = append(items, item{summary: export.Summary{Filename: name}, missing: true})
				continue
			}
			return loadedMsg{err: err}
		}
		items = append(items, item{summary: export.Summarize(conv)})
	}
	return loadedMsg{items: items}
}

func (m Model) open(filename string, width int) tea.Cmd {
	return func() tea.Msg {
		conv, err := m.store.Get(filename)
		if err != nil {
			return openedMsg{filename: filename, err: err}
		}
		return openedMsg{filename: filename, body: render.Markdown(export.Markdown(conv), width)}
	}
}

func (m Model) delete(filename string) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{filename: filename, err: m.store.Delete(filename)}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, msg.Height-1)
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = msg.Height - 4
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.status = styles.RenderError(msg.err.Error())
			return m, nil
		}
		m.status = fmt.Sprintf("%d conversations", len(msg.items))
		return m, m.list.SetItems(msg.items)

	case openedMsg:
		if msg.err != nil {
			m.status = styles.RenderError(msg.err.Error())
			return m, nil
		}
		m.current = msg.filename
		m.mode = modeView
		m.viewport.SetContent(msg.body)
		m.viewport.GotoTop()
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			m.status = styles.RenderError(msg.err.Error())
			return m, nil
		}
		m.status = styles.RenderSuccess("deleted " + msg.filename)
		return m, m.load

	case tea.KeyMsg:
		if m.mode == modeView {
			return m.updateView(msg)
		}
		return m.updateList(msg)
	}

	var cmd tea.Cmd
	if m.mode == modeView {
		m.viewport, cmd = m.viewport.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pendingDelete != "" {
		filename := m.pendingDelete
		m.pendingDelete = ""
		if key.Matches(msg, m.keys.Confirm) {
			return m, m.delete(filename)
		}
		m.status = "delete cancelled"
		return m, nil
	}

	// While the filter prompt is open every key belongs to it.
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Open):
		if it, ok := m.list.SelectedItem().(item); ok {
			return m, m.open(it.summary.Filename, m.viewport.Width)
		}
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		if it, ok := m.list.SelectedItem().(item); ok {
			m.pendingDelete = it.summary.Filename
			m.status = styles.RenderWarning(fmt.Sprintf("delete %s? (y/N)", it.summary.Filename))
		}
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		return m, m.load
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Back) {
		m.mode = modeList
		m.current = ""
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the current screen.
func (m Model) View() string {
	if m.mode == modeView {
		header := styles.Title.Render(m.current)
		footer := styles.Footer.Render(fmt.Sprintf("esc back · %3.f%%", m.viewport.ScrollPercent()*100))
		return header + "\n" + styles.Pane.Render(m.viewport.View()) + "\n" + footer
	}

	hints := make([]string, 0, 4)
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	hints = append(hints, "/ filter")
	footer := strings.Join(hints, " · ")
	if m.status != "" {
		footer = m.status + "  " + footer
	}
	return m.list.View() + "\n" + styles.Footer.Render(footer)
}
