// Package ui implements the interactive sync monitor using bubbletea's Elm architecture.
//
// The monitor runs a full sync pass in a background goroutine and renders
// per-collection progress as updates arrive over a channel. The [Model]
// implements bubbletea's standard Init/Update/View pattern; progress flows
// through the channel from the SyncEngine, providing non-blocking status
// reporting while pages are fetched and upserted.
//
// Keyboard handling is minimal: q/ctrl+c cancels a running pass, q or enter
// dismisses the summary once the pass finishes.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/tasks"
)

// collectionStatus tracks the rendered state of one collection in the pass.
type collectionStatus struct {
	collection models.Collection
	message    string
	entry      *models.SyncLogEntry
}

// Model represents the sync monitor state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	engine       *tasks.SyncEngine
	opts         tasks.SyncOpts
	progressChan chan tasks.ProgressUpdate
	statuses     []collectionStatus
	entries      []models.SyncLogEntry
	runErr       error
	done         bool
	spin         spinner.Model
	help         help.Model
	keys         keyMap
}

type keyMap struct {
	quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.quit}}
}

type progressUpdateMsg tasks.ProgressUpdate

type syncCompleteMsg struct {
	entries []models.SyncLogEntry
	err     error
}

// NewModel creates a sync monitor that will run the given engine when started.
func NewModel(ctx context.Context, engine *tasks.SyncEngine, opts tasks.SyncOpts) *Model {
	ctx, cancel := context.WithCancel(ctx)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.ok

	return &Model{
		ctx:    ctx,
		cancel: cancel,
		engine: engine,
		opts:   opts,
		spin:   sp,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init starts the sync pass in the background and begins listening for updates.
func (m *Model) Init() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)

	go func() {
		entries, err := m.engine.Run(m.ctx, m.progressChan, m.opts)
		m.entries = entries
		m.runErr = err
		close(m.progressChan)
	}()

	return tea.Batch(m.spin.Tick, m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "enter":
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		m.apply(tasks.ProgressUpdate(msg))
		return m, m.waitForProgress()

	case syncCompleteMsg:
		m.entries = msg.entries
		m.runErr = msg.err
		m.done = true
		return m, nil
	}

	return m, nil
}

// apply folds one progress update into the per-collection status lines.
func (m *Model) apply(update tasks.ProgressUpdate) {
	idx := -1
	for i := range m.statuses {
		if m.statuses[i].collection == update.Collection {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.statuses = append(m.statuses, collectionStatus{collection: update.Collection})
		idx = len(m.statuses) - 1
	}

	m.statuses[idx].message = update.Message
	if entry, ok := update.Data.(models.SyncLogEntry); ok {
		m.statuses[idx].entry = &entry
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progressChan
		if !ok {
			return syncCompleteMsg{entries: m.entries, err: m.runErr}
		}
		return progressUpdateMsg(update)
	}
}

// View renders the per-collection status lines and, once finished, a summary.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Library Sync"))
	b.WriteString("\n\n")

	for _, status := range m.statuses {
		b.WriteString(m.renderStatus(status))
		b.WriteString("\n")
	}

	if m.done {
		b.WriteString("\n")
		b.WriteString(m.renderSummary())
	} else {
		b.WriteString(fmt.Sprintf("\n%s working...\n", m.spin.View()))
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderStatus(status collectionStatus) string {
	if status.entry == nil {
		return fmt.Sprintf("%s %s", m.spin.View(), status.message)
	}

	entry := status.entry
	line := fmt.Sprintf("%s: %d items (%s)", entry.Collection, entry.ItemCount, entry.Outcome)
	switch entry.Outcome {
	case models.OutcomeSuccess:
		return styles.ok.Render("✓ ") + line
	case models.OutcomePartial:
		return styles.warn.Render("~ ") + line
	default:
		return styles.err.Render("✗ ") + line
	}
}

func (m *Model) renderSummary() string {
	if m.runErr != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v", m.runErr))
	}

	total := 0
	for _, entry := range m.entries {
		total += entry.ItemCount
	}
	return styles.ok.Render(fmt.Sprintf("✓ Sync complete: %d items across %d collections", total, len(m.entries)))
}
