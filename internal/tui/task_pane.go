package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yaxingson/mini-agent/internal/events"
)

// taskEntry tracks the displayed state of one task.
type taskEntry struct {
	ID        string
	Operation string
	Status    string // "running", "completed", "failed"
	Result    string
	Err       string
	StartedAt time.Time
	Duration  time.Duration
}

// TaskPaneModel shows the task list alongside a detail viewport for the
// selected task.
type TaskPaneModel struct {
	tasks       map[string]*taskEntry
	order       []string // dispatch order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*taskEntry),
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.refreshDetail()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.refreshDetail()
			}
		default:
			// Remaining keys scroll the detail viewport.
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		if _, exists := m.tasks[msg.ID]; !exists {
			m.tasks[msg.ID] = &taskEntry{
				ID:        msg.ID,
				Operation: msg.Operation,
				Status:    "running",
				StartedAt: msg.Timestamp,
			}
			m.order = append(m.order, msg.ID)
			// Auto-select the first task to arrive.
			if len(m.order) == 1 {
				m.selectedIdx = 0
				m.refreshDetail()
			}
		}

	case events.TaskCompletedEvent:
		if entry, exists := m.tasks[msg.ID]; exists {
			entry.Status = "completed"
			entry.Result = msg.Result
			entry.Duration = msg.Duration
			if m.selectedTaskID() == msg.ID {
				m.refreshDetail()
			}
		}

	case events.TaskFailedEvent:
		if entry, exists := m.tasks[msg.ID]; exists {
			entry.Status = "failed"
			entry.Err = msg.Err.Error()
			entry.Duration = msg.Duration
			if m.selectedTaskID() == msg.ID {
				m.refreshDetail()
			}
		}
	}

	return m, cmd
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 24
	detailWidth := m.width - listWidth - 4 // borders and padding

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(detailWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderTaskList renders the left-hand task list column.
func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, taskID := range m.order {
			entry := m.tasks[taskID]
			label := entry.ID
			if len(label) > width-6 {
				label = label[:width-9] + "..."
			}

			line := fmt.Sprintf("%s %s", statusIcon(entry.Status), label)
			if i == m.selectedIdx {
				line = StyleSelectedRow.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// statusIcon returns a styled state glyph, the same set the run summary uses.
func statusIcon(status string) string {
	switch status {
	case "running":
		return StyleStatusRunning.Render("⟳")
	case "completed":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// selectedTaskID returns the ID of the currently selected task.
func (m TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

// refreshDetail rebuilds the viewport content for the selected task.
func (m *TaskPaneModel) refreshDetail() {
	taskID := m.selectedTaskID()
	entry, exists := m.tasks[taskID]
	if !exists {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task:      %s\n", entry.ID)
	fmt.Fprintf(&b, "Operation: %s\n", entry.Operation)
	fmt.Fprintf(&b, "Status:    %s %s\n", statusIcon(entry.Status), entry.Status)
	if !entry.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started:   %s\n", entry.StartedAt.Format("15:04:05"))
	}
	if entry.Status == "completed" || entry.Status == "failed" {
		fmt.Fprintf(&b, "Duration:  %.2fs\n", entry.Duration.Seconds())
	}

	switch entry.Status {
	case "completed":
		fmt.Fprintf(&b, "\nResult:\n%s\n", entry.Result)
	case "failed":
		fmt.Fprintf(&b, "\nError:\n%s\n", entry.Err)
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoTop()
}

// resizeViewport resizes the detail viewport to the pane dimensions.
func (m *TaskPaneModel) resizeViewport() {
	listWidth := 24
	detailWidth := m.width - listWidth - 4
	detailHeight := m.height - 4 // borders

	if detailWidth < 10 {
		detailWidth = 10
	}
	if detailHeight < 5 {
		detailHeight = 5
	}

	m.viewport.Width = detailWidth
	m.viewport.Height = detailHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
