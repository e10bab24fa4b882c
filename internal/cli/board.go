package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/mpt/internal/core"
	"github.com/valter-silva-au/mpt/pkg/models"
)

type boardModel struct {
	ctx       context.Context
	actor     *models.Actor
	projectID int64

	activeColumn int
	cursor       [3]int
	width        int
	height       int

	// Data.
	project models.Project
	columns [3][]models.Task
	stats   models.ProjectStats
	alerts  int

	// State.
	loading bool
	notice  string
	err     error
}

// boardLoadedMsg carries loaded data back to the model.
type boardLoadedMsg struct {
	project models.Project
	tasks   []models.Task
	alerts  int
	err     error
}

// taskMovedMsg reports the result of a status change made from the board.
type taskMovedMsg struct {
	task models.Task
	err  error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)

	statusTodo       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusDone       = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	priorityHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	priorityLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	historyTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newBoardModel(ctx context.Context, actor *models.Actor, projectID int64) boardModel {
	return boardModel{
		ctx:       ctx,
		actor:     actor,
		projectID: projectID,
		loading:   true,
	}
}

func (m boardModel) Init() tea.Cmd {
	return m.load
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab", "right", "l":
			m.activeColumn = (m.activeColumn + 1) % len(models.Statuses)
			return m, nil
		case "shift+tab", "left", "h":
			m.activeColumn = (m.activeColumn - 1 + len(models.Statuses)) % len(models.Statuses)
			return m, nil
		case "down", "j":
			if m.cursor[m.activeColumn] < len(m.columns[m.activeColumn])-1 {
				m.cursor[m.activeColumn]++
			}
			return m, nil
		case "up", "k":
			if m.cursor[m.activeColumn] > 0 {
				m.cursor[m.activeColumn]--
			}
			return m, nil
		case "enter", " ":
			task, ok := m.selected()
			if !ok || m.activeColumn == len(models.Statuses)-1 {
				return m, nil
			}
			return m, m.move(task.ID, models.Statuses[m.activeColumn+1])
		case "backspace":
			task, ok := m.selected()
			if !ok || m.activeColumn == 0 {
				return m, nil
			}
			return m, m.move(task.ID, models.Statuses[m.activeColumn-1])
		case "r":
			m.loading = true
			return m, m.load
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.project = msg.project
		m.alerts = msg.alerts
		m.columns = [3][]models.Task{}
		for _, t := range msg.tasks {
			if i := columnOf(t.Status); i >= 0 {
				m.columns[i] = append(m.columns[i], t)
			}
		}
		for i := range m.cursor {
			if m.cursor[i] >= len(m.columns[i]) {
				m.cursor[i] = max(len(m.columns[i])-1, 0)
			}
		}
		m.stats = core.ComputeStats(m.projectID, msg.tasks)
		m.err = nil
		return m, nil

	case taskMovedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Error: %s", msg.err)
			return m, nil
		}
		m.notice = fmt.Sprintf("Task %d is %s", msg.task.ID, msg.task.Status)
		m.loading = true
		return m, m.load
	}

	return m, nil
}

func (m boardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(fmt.Sprintf(" mpt board: project %d ", m.projectID))
	if m.project.Name != "" {
		title = titleStyle.Render(fmt.Sprintf(" mpt board: %s ", m.project.Name))
	}
	help := helpStyle.Render("tab/←→: column | ↑↓: task | enter: advance | backspace: move back | r: refresh | q: quit")

	if m.loading && m.project.ID == 0 {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}
	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	availableWidth := m.width - 2
	var body string
	if availableWidth > 90 {
		colWidth := availableWidth/len(models.Statuses) - 4
		cols := make([]string, len(models.Statuses))
		for i := range models.Statuses {
			cols[i] = m.applyPanelStyle(i, m.renderColumn(i), colWidth)
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	} else {
		panelWidth := max(availableWidth-4, 20)
		cols := make([]string, len(models.Statuses))
		for i := range models.Statuses {
			cols[i] = m.applyPanelStyle(i, m.renderColumn(i), panelWidth)
		}
		body = lipgloss.JoinVertical(lipgloss.Left, cols...)
	}

	footer := m.renderFooter()
	if m.notice != "" {
		footer += "\n  " + m.notice
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s", title, body, footer, help)
}

func (m boardModel) applyPanelStyle(column int, content string, width int) string {
	style := panelStyle
	if m.activeColumn == column {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m boardModel) renderColumn(i int) string {
	status := models.Statuses[i]
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", status, len(m.columns[i]))))
	b.WriteString("\n")

	if len(m.columns[i]) == 0 {
		b.WriteString("  No tasks.")
		return b.String()
	}
	for j, t := range m.columns[i] {
		line := fmt.Sprintf("#%-4d %s %s", t.ID, priorityMarker(t.Priority), t.Name)
		if t.DueDate != nil {
			line += "  due " + t.DueDate.String()
		}
		if i == m.activeColumn && j == m.cursor[i] {
			line = selectedStyle.Render(line)
		} else {
			line = styleForStatus(status).Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m boardModel) renderFooter() string {
	s := m.stats
	footer := fmt.Sprintf("  %d task(s) | %d todo | %d in progress | %d done | %d%% complete",
		s.Total, s.Todo, s.InProgress, s.Done, s.Progress)
	if m.alerts > 0 {
		footer += " | " + severityHigh.Render(fmt.Sprintf("%d alert(s)", m.alerts))
	}
	return footer
}

func (m boardModel) selected() (models.Task, bool) {
	col := m.columns[m.activeColumn]
	if len(col) == 0 {
		return models.Task{}, false
	}
	return col[m.cursor[m.activeColumn]], true
}

func (m boardModel) load() tea.Msg {
	if ProjectSvc == nil || TaskSvc == nil {
		return boardLoadedMsg{err: fmt.Errorf("services not initialized")}
	}
	project, err := ProjectSvc.GetProject(m.ctx, m.projectID)
	if err != nil {
		return boardLoadedMsg{err: fmt.Errorf("loading project: %w", err)}
	}
	tasks, err := TaskSvc.ListTasks(m.ctx, m.projectID, nil)
	if err != nil {
		return boardLoadedMsg{err: fmt.Errorf("loading tasks: %w", err)}
	}

	result := boardLoadedMsg{project: project, tasks: tasks}
	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return boardLoadedMsg{err: fmt.Errorf("loading alerts: %w", err)}
		}
		result.alerts = len(alerts)
	}
	return result
}

func (m boardModel) move(taskID int64, status models.TaskStatus) tea.Cmd {
	return func() tea.Msg {
		if Mutator == nil || Policy == nil {
			return taskMovedMsg{err: fmt.Errorf("services not initialized")}
		}
		allowed, err := Policy.CanAccessTask(m.ctx, m.actor, taskID)
		if err != nil {
			return taskMovedMsg{err: err}
		}
		if !allowed {
			return taskMovedMsg{err: fmt.Errorf("moving task %d: %w", taskID, core.ErrForbidden)}
		}
		task, err := Mutator.UpdateStatus(m.ctx, m.actor, taskID, status)
		if err != nil && !isAuditOnly(err) {
			return taskMovedMsg{err: err}
		}
		return taskMovedMsg{task: task}
	}
}

func columnOf(s models.TaskStatus) int {
	for i, st := range models.Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

func priorityMarker(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return priorityHigh.Render("!!")
	case models.PriorityLow:
		return priorityLow.Render("..")
	default:
		return " ."
	}
}

func styleForStatus(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.StatusTodo:
		return statusTodo
	case models.StatusInProgress:
		return statusInProgress
	case models.StatusDone:
		return statusDone
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

var boardCmd = &cobra.Command{
	Use:   "board <project-id>",
	Short: "Interactive TUI board of a project's tasks",
	Long: `Launch an interactive terminal board showing a project's tasks in TODO,
IN_PROGRESS and DONE columns.

Move between columns with Tab or the arrow keys, select a task with up and
down, advance it with Enter, move it back with Backspace, refresh with r and
quit with q. Status changes are recorded in the task history.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProjectIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireServices(); err != nil {
			return err
		}
		projectID, err := parseID("project", args[0])
		if err != nil {
			return err
		}
		ctx, actor, err := actorContext(cmd)
		if err != nil {
			return err
		}
		allowed, err := Policy.CanAccessProject(ctx, actor, projectID)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("opening board of project %d: %w", projectID, core.ErrForbidden)
		}

		p := tea.NewProgram(newBoardModel(ctx, actor, projectID), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}
