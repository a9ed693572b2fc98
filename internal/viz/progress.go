package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/buoyopt/internal/optim"
)

// GenerationMsg reports one finished generation to the progress view.
type GenerationMsg optim.GenerationStats

// DoneMsg ends the progress view with the search result.
type DoneMsg struct {
	Outcome optim.Outcome
	Err     error
}

// Progress is a live view of a running search. The search runs in its own
// goroutine and feeds the view through tea.Program.Send.
type Progress struct {
	title    string
	total    int
	cancel   func()
	history  []GenerationMsg
	best     []float64
	done     bool
	outcome  optim.Outcome
	err      error
	quitting bool
}

// NewProgress builds a view expecting total generations; cancel is called
// when the user quits early.
func NewProgress(title string, total int, cancel func()) Progress {
	return Progress{title: title, total: total, cancel: cancel}
}

func (m Progress) Init() tea.Cmd { return nil }

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			if m.done {
				return m, tea.Quit
			}
		}
	case GenerationMsg:
		m.history = append(m.history, msg)
		if msg.Best.Status == optim.StatusFeasible {
			m.best = append(m.best, msg.Best.MeanPower/1000)
		}
	case DoneMsg:
		m.done = true
		m.outcome = msg.Outcome
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Progress) View() string {
	var s strings.Builder
	s.WriteString(headerStyle().Render(strings.ToUpper(m.title)) + "\n\n")

	gen := 0
	if n := len(m.history); n > 0 {
		gen = m.history[n-1].Generation
	}
	frac := 0.0
	if m.total > 0 {
		frac = float64(gen) / float64(m.total)
	}
	fmt.Fprintf(&s, "%s %d/%d\n\n", ProgressBar(frac, 30), gen, m.total)

	if n := len(m.history); n > 0 {
		last := m.history[n-1]
		s.WriteString(row("Evaluations", fmt.Sprintf("%d", last.Evaluations)))
		s.WriteString(row("Feasible", fmt.Sprintf("%d", last.Feasible)))
		s.WriteString(row("Score spread", fmt.Sprintf("%.3g", last.StdScore)))
		s.WriteString("\n" + RenderEvaluation(last.Best))
	}
	if len(m.best) > 1 {
		s.WriteString("\n" + Plot(m.best, "best mean power (kW)", 6, 40))
	}

	switch {
	case m.err != nil:
		s.WriteString("\n" + StatusStyle(optim.StatusFailed).Render("error: "+m.err.Error()) + "\n")
	case m.done:
		s.WriteString("\n" + StatusStyle(optim.StatusFeasible).Render("done: "+m.outcome.Message) + "\n")
	case m.quitting:
		s.WriteString("\n" + helpStyle().Render("stopping...") + "\n")
	default:
		s.WriteString("\n" + helpStyle().Render("q: stop") + "\n")
	}
	return s.String()
}

// Result is the outcome delivered by DoneMsg.
func (m Progress) Result() (optim.Outcome, error) { return m.outcome, m.err }

func (m Progress) Done() bool { return m.done }
