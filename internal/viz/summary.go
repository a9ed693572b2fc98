package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/buoyopt/internal/optim"
	"github.com/san-kum/buoyopt/internal/storage"
)

// RenderEvaluation shows one candidate's metrics.
func RenderEvaluation(ev optim.Evaluation) string {
	var s strings.Builder
	s.WriteString(row("Mass", fmt.Sprintf("%.1f kg", ev.Candidate.Mass)))
	s.WriteString(row("PTO damping", fmt.Sprintf("%.1f N·s/m", ev.Candidate.Damping)))
	s.WriteString(labelStyle().Render("Status") + StatusStyle(ev.Status).Render(ev.Status.String()) + "\n")
	if ev.Status == optim.StatusRejected || ev.Status == optim.StatusFailed {
		s.WriteString(row("Reason", ev.Reason))
		return s.String()
	}
	s.WriteString(row("Mean power", fmt.Sprintf("%.2f kW", ev.MeanPower/1000)))
	s.WriteString(row("Peak acceleration", fmt.Sprintf("%.3f m/s² at t=%.2f s", ev.PeakAcceleration, ev.PeakTime)))
	s.WriteString(row("Max displacement", fmt.Sprintf("%.3f m", ev.MaxDisplacement)))
	s.WriteString(row("Max PTO force", fmt.Sprintf("%.1f kN", ev.MaxPTOForce/1000)))
	for _, v := range ev.Violations {
		s.WriteString(row("Violated", v.String()))
	}
	return s.String()
}

// RenderOutcome is the end-of-search summary.
func RenderOutcome(out optim.Outcome) string {
	var s strings.Builder
	s.WriteString(headerStyle().Render("OPTIMIZATION RESULT") + "\n")
	s.WriteString(row("Strategy", out.Strategy))
	s.WriteString(row("Generations", fmt.Sprintf("%d", out.Generations)))
	s.WriteString(row("Evaluations", fmt.Sprintf("%d", out.Evaluations)))
	s.WriteString(row("Converged", fmt.Sprintf("%t", out.Converged)))
	if out.Polished {
		s.WriteString(row("Polished", "yes"))
	}
	s.WriteString(row("Message", out.Message))
	s.WriteString("\n" + RenderEvaluation(out.Best))

	if hist := bestPowerHistory(out.History); len(hist) > 1 {
		s.WriteString("\n" + Plot(hist, "best mean power per generation (kW)", 8, 60))
	}
	return panelStyle().Render(s.String())
}

func bestPowerHistory(h []optim.GenerationStats) []float64 {
	out := make([]float64, 0, len(h))
	for _, g := range h {
		if g.Best.Status == optim.StatusFeasible {
			out = append(out, g.Best.MeanPower/1000)
		}
	}
	return out
}

// Plot draws a terminal line chart; an empty series renders nothing.
func Plot(data []float64, caption string, height, width int) string {
	if len(data) == 0 {
		return ""
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
	return graphStyle().Render(graph)
}

func RenderRuns(runs []storage.RunMetadata) string {
	if len(runs) == 0 {
		return helpStyle().Render("no runs saved") + "\n"
	}
	var s strings.Builder
	s.WriteString(headerStyle().Render(fmt.Sprintf("%-34s %-9s %-10s %12s %12s %10s", "ID", "KIND", "STATUS", "MASS", "DAMPING", "POWER kW")) + "\n")
	for _, r := range runs {
		status := StatusStyle(r.Status).Render(fmt.Sprintf("%-10s", r.Status.String()))
		fmt.Fprintf(&s, "%-34s %-9s %s %12.1f %12.1f %10.2f\n",
			r.ID, r.Kind, status, r.Candidate.Mass, r.Candidate.Damping, r.Metrics["mean_power"]/1000)
	}
	return s.String()
}

func RenderRun(meta storage.RunMetadata) string {
	var s strings.Builder
	s.WriteString(headerStyle().Render(meta.ID) + "\n")
	s.WriteString(row("Kind", meta.Kind))
	s.WriteString(row("Source", meta.Source))
	s.WriteString(row("Saved", meta.Timestamp.Format("2006-01-02 15:04:05 MST")))
	if meta.Strategy != "" {
		s.WriteString(row("Strategy", meta.Strategy))
	}
	s.WriteString(row("Seed", fmt.Sprintf("%d", meta.Seed)))
	s.WriteString(row("Mass", fmt.Sprintf("%.1f kg", meta.Candidate.Mass)))
	s.WriteString(row("PTO damping", fmt.Sprintf("%.1f N·s/m", meta.Candidate.Damping)))
	s.WriteString(labelStyle().Render("Status") + StatusStyle(meta.Status).Render(meta.Status.String()) + "\n")
	return s.String()
}
