package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/proxk8s/internal/reconcile"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder
	renderHeader(&b, m)
	renderProgressBar(&b, m)
	renderPhases(&b, m)
	renderCounts(&b, m)
	if len(m.Problems) > 0 {
		renderProblems(&b, m)
	}
	renderFooter(&b, m)
	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	b.WriteString(titleStyle.Render(fmt.Sprintf("proxk8s: %s (%s)", m.ClusterName, m.Scope)))

	status := " "
	switch {
	case m.Done && m.Err != nil:
		status += failedStyle.Render("Failed")
	case m.Done:
		status += readyStyle.Render("Finished")
	default:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame)) + " " + warningStyle.Render("reconciling")
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = max(m.Width-30, 10)
	}
	filled := min(int(float64(barWidth)*m.progress()), barWidth)

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))
	fmt.Fprintf(b, "  %s %d%%\n", bar, int(m.progress()*100))
}

func renderPhases(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Phases"))
	b.WriteString("\n")

	for _, phase := range m.Phases {
		var icon string
		var style styleFunc
		switch {
		case phase.Err != nil:
			icon = crossMark
			style = sf(failedStyle)
		case phase.Done:
			icon = checkMark
			style = sf(readyStyle)
		case phase.Active:
			icon = currentSpinner(m.SpinnerFrame)
			style = sf(activeStyle)
		default:
			icon = pending
			style = sf(dimStyle)
		}
		fmt.Fprintf(b, "    %s %s\n", style(icon), style(phase.Name))
	}
}

func renderCounts(b *strings.Builder, m Model) {
	var parts []string
	for _, s := range statusStyles {
		if n := m.Counts[s.status]; n > 0 {
			parts = append(parts, s.style.Render(fmt.Sprintf("%s %d", s.status, n)))
		}
	}
	if len(parts) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render("  Resources"))
	b.WriteString("\n    ")
	b.WriteString(strings.Join(parts, dimStyle.Render("  ·  ")))
	b.WriteString("\n")
}

func renderProblems(b *strings.Builder, m Model) {
	b.WriteString(sectionStyle.Render("  Problems"))
	b.WriteString("\n")
	for _, p := range m.Problems {
		icon, style := warnMark, sf(warningStyle)
		if p.Status == reconcile.StatusFailed {
			icon, style = crossMark, sf(failedStyle)
		}
		fmt.Fprintf(b, "    %s %s %s\n", style(icon), dimStyle.Render("["+p.Phase+"] "+p.Resource), p.Message)
	}
}

func renderFooter(b *strings.Builder, m Model) {
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed: %s  |  ctrl+c: interrupt", formatDuration(time.Since(m.StartTime)))))
	b.WriteString("\n")
}

func currentSpinner(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
