package tui

import (
	"fmt"
	"strings"

	"github.com/imamik/proxk8s/internal/artifacts"
	"github.com/imamik/proxk8s/internal/reconcile"
)

// maxListed bounds the failures listed in the summary box.
const maxListed = 10

// RenderSummary renders the end-of-run box.
func RenderSummary(s artifacts.Summary, runDir string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("proxk8s %s: %s", s.Scope, s.Cluster)))
	b.WriteString("\n")

	switch s.ExitCode {
	case 0:
		b.WriteString(readyStyle.Render(checkMark + " converged"))
	case 2:
		b.WriteString(warningStyle.Render(warnMark + " completed with non-fatal failures"))
	default:
		b.WriteString(failedStyle.Render(crossMark + " failed"))
	}
	fmt.Fprintf(&b, "  %s\n", dimStyle.Render("in "+s.Elapsed))

	var counts []string
	for _, st := range statusStyles {
		if n := s.Counts[st.status]; n > 0 {
			counts = append(counts, st.style.Render(fmt.Sprintf("%s %d", st.status, n)))
		}
	}
	if len(counts) > 0 {
		b.WriteString(strings.Join(counts, dimStyle.Render("  ·  ")))
		b.WriteString("\n")
	}

	if s.Error != "" {
		fmt.Fprintf(&b, "%s\n", failedStyle.Render(s.Error))
	}

	listed := 0
	for _, o := range s.Outcomes {
		if o.Succeeded() {
			continue
		}
		if listed == maxListed {
			b.WriteString(dimStyle.Render("  ... see outcomes.yaml"))
			b.WriteString("\n")
			break
		}
		listed++
		style := warningStyle
		if o.Status == reconcile.StatusFailed {
			style = failedStyle
		}
		resource := o.Target
		if o.Name != "" && o.Name != o.Target {
			resource += "/" + o.Name
		}
		fmt.Fprintf(&b, "  %s %s %s\n", style.Render(string(o.Status)), dimStyle.Render("["+o.Phase+"] "+o.Kind+" "+resource), o.Message)
	}

	b.WriteString(dimStyle.Render("artifacts: " + runDir))
	return boxStyle.Render(b.String())
}
