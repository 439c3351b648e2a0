package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/pgsentry/pgsentry/internal/run"
)

// Subject builds the notification subject line for a report.
func Subject(prefix string, report *run.Report) string {
	if prefix == "" {
		prefix = "[pgsentry]"
	}
	return fmt.Sprintf("%s %s backup %s: %s",
		prefix, report.Database, report.Token, report.Verdict)
}

// Render produces the deterministic plain-text body for a run report.
// Presentation lives here and nowhere else; the report itself is pure data.
func Render(report *run.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Backup run %s for database %q finished: %s\n",
		report.Token, report.Database, report.Verdict)
	fmt.Fprintf(&b, "Started:  %s\n", report.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Finished: %s\n", report.FinishedAt.UTC().Format("2006-01-02 15:04:05 MST"))

	if report.Reason != "" {
		fmt.Fprintf(&b, "\nFailure reason: %s\n", report.Reason)
	}

	if len(report.Tasks) > 0 {
		b.WriteString("\nTasks:\n")
		for _, t := range report.Tasks {
			fmt.Fprintf(&b, "  %-14s %-9s %12d bytes  %s\n",
				t.Spec.Name, t.Status, t.SizeBytes, t.Duration.Truncate(time.Millisecond))
			for _, a := range t.Artifacts {
				fmt.Fprintf(&b, "    %s (%s)\n", a.Path, a.Kind)
			}
			if t.Error != "" {
				fmt.Fprintf(&b, "    error: %s\n", t.Error)
			}
		}
	} else {
		b.WriteString("\nNo tasks were executed.\n")
	}

	if len(report.Uploads) > 0 {
		b.WriteString("\nUploads:\n")
		for _, u := range report.Uploads {
			fmt.Fprintf(&b, "  %-9s %s\n", u.Status, u.Artifact.Path)
			if u.Error != "" {
				fmt.Fprintf(&b, "    error: %s\n", u.Error)
			}
		}
	}

	if tail := report.FailureTail(); len(tail) > 0 {
		b.WriteString("\nLast producer output:\n")
		for _, line := range tail {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	return b.String()
}
