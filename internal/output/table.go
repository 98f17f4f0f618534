package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tendergate/tendergate/internal/store"
)

// TableFormatter renders violation records as an ASCII table.
type TableFormatter struct{}

// FormatViolations renders violation records as a table, most recent first.
func (f *TableFormatter) FormatViolations(records []store.ViolationRecord) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Identifier", "Endpoint", "Violations", "Window", "Blocked", "Occurred"})

	blocked := 0
	for _, rec := range records {
		v := rec.Violation
		if v.Blocked {
			blocked++
		}
		t.AppendRow(table.Row{
			rec.ID,
			v.Identifier,
			v.Endpoint,
			v.ViolationCount,
			formatWindow(v.WindowStart, v.WindowEnd),
			yesNo(v.Blocked),
			v.OccurredAt.Format(time.RFC3339),
		})
	}

	if len(records) > 0 {
		summary := fmt.Sprintf("%d violations", len(records))
		if blocked > 0 {
			summary += fmt.Sprintf(", %d blocked", blocked)
		}
		t.AppendFooter(table.Row{"", "", "", "", "", "", summary})
	}

	return t.Render(), nil
}

func formatWindow(start, end time.Time) string {
	if start.IsZero() && end.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s - %s", start.Format("15:04:05"), end.Format("15:04:05"))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
