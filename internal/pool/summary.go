package pool

import (
	"fmt"
	"io"
	"strings"

	"github.com/maltedev/review-scraper/internal/models"
)

// WriteSummary prints the end-of-run report: every success with its review
// count and every failure with its reason.
func WriteSummary(w io.Writer, t models.Tally) error {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Finished: %d of %d succeeded\n", t.Succeeded, t.Total)

	if len(t.Successes) > 0 {
		fmt.Fprintf(&b, "\nSucceeded (%d):\n", len(t.Successes))
		for _, r := range t.Successes {
			fmt.Fprintf(&b, "  + %s: %d reviews", r.ProductName, r.ReviewCount)
			if r.OutputPath != "" {
				fmt.Fprintf(&b, " -> %s", r.OutputPath)
			}
			b.WriteByte('\n')
		}
	}

	if len(t.Failures) > 0 {
		fmt.Fprintf(&b, "\nFailed (%d):\n", len(t.Failures))
		for _, r := range t.Failures {
			fmt.Fprintf(&b, "  - %s: %s\n", r.Task.URL, r.Reason())
		}
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}
