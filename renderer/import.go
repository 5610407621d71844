package renderer

import (
	"fmt"
	"strings"
	"time"

	"github.com/DarioAlonsoCerezo/binnacle"
)

// ImportMarkdown renders the outcome of one import batch.
func ImportMarkdown(r *binnacle.ImportResult) string {
	var b strings.Builder

	status := "succeeded"
	if !r.Success {
		status = "failed"
	}
	fmt.Fprintf(&b, "# Import Report\n\n")
	fmt.Fprintf(&b, "The batch %s: %d files in %s.\n\n", status, r.ProcessedFiles, r.ProcessingTime.Round(time.Millisecond))

	failed := r.TotalRecords - r.ProcessedRecords - r.SkippedRecords
	fmt.Fprintln(&b, "| Rows | Count |")
	fmt.Fprintln(&b, "|:---|---:|")
	fmt.Fprintf(&b, "| Converted | %d |\n", r.ProcessedRecords)
	fmt.Fprintf(&b, "| Skipped | %d |\n", r.SkippedRecords)
	fmt.Fprintf(&b, "| Failed | %d |\n", failed)
	fmt.Fprintf(&b, "| **Total** | **%d** |\n", r.TotalRecords)

	fmt.Fprint(&b, "\n## Records\n\n")
	fmt.Fprintln(&b, "| Kind | Count |")
	fmt.Fprintln(&b, "|:---|---:|")
	fmt.Fprintf(&b, "| Equity trades | %d |\n", r.Summary.Trades)
	fmt.Fprintf(&b, "| Option trades | %d |\n", r.Summary.OptionTrades)
	fmt.Fprintf(&b, "| Cash movements | %d |\n", r.Summary.BrokerMovements)
	fmt.Fprintf(&b, "| Dividends | %d |\n", r.Summary.Dividends)
	fmt.Fprintf(&b, "| New tickers | %d |\n", r.Summary.NewTickers)

	if len(r.Files) > 0 {
		fmt.Fprint(&b, "\n## Files\n\n")
		fmt.Fprintln(&b, "| File | State | Converted | Skipped | Errors |")
		fmt.Fprintln(&b, "|:---|:---|---:|---:|---:|")
		for _, f := range r.Files {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d |\n", f.File, f.State, f.Processed, f.Skipped, f.Errors)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprint(&b, "\n## Errors\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- %s: %s\n", e.Kind, e.Error())
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprint(&b, "\n## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
