// Package renderer turns import results, snapshots, open positions and
// cash movements into markdown reports.
package renderer

import "time"

// day formats a record timestamp as its calendar day.
func day(t time.Time) string { return t.Format("2006-01-02") }

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
