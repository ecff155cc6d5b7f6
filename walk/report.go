package walk

import (
	"fmt"
	"io"
	"strings"
)

const reportRuleWidth = 65

// WriteReport renders ring statistics as a fixed-width table.
func WriteReport(w io.Writer, stats []RingStat) error {
	if _, err := fmt.Fprintf(w, "%4s | %8s | %13s | %16s | %11s\n",
		"Ring", "Squares", "Total Visits", "Avg per Square", "% of Steps"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", reportRuleWidth)); err != nil {
		return err
	}
	for _, s := range stats {
		if _, err := fmt.Fprintf(w, "%4d | %8d | %13d | %16.2f | %10.2f%%\n",
			s.Ring, s.Squares, s.Visits, s.AvgPerSquare, s.PctOfSteps); err != nil {
			return err
		}
	}
	return nil
}
