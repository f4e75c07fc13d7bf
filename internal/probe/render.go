package probe

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Render writes the outcome as aligned text. Done runs print one table per
// dataset; other runs print the state and reason.
func Render(w io.Writer, out Outcome, verbose bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "run\t%s\n", out.RunID)
	fmt.Fprintf(tw, "state\t%s\n", out.State)
	if out.Reason != "" {
		fmt.Fprintf(tw, "reason\t%s\n", out.Reason)
	}
	if out.Message != "" {
		fmt.Fprintf(tw, "message\t%s\n", out.Message)
	}
	fmt.Fprintf(tw, "area\t%.2f %s (max %.0f)\n", out.Area, out.AreaMetric, out.MaxArea)

	for _, r := range out.Results {
		title := r.Dataset
		if r.Title != "" {
			title += " (" + r.Title + ")"
		}
		fmt.Fprintf(tw, "\n%s\n", title)
		fmt.Fprintln(tw, "class\tname\tcolor\tpercent")

		shares := r.Top
		if verbose {
			shares = r.Distribution.Shares
		}
		for _, s := range shares {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%6.2f%%\n", s.ClassID, s.Name, s.Color, s.Percentage)
		}
	}

	return tw.Flush()
}
