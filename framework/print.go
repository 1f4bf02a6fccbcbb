package framework

import (
	"fmt"
	"io"
	"strings"
)

// PrintResults writes a summary of the run, listing every failed case with the errors it
// recorded.
func PrintResults(out io.Writer, results Results) {
	ran := len(results.Cases) - results.Skipped()
	if results.OK() {
		fmt.Fprintf(out, "All %d case(s) passed", ran)
	} else {
		fmt.Fprintf(out, "%d of %d case(s) failed", len(results.Failures), ran)
	}
	if n := results.Skipped(); n > 0 {
		fmt.Fprintf(out, " (%d skipped)", n)
	}
	fmt.Fprintln(out)

	for _, f := range results.Failures {
		fmt.Fprintf(out, "  %s [%s, reached %s]\n", f.CaseID, f.Kind, f.FinalState)
		for _, err := range f.Errors {
			lines := strings.Split(strings.TrimRight(err.Error(), "\n"), "\n")
			for i, line := range lines {
				if i == 0 {
					fmt.Fprintf(out, "    - %s\n", line)
				} else {
					fmt.Fprintf(out, "      %s\n", line)
				}
			}
		}
	}
}
