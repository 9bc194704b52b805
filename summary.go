package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"jpegsize/core"
	"jpegsize/experiment"

	"github.com/fatih/color"
)

// printSummary writes the end-of-run report.
func printSummary(w io.Writer, s *experiment.Summary) {
	fmt.Fprintln(w)
	color.New(color.FgCyan, color.Bold).Fprintf(w, "━━━ Results ━━━\n")

	rate := color.New(color.FgGreen, color.Bold)
	if s.Correct*2 < s.Total {
		rate = color.New(color.FgYellow, color.Bold)
	}
	rate.Fprintf(w, "  Solved %d/%d", s.Correct, s.Total)
	fmt.Fprintf(w, " (%s)\n", core.FormatPercent(int64(s.Correct), int64(s.Total)))

	dim := color.New(color.FgHiBlack)
	dim.Fprintf(w, "  wrong %d, failed %d, %d encodings in %v\n",
		s.Wrong, s.Failed, s.OracleCalls, s.Duration.Round(time.Millisecond))

	modes := make([]string, 0, len(s.ByMode))
	for mode := range s.ByMode {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		m := s.ByMode[mode]
		fmt.Fprintf(w, "  %-5s %d trials, %.1f%% solved, %v per trial, %d encodings\n",
			mode, m.Count, m.SuccessRate, m.AvgDuration.Round(time.Millisecond), m.OracleCalls)
	}

	if s.Failed > 0 {
		color.New(color.FgRed).Fprintf(w, "  %d trials failed; latest:\n", s.Failed)
		for _, t := range s.RecentFailures {
			fmt.Fprintf(w, "    %s: %s\n", t.Image, t.ErrorMsg)
		}
	}
	if s.Interrupted {
		color.New(color.FgYellow).Fprintln(w, "  Interrupted before the corpus was finished")
	}
	if s.Stored != nil {
		dim.Fprintf(w, "  stored %d trials (%.1f%% solved) in the database\n", s.Stored.Total, s.Stored.SuccessRate)
	}
	dim.Fprintf(w, "  run %s", s.RunID)
	if s.Version != "" {
		dim.Fprintf(w, " (jpegsize %s)", s.Version)
	}
	fmt.Fprint(w, "\n\n")
}
