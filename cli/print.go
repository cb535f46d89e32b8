package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/OiAnthony/image-deduplicate/exporter"
	"github.com/OiAnthony/image-deduplicate/grouping"
	"github.com/OiAnthony/image-deduplicate/types"
	"github.com/OiAnthony/image-deduplicate/utils"

	"github.com/fatih/color"
)

func printSummary(w io.Writer, result *types.Result) {
	s := result.Stats
	fmt.Fprintf(w, "Scanned %s (%d cached, %d hashed", utils.Plural(s.Total, "image"), s.CacheHits, s.Computed)
	if s.Failed > 0 {
		color.New(color.FgRed).Fprintf(w, ", %d failed", s.Failed)
	}
	fmt.Fprintln(w, ")")

	green := color.New(color.FgGreen)
	green.Fprintf(w, "%s", utils.Plural(s.Groups, "unique image"))
	fmt.Fprintf(w, ", %s", utils.Plural(s.Duplicates, "duplicate"))
	if s.ReclaimableSize > 0 {
		fmt.Fprintf(w, " (%s reclaimable)", utils.FormatBytes(s.ReclaimableSize))
	}
	fmt.Fprintln(w)
}

func printProblems(w io.Writer, result *types.Result) {
	yellow := color.New(color.FgYellow)
	for _, warn := range result.Warnings {
		yellow.Fprintf(w, "warning: %v\n", warn)
	}
	for _, f := range result.Failures {
		yellow.Fprintf(w, "skipped %s: %v\n", f.Path, f.Err)
	}
}

// printGroups lists groups with more than one member. The representative is
// marked with '*' and every member shows its distance from the group's fingerprint.
func printGroups(w io.Writer, result *types.Result) {
	cyan := color.New(color.FgCyan)
	n := 0
	for i, g := range result.Groups {
		if len(g.Members) < 2 {
			continue
		}
		n++
		cyan.Fprintf(w, "group %d (%d images)\n", n, len(g.Members))
		for _, m := range g.Members {
			marker := " "
			if m.Path == result.Representatives[i].Path {
				marker = "*"
			}
			fmt.Fprintf(w, "  %s %s  [distance %d, %s]\n", marker, m.Path,
				grouping.DistanceFromRepresentative(g, m), utils.FormatBytes(m.Size))
		}
	}
	if n == 0 {
		fmt.Fprintln(w, "No duplicates found")
	}
}

func printCopies(w io.Writer, report *exporter.Report, dryRun bool) {
	verb := "Copied"
	if dryRun {
		verb = "Would copy"
	}
	for _, c := range report.Copied {
		fmt.Fprintf(w, "%s: %s -> %s", verb, filepath.Base(c.Source), filepath.Base(c.Dest))
		if c.Members > 1 {
			fmt.Fprintf(w, " (%d similar)", c.Members-1)
		}
		fmt.Fprintln(w)
	}
	red := color.New(color.FgRed)
	for _, f := range report.Failures {
		red.Fprintf(w, "Error copying %s: %v\n", f.Path, f.Err)
	}
}
