// Package exporter copies group representatives into an output directory
// under sequential names.
package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/OiAnthony/image-deduplicate/logging"
	"github.com/OiAnthony/image-deduplicate/types"

	"github.com/spf13/afero"
)

// Options controls an export
type Options struct {
	// DryRun computes destinations without touching the filesystem
	DryRun bool
}

// CopyPlan describes one representative and where it goes
type CopyPlan struct {
	Source  string
	Dest    string
	Size    int64
	Members int
}

// Report lists what was (or, in a dry run, would be) copied
type Report struct {
	Copied   []CopyPlan
	Failures []types.Failure
	Bytes    int64
}

// CopyRepresentatives copies each group's representative to outDir as
// 0001.ext, 0002.ext, ... with groups ordered by the path of their first
// member. Modification times are preserved. A failed copy is recorded and
// does not consume a number.
func CopyRepresentatives(fs afero.Fs, result *types.Result, outDir string, opts Options) (*Report, error) {
	if len(result.Groups) != len(result.Representatives) {
		return nil, fmt.Errorf("result has %d groups but %d representatives", len(result.Groups), len(result.Representatives))
	}

	if !opts.DryRun {
		if err := fs.MkdirAll(outDir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	order := make([]int, len(result.Groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return result.Groups[order[a]].Founder().Path < result.Groups[order[b]].Founder().Path
	})

	report := &Report{}
	counter := 1
	for _, i := range order {
		rep := result.Representatives[i]
		plan := CopyPlan{
			Source:  rep.Path,
			Dest:    filepath.Join(outDir, fmt.Sprintf("%04d%s", counter, strings.ToLower(filepath.Ext(rep.Path)))),
			Size:    rep.Size,
			Members: len(result.Groups[i].Members),
		}

		if !opts.DryRun {
			if err := copyFile(fs, rep, plan.Dest); err != nil {
				logging.LogError("Failed to copy %s: %v", rep.Path, err)
				report.Failures = append(report.Failures, types.Failure{Path: rep.Path, Err: err})
				continue
			}
			logging.DebugLog("Copied: %s -> %s", rep.Path, plan.Dest)
		}

		report.Copied = append(report.Copied, plan)
		report.Bytes += plan.Size
		counter++
	}
	return report, nil
}

func copyFile(fs afero.Fs, rep types.ImageRecord, dest string) error {
	src, err := fs.Open(rep.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := fs.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}

	modTime := rep.ModTime
	if modTime.IsZero() {
		info, err := src.Stat()
		if err != nil {
			return err
		}
		modTime = info.ModTime()
	}
	return fs.Chtimes(dest, modTime, modTime)
}
