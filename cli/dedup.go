package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/OiAnthony/image-deduplicate/config"
	"github.com/OiAnthony/image-deduplicate/exporter"
	"github.com/OiAnthony/image-deduplicate/logging"
	"github.com/OiAnthony/image-deduplicate/signalhandler"
	"github.com/OiAnthony/image-deduplicate/utils"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup <input_dir> <output_dir>",
	Short: "Copy one image per group of duplicates to output_dir",
	Long: `Scan input_dir for images, group visually similar ones and copy a single
representative of each group to output_dir as 0001.jpg, 0002.png, ...

Groups are numbered in order of the path of their first image. Source files
are never modified.`,
	Args: cobra.ExactArgs(2),
	Run:  runDedupCmd,
}

var dryRun bool

func init() {
	addPipelineFlags(dedupCmd)
	dedupCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be copied without copying")
}

func runDedupCmd(cmd *cobra.Command, args []string) {
	cfg := initCommand(cmd)
	defer logging.CloseLogger()

	ctx, stop := signalhandler.SetupHandler(cmd.Context())
	defer stop()

	if err := dedup(ctx, cfg, args[0], args[1], dryRun, cmd.OutOrStdout(), progressWriter()); err != nil {
		if signalhandler.Interrupted(err) {
			exitError("interrupted")
		}
		exitError("%v", err)
	}
}

func dedup(ctx context.Context, cfg *config.Config, inputDir, outputDir string, dryRun bool, out, progress io.Writer) error {
	result, err := runPipeline(ctx, cfg, inputDir, progress)
	if err != nil {
		return err
	}

	report, err := exporter.CopyRepresentatives(appFs, result, outputDir, exporter.Options{DryRun: dryRun})
	if err != nil {
		return err
	}

	printCopies(out, report, dryRun)
	printProblems(out, result)
	printSummary(out, result)

	if !dryRun {
		color.New(color.FgGreen).Fprintf(out, "Copied %s (%s) to %s\n",
			utils.Plural(len(report.Copied), "image"), utils.FormatBytes(report.Bytes), outputDir)
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d of %d images could not be copied", len(report.Failures), len(result.Representatives))
	}
	return nil
}

// progressWriter returns stderr when it is a terminal, nil otherwise
func progressWriter() io.Writer {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return os.Stderr
	}
	return nil
}
