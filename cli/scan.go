package cli

import (
	"github.com/OiAnthony/image-deduplicate/logging"
	"github.com/OiAnthony/image-deduplicate/signalhandler"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <input_dir>",
	Short: "List groups of duplicate images without copying anything",
	Args:  cobra.ExactArgs(1),
	Run:   runScan,
}

var scanJSON bool

func init() {
	addPipelineFlags(scanCmd)
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print every group as JSON")
}

func runScan(cmd *cobra.Command, args []string) {
	cfg := initCommand(cmd)
	defer logging.CloseLogger()

	ctx, stop := signalhandler.SetupHandler(cmd.Context())
	defer stop()

	result, err := runPipeline(ctx, cfg, args[0], progressWriter())
	if err != nil {
		if signalhandler.Interrupted(err) {
			exitError("interrupted")
		}
		exitError("%v", err)
	}

	out := cmd.OutOrStdout()
	if scanJSON {
		if err := writeScanJSON(out, result); err != nil {
			exitError("failed to write JSON: %v", err)
		}
		return
	}
	printGroups(out, result)
	printProblems(out, result)
	printSummary(out, result)
}
