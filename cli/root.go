// Package cli implements the image-dedup command line.
package cli

import (
	"fmt"
	"os"

	"github.com/OiAnthony/image-deduplicate/config"
	"github.com/OiAnthony/image-deduplicate/logging"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// appFs is the filesystem images are read from and written to
var appFs afero.Fs = afero.NewOsFs()

var (
	configPath   string
	debugMode    bool
	logFilePath  string
	cachePath    string
	cacheBackend string
)

var rootCmd = &cobra.Command{
	Use:   "image-dedup",
	Short: "Find visually duplicate images",
	Long: `image-dedup fingerprints every image in a directory with a perceptual hash,
groups images whose fingerprints are within a Hamming distance threshold and
keeps one representative per group.

Fingerprints are cached between runs, keyed by path, size and modification time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ./"+config.DefaultFile+" if present)")
	pf.BoolVar(&debugMode, "debug", false, "Enable debug logging")
	pf.StringVar(&logFilePath, "logfile", "", "Write log output to this file")
	pf.StringVar(&cachePath, "cache", "", "Hash cache location")
	pf.StringVar(&cacheBackend, "cache-backend", "", "Hash cache backend: sqlite, bolt or memory")

	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cacheCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	logging.CloseLogger()
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// loadConfig resolves the configuration for cmd: defaults, then the config
// file, then flags given on the command line
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogging configures the logger from cfg, honoring --debug
func setupLogging(cfg *config.Config) error {
	level := cfg.Log.Level
	if debugMode {
		level = "debug"
	}
	return logging.SetupLogger(level, cfg.Log.File)
}

// initCommand loads config and logging, exiting on failure
func initCommand(cmd *cobra.Command) *config.Config {
	cfg, err := loadConfig(cmd)
	if err != nil {
		exitError("%v", err)
	}
	if err := setupLogging(cfg); err != nil {
		exitError("failed to set up logging: %v", err)
	}
	if cfg.Source() != "" {
		logging.DebugLog("Loaded configuration from %s", cfg.Source())
	}
	return cfg
}
