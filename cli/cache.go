package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/OiAnthony/image-deduplicate/config"
	"github.com/OiAnthony/image-deduplicate/database"
	"github.com/OiAnthony/image-deduplicate/logging"
	"github.com/OiAnthony/image-deduplicate/utils"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the hash cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show hash cache statistics",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withCache(cmd, func(cfg *config.Config, c *database.Cache) error {
			printCacheStats(cmd.OutOrStdout(), cfg, c)
			return nil
		})
	},
}

var pruneOtherProfiles bool

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove entries for files that no longer exist or have changed",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withCache(cmd, func(cfg *config.Config, c *database.Cache) error {
			removed, err := pruneCache(c, appFs, pruneOtherProfiles)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Removed %d entries, %d remaining\n",
				removed, c.Len())
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry from the hash cache",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withCache(cmd, func(cfg *config.Config, c *database.Cache) error {
			n := c.Len()
			if err := c.Clear(); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Cleared %d entries from %s\n",
				n, cfg.Cache.Path)
			return nil
		})
	},
}

func init() {
	cachePruneCmd.Flags().BoolVar(&pruneOtherProfiles, "other-profiles", false, "Also remove entries computed with a different algorithm or hash size")
	// hash flags pick the profile that stats and prune compare against
	cacheCmd.PersistentFlags().IntVarP(&pipeline.hashSize, "hash-size", "s", config.DefaultHashSize, "Hash grid size of the current profile")
	cacheCmd.PersistentFlags().StringVar(&pipeline.algorithm, "algorithm", "average", "Hash algorithm of the current profile")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func withCache(cmd *cobra.Command, fn func(*config.Config, *database.Cache) error) {
	cfg := initCommand(cmd)
	defer logging.CloseLogger()

	if cfg.CacheBackend() == database.BackendMemory {
		exitError("the hash cache is disabled; nothing to do")
	}

	c, err := openCache(cfg)
	if err != nil {
		exitError("%v", err)
	}
	if rec := c.Recovered(); rec != nil {
		color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "warning: %v\n", rec)
	}

	fnErr := fn(cfg, c)
	if err := c.Close(); err != nil && fnErr == nil {
		fnErr = err
	}
	if fnErr != nil {
		exitError("%v", fnErr)
	}
}

// pruneCache removes entries whose file is gone or no longer matches its
// recorded size and modification time
func pruneCache(c *database.Cache, fs afero.Fs, otherProfiles bool) (int, error) {
	current := c.Profile()
	return c.Prune(func(e database.Entry) bool {
		if otherProfiles && e.Profile() != current {
			return false
		}
		info, err := fs.Stat(e.Path)
		if err != nil {
			logging.DebugLog("Pruning %s: %v", e.Path, err)
			return false
		}
		return e.Matches(info.Size(), info.ModTime())
	})
}

func printCacheStats(w io.Writer, cfg *config.Config, c *database.Cache) {
	stats := c.Stats()
	bold := color.New(color.Bold)

	bold.Fprintln(w, "Hash cache")
	fmt.Fprintf(w, "  backend:  %s\n", cfg.Cache.Backend)
	fmt.Fprintf(w, "  path:     %s\n", cfg.Cache.Path)
	if info, err := afero.NewOsFs().Stat(cfg.Cache.Path); err == nil {
		fmt.Fprintf(w, "  size:     %s\n", utils.FormatBytes(info.Size()))
	}
	fmt.Fprintf(w, "  entries:  %d\n", stats.Entries)

	profiles := make([]database.Profile, 0, len(stats.ByProfile))
	for p := range stats.ByProfile {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].String() < profiles[j].String() })

	for _, p := range profiles {
		marker := " "
		if p == c.Profile() {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s %-16s %d\n", marker, p, stats.ByProfile[p])
	}
}
