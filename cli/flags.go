package cli

import (
	"strings"

	"github.com/OiAnthony/image-deduplicate/config"
	"github.com/OiAnthony/image-deduplicate/grouping"
	"github.com/OiAnthony/image-deduplicate/imageprocessor"
	"github.com/OiAnthony/image-deduplicate/signalhandler"

	"github.com/spf13/cobra"
)

// pipelineFlags are shared by the commands that run the full pipeline
type pipelineFlags struct {
	threshold    int
	hashSize     int
	algorithm    string
	selectPolicy string
	workers      int
	noCache      bool
}

var pipeline pipelineFlags

func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&pipeline.threshold, "threshold", "t", config.DefaultThreshold, "Maximum Hamming distance for two images to be duplicates")
	f.IntVarP(&pipeline.hashSize, "hash-size", "s", config.DefaultHashSize, "Hash grid size; fingerprints have size*size bits")
	f.StringVar(&pipeline.algorithm, "algorithm", string(imageprocessor.AlgorithmAverage), "Hash algorithm: "+joinAlgorithms())
	f.StringVar(&pipeline.selectPolicy, "select", string(grouping.PolicyFirst), "Representative policy: "+joinPolicies())
	f.IntVar(&pipeline.workers, "workers", signalhandler.GetOptimalProcs(), "Number of hashing workers")
	f.BoolVar(&pipeline.noCache, "no-cache", false, "Do not read or write the hash cache")
}

// applyFlags copies explicitly set flags over cfg
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("threshold") {
		cfg.Group.Threshold = pipeline.threshold
	}
	if f.Changed("hash-size") {
		cfg.Hash.Size = pipeline.hashSize
	}
	if f.Changed("algorithm") {
		cfg.Hash.Algorithm = pipeline.algorithm
	}
	if f.Changed("select") {
		cfg.Group.Select = pipeline.selectPolicy
	}
	if f.Changed("workers") {
		cfg.Scan.Workers = pipeline.workers
	}
	if f.Changed("no-cache") {
		cfg.Cache.Disabled = pipeline.noCache
	}
	if f.Changed("cache") {
		cfg.Cache.Path = cachePath
	}
	if f.Changed("cache-backend") {
		cfg.Cache.Backend = cacheBackend
	}
	if f.Changed("logfile") {
		cfg.Log.File = logFilePath
	}
}

func joinAlgorithms() string {
	names := make([]string, len(imageprocessor.Algorithms))
	for i, a := range imageprocessor.Algorithms {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}

func joinPolicies() string {
	names := make([]string, len(grouping.Policies))
	for i, p := range grouping.Policies {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
