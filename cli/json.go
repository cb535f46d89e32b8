package cli

import (
	"encoding/json"
	"io"

	"github.com/OiAnthony/image-deduplicate/types"
)

type jsonGroup struct {
	Representative string              `json:"representative"`
	Fingerprint    types.Fingerprint   `json:"fingerprint"`
	Members        []types.ImageRecord `json:"members"`
}

type jsonFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type scanReport struct {
	Groups   []jsonGroup    `json:"groups"`
	Failures []jsonFailure  `json:"failures"`
	Warnings []string       `json:"warnings,omitempty"`
	Stats    types.RunStats `json:"stats"`
}

// writeScanJSON encodes the result with fingerprints in their hex form
func writeScanJSON(w io.Writer, result *types.Result) error {
	report := scanReport{
		Groups:   make([]jsonGroup, 0, len(result.Groups)),
		Failures: make([]jsonFailure, 0, len(result.Failures)),
		Stats:    result.Stats,
	}
	for i, g := range result.Groups {
		report.Groups = append(report.Groups, jsonGroup{
			Representative: result.Representatives[i].Path,
			Fingerprint:    g.Representative,
			Members:        g.Members,
		})
	}
	for _, f := range result.Failures {
		report.Failures = append(report.Failures, jsonFailure{Path: f.Path, Error: f.Err.Error()})
	}
	for _, warn := range result.Warnings {
		report.Warnings = append(report.Warnings, warn.Error())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
