// Package scan classifies a project's declared dependencies as deprecated,
// healthy, or failed-to-check, and suggests replacements for the deprecated
// ones. It never touches the manifest.
package scan

import (
	"github.com/depshift/depshift/internal/utils"
	"github.com/depshift/depshift/pkg/registry"
)

type Status string

const (
	StatusDeprecated Status = "deprecated"
	StatusHealthy    Status = "healthy"
	StatusFailed     Status = "failed"
)

// Result is the verdict for one dependency.
type Result struct {
	Dependency  string `json:"dependency"`
	Status      Status `json:"status"`
	Latest      string `json:"latest,omitempty"`
	Message     string `json:"message,omitempty"`
	Alternative string `json:"alternative,omitempty"`
}

// Report aggregates the verdicts of a whole scan. Failed lookups are an
// explicit third status so the JSON output doesn't silently drop them.
type Report struct {
	Total      int      `json:"total"`
	Deprecated int      `json:"deprecated"`
	Healthy    int      `json:"healthy"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// Scanner checks dependencies against the registry.
type Scanner struct {
	client *registry.Client
}

func New(client *registry.Client) *Scanner {
	return &Scanner{client: client}
}

// Scan visits every dependency name in order, one lookup chain at a time.
// A failed lookup marks that single dependency as failed and the scan moves
// on; it never aborts the run.
func (s *Scanner) Scan(deps []string, refresh bool) Report {
	report := Report{Total: len(deps)}

	for _, dep := range deps {
		info, err := s.client.FetchInfo(dep, refresh)
		if err != nil {
			utils.Log.Warn("Could not check ", dep, ": ", err)
			report.Failed++
			report.Results = append(report.Results, Result{Dependency: dep, Status: StatusFailed})
			continue
		}

		if info.IsDeprecated() {
			alt := s.client.FetchAlternative(dep, refresh)
			report.Deprecated++
			report.Results = append(report.Results, Result{
				Dependency:  dep,
				Status:      StatusDeprecated,
				Latest:      info.Latest,
				Message:     info.Deprecated,
				Alternative: alt,
			})
			continue
		}

		report.Healthy++
		report.Results = append(report.Results, Result{
			Dependency: dep,
			Status:     StatusHealthy,
			Latest:     info.Latest,
		})
	}

	return report
}
