// Package migrate rewrites a manifest to swap deprecated dependencies for
// their suggested replacements, then reinstalls. The manifest is mutated in
// memory and written at most once, after the whole walk: either every
// accepted replacement lands on disk or none does.
package migrate

import (
	"github.com/depshift/depshift/internal/utils"
	"github.com/depshift/depshift/pkg/manifest"
	"github.com/depshift/depshift/pkg/pm"
	"github.com/depshift/depshift/pkg/registry"
)

type Action string

const (
	ActionReplaced     Action = "replaced"
	ActionWouldReplace Action = "would-replace"
	ActionSkipped      Action = "skipped"
)

// Record documents the decision taken for one deprecated dependency. A name
// declared in both sections is visited twice and gets two records.
type Record struct {
	Dependency  string `json:"dependency"`
	Section     string `json:"section"`
	Action      Action `json:"action"`
	Alternative string `json:"alternative,omitempty"`
}

// Report is the outcome of a migration run. Failed carries the dependencies
// whose registry lookup errored; they are left untouched in the manifest.
type Report struct {
	Records []Record `json:"records"`
	Failed  []string `json:"failed,omitempty"`
}

// Replaced counts the records with action "replaced".
func (r Report) Replaced() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Action == ActionReplaced {
			n++
		}
	}
	return n
}

// ConfirmFunc asks the operator whether dep should be replaced by alt. It is
// the only suspension point of a migration besides network I/O.
type ConfirmFunc func(dep, alt string) bool

// Options controls a migration run.
type Options struct {
	Interactive bool
	DryRun      bool
	Refresh     bool

	// Confirm is consulted once per deprecated dependency when Interactive
	// is set. A nil Confirm declines everything.
	Confirm ConfirmFunc

	// Installer runs the reinstall after a manifest write. Nil means no
	// reinstall (used by tests and dry runs).
	Installer pm.Installer

	// Dir is the project directory, used for the reinstall.
	Dir string
}

// Run walks the manifest sections in fixed order (dependencies, then
// devDependencies) and the entries of each section in their stored order.
// Lookups and prompts happen strictly one at a time.
//
// If anything was replaced and this is not a dry run, the manifest is
// written back and the project's package manager reinstalls. A reinstall
// failure is logged but not rolled back: the manifest on disk is already
// updated at that point.
func Run(m *manifest.Manifest, client *registry.Client, opts Options) (Report, error) {
	var report Report

	for _, section := range manifest.Sections {
		for _, dep := range m.Section(section) {
			info, err := client.FetchInfo(dep.Name, opts.Refresh)
			if err != nil {
				utils.Log.Warn("Could not check ", dep.Name, ", leaving it untouched: ", err)
				report.Failed = append(report.Failed, dep.Name)
				continue
			}

			if !info.IsDeprecated() {
				continue
			}

			utils.Log.Info(dep.Name, " is deprecated: ", info.Deprecated)
			alt := client.FetchAlternative(dep.Name, opts.Refresh)

			doReplace := true
			if opts.Interactive && alt != "" {
				doReplace = opts.Confirm != nil && opts.Confirm(dep.Name, alt)
			}

			if !doReplace || alt == "" {
				if alt == "" {
					utils.Log.Info("No replacement found for ", dep.Name)
				}
				report.Records = append(report.Records, Record{
					Dependency:  dep.Name,
					Section:     section,
					Action:      ActionSkipped,
					Alternative: alt,
				})
				continue
			}

			if opts.DryRun {
				utils.Log.Info("Would replace ", dep.Name, " with ", alt)
				report.Records = append(report.Records, Record{
					Dependency:  dep.Name,
					Section:     section,
					Action:      ActionWouldReplace,
					Alternative: alt,
				})
				continue
			}

			if err := m.Replace(section, dep.Name, alt); err != nil {
				utils.Log.Error("Failed to rewrite manifest for ", dep.Name, ": ", err)
				report.Failed = append(report.Failed, dep.Name)
				continue
			}
			utils.Log.Info("Replaced ", dep.Name, " with ", alt, "@latest")
			report.Records = append(report.Records, Record{
				Dependency:  dep.Name,
				Section:     section,
				Action:      ActionReplaced,
				Alternative: alt,
			})
		}
	}

	if !m.Modified() || opts.DryRun {
		return report, nil
	}

	if err := m.Save(); err != nil {
		return report, err
	}

	if opts.Installer != nil {
		if err := opts.Installer.Install(opts.Dir); err != nil {
			// Manifest is already written; the operator can rerun the
			// install by hand.
			utils.Log.Error("Reinstall failed, manifest updated but dependencies not installed: ", err)
		}
	}
	return report, nil
}
