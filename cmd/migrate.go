package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/depshift/depshift/internal/utils"
	"github.com/depshift/depshift/pkg/manifest"
	"github.com/depshift/depshift/pkg/migrate"
	"github.com/depshift/depshift/pkg/pm"
	"github.com/depshift/depshift/pkg/registry"
)

// migrateCmd implements: depshift migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Replace deprecated dependencies in package.json",
	Long: `Walks the dependencies and devDependencies sections of package.json,
replaces deprecated packages with their suggested alternatives at the
"latest" specifier, writes the manifest back, and reinstalls with the
package manager detected from the project's lock file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'depshift migrate --help'", args[0])
		}

		dir, _ := cmd.Flags().GetString("path")
		interactive, _ := cmd.Flags().GetBool("interactive")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		refresh, _ := cmd.Flags().GetBool("refresh")

		m, err := manifest.Load(dir)
		if err != nil {
			utils.Log.Fatal(err)
		}

		store, lock := openCache()
		defer closeCache(store, lock)

		client := registry.NewClient(viper.GetString("registry.url"), viper.GetString("registry.search"), store)

		if jsonOutput {
			// Structured output only: silence the narration.
			utils.SetLogLevel("error")
		}

		opts := migrate.Options{
			Interactive: interactive,
			DryRun:      dryRun,
			Refresh:     refresh,
			Confirm:     promptConfirm,
			Installer:   pm.ExecInstaller{},
			Dir:         dir,
		}

		report, err := migrate.Run(m, client, opts)
		if err != nil {
			return err
		}

		if jsonOutput {
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		if len(report.Records) == 0 {
			fmt.Println("Nothing to migrate, all dependencies are healthy.")
			return nil
		}
		if dryRun {
			fmt.Printf("Dry run: %d replacement(s) planned, manifest untouched.\n", len(report.Records))
		} else {
			fmt.Printf("Replaced %d dependenc(ies), manifest updated.\n", report.Replaced())
		}
		return nil
	},
}

var stdin = bufio.NewReader(os.Stdin)

// promptConfirm asks a yes/no question on the terminal. Anything that
// doesn't start with y/Y counts as a no, including an empty answer.
func promptConfirm(dep, alt string) bool {
	fmt.Printf("Replace %s with %s? [y/N] ", dep, alt)
	answer, err := stdin.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.TrimSpace(answer)
	return strings.HasPrefix(answer, "y") || strings.HasPrefix(answer, "Y")
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringP("path", "p", ".", "Project directory containing package.json")
	migrateCmd.Flags().BoolP("interactive", "i", false, "Ask before each replacement")
	migrateCmd.Flags().BoolP("dry-run", "n", false, "Report intended replacements without touching the manifest")
	migrateCmd.Flags().BoolP("json", "j", false, "Print the report as JSON instead of human-readable output")
	migrateCmd.Flags().BoolP("refresh", "r", false, "Bypass the lookup cache and query the registry again")
}
