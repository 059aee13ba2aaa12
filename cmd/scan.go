package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/depshift/depshift/internal/utils"
	"github.com/depshift/depshift/pkg/manifest"
	"github.com/depshift/depshift/pkg/registry"
	"github.com/depshift/depshift/pkg/scan"
)

// scanCmd implements: depshift scan
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan package.json for deprecated dependencies",
	Long:  "Checks every declared dependency against the npm registry and reports which ones are deprecated, together with a suggested replacement.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'depshift scan --help'", args[0])
		}

		dir, _ := cmd.Flags().GetString("path")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		refresh, _ := cmd.Flags().GetBool("refresh")

		m, err := manifest.Load(dir)
		if err != nil {
			utils.Log.Fatal(err)
		}

		store, lock := openCache()
		defer closeCache(store, lock)

		client := registry.NewClient(viper.GetString("registry.url"), viper.GetString("registry.search"), store)

		deps := m.AllNames()
		if !jsonOutput {
			fmt.Printf("Scanning %d dependencies...\n", len(deps))
		}

		report := scan.New(client).Scan(deps, refresh)

		if jsonOutput {
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		for _, res := range report.Results {
			switch res.Status {
			case scan.StatusDeprecated:
				fmt.Printf("[DEPRECATED] %s: %s\n", res.Dependency, res.Message)
				if res.Alternative != "" {
					fmt.Printf("             consider %s\n", res.Alternative)
				}
			case scan.StatusFailed:
				fmt.Printf("[CHECK FAILED] %s\n", res.Dependency)
			}
		}
		fmt.Printf("\n%d total, %d deprecated, %d healthy, %d failed\n",
			report.Total, report.Deprecated, report.Healthy, report.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("path", "p", ".", "Project directory containing package.json")
	scanCmd.Flags().BoolP("json", "j", false, "Print the report as JSON instead of human-readable output")
	scanCmd.Flags().BoolP("refresh", "r", false, "Bypass the lookup cache and query the registry again")
}
