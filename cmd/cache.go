package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depshift/depshift/internal/utils"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the lookup cache",
	Long: `The lookup cache stores registry metadata and replacement suggestions
forever: entries have no expiry and are reused on every run. Use "cache
clear" to force fresh data, or pass --refresh to a single scan/migrate.`,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the location of the cache store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, lock := openCache()
		defer closeCache(store, lock)

		path := store.Path()
		if path == "" {
			fmt.Println("cache is in-memory only (store could not be opened)")
			return nil
		}
		fmt.Println(path)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached lookup",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, lock := openCache()
		defer closeCache(store, lock)

		n := store.Len()
		if err := store.Clear(); err != nil {
			return err
		}
		utils.Log.Info("Removed ", n, " cached entries")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePathCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
