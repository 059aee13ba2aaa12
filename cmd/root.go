package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/depshift/depshift/internal/utils"
	"github.com/depshift/depshift/pkg/cache"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `     _                _     _  __ _
  __| | ___ _ __  ___| |__ (_)/ _| |_
 / _` + "`" + ` |/ _ \ '_ \/ __| '_ \| | |_| __|
| (_| |  __/ |_) \__ \ | | | |  _| |_
 \__,_|\___| .__/|___/_| |_|_|_|  \__|
           |_|
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "depshift",
	Short: "Find and replace deprecated npm dependencies.",
	Long: LOGO + `depshift scans the dependencies declared in your package.json against the
npm registry, reports the deprecated ones, and can rewrite the manifest to
swap in suggested replacements before reinstalling.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.depshift.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".depshift")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.depshift.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("registry.url", "")
	viper.SetDefault("registry.search", "")
	viper.SetDefault("cache.path", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// openCache opens the persistent lookup cache behind a file lock so two
// depshift processes don't race on the same store. A failed lock is only a
// warning; the run still proceeds.
func openCache() (*cache.Store, *utils.CacheLock) {
	cachePath := viper.GetString("cache.path")

	lock, err := utils.NewCacheLock(cachePath)
	if err != nil {
		utils.Log.Warn("Could not set up cache lock: ", err)
		lock = nil
	} else if err := lock.Lock(); err != nil {
		utils.Log.Warn("Could not lock cache: ", err)
		lock = nil
	}

	return cache.Open(cachePath), lock
}

func closeCache(store *cache.Store, lock *utils.CacheLock) {
	if err := store.Close(); err != nil {
		utils.Log.Debug("Closing cache: ", err)
	}
	if lock != nil {
		if err := lock.Unlock(); err != nil {
			utils.Log.Debug("Unlocking cache: ", err)
		}
	}
}
