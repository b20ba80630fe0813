package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sp1nlock/legwork/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	 _                                 _
	| | ___  __ ___      _____  _ __| | __
	| |/ _ \/ _` + "`" + ` \ \ /\ / / _ \| '__| |/ /
	| |  __/ (_| |\ V  V / (_) | |  |   <
	|_|\___|\__, | \_/\_/ \___/|_|  |_|\_\
	        |___/

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "legwork",
	Short: "Username enumeration and identity correlation for OSINT workflows.",
	Long: LOGO + `legwork streams per-platform username probes from a scanner backend,
clusters the found profiles into identity legs, ranks each leg against the
search pivots, and runs heuristic plus model-assisted profile analysis.`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.legwork.yaml)")
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
		viper.SetConfigName(".legwork")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.legwork.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	viper.SetDefault("scanner.host", "http://localhost:8000")
	viper.SetDefault("analysis.endpoint", "")
	viper.SetDefault("analysis.prompt_file", "")
	viper.SetDefault("ollama.host", "http://localhost:11434")
	viper.SetDefault("ollama.model", "llama3")
	viper.SetDefault("ollama.api_mode", "ollama")
	viper.SetDefault("serve.username", "")
	viper.SetDefault("serve.password", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
