package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/ac-controller/internal/config"
)

var (
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "ac-controller",
	Short: "IR learning air-conditioner controller",
	Long: `ac-controller captures IR remote signals into named slots and replays
them from a temperature/humidity policy, MQTT commands or the HTTP API.

Running without a subcommand starts the controller.`,
	SilenceUsage: true,
	RunE:         runRun,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./config.yml, then /etc/ac-controller/config.yml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	mustBind(v, "log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(v, cfgFile)
}
